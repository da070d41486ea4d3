package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const (
	fontFamily = "Helvetica"
	margin     = 15.0
	lineH      = 6.0
	labelW     = 45.0
)

// PDFRenderer writes every invoice to one PDF, each starting on a new page.
type PDFRenderer struct {
	pageSize string
	logger   *slog.Logger
	now      func() time.Time
}

func NewPDFRenderer(pageSize string, logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize == "" {
		pageSize = "Letter"
	}
	return &PDFRenderer{pageSize: pageSize, logger: logger, now: time.Now}
}

func (r *PDFRenderer) Render(ctx context.Context, invoices []entity.ExtractedInvoice) (Rendered, error) {
	if len(invoices) == 0 {
		return Rendered{}, ErrNoInvoices
	}
	start := time.Now()
	now := r.now()

	doc := fpdf.New("P", "mm", r.pageSize, "")
	doc.SetTitle("Extracted invoices", true)
	doc.SetCreator("invoice-extractor", true)
	doc.SetCreationDate(now)
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.AliasNbPages("")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-margin + 3)
		doc.SetFont(fontFamily, "I", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "C", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	})

	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return Rendered{}, err
		}
		writeInvoice(doc, tr, inv)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return Rendered{}, fmt.Errorf("render pdf: %w", err)
	}

	out := Rendered{Name: FileName(now, "pdf"), ContentType: ContentTypePDF, Bytes: buf.Bytes()}
	r.logger.Info("report.pdf.ok",
		"invoices", len(invoices),
		"pages", doc.PageCount(),
		"bytes", len(out.Bytes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func writeInvoice(doc *fpdf.Fpdf, tr func(string) string, inv entity.ExtractedInvoice) {
	doc.AddPage()
	doc.SetFont(fontFamily, "B", 16)
	doc.MultiCell(0, 8, tr("Invoice from "+inv.SourceFilename), "", "L", false)
	doc.Ln(3)

	fields := inv.HeaderFields()
	if len(fields) == 0 && len(inv.LineItems) == 0 {
		doc.SetFont(fontFamily, "I", 10)
		doc.MultiCell(0, lineH, "No fields were extracted.", "", "L", false)
		return
	}
	for _, f := range fields {
		doc.SetFont(fontFamily, "B", 10)
		doc.CellFormat(labelW, lineH, tr(f.Label+":"), "", 0, "L", false, 0, "")
		doc.SetFont(fontFamily, "", 10)
		doc.MultiCell(0, lineH, tr(f.Value), "", "L", false)
	}

	if len(inv.LineItems) > 0 {
		doc.Ln(4)
		doc.SetFont(fontFamily, "B", 12)
		doc.CellFormat(0, 8, "Line Items", "", 1, "L", false, 0, "")
		writeItems(doc, tr, inv.LineItems)
	}
}

type column struct {
	title string
	share float64
	align string
	value func(entity.LineItem) string
}

var itemColumns = []column{
	{"Description", 0.50, "L", func(it entity.LineItem) string { return it.Description }},
	{"Qty", 0.12, "R", func(it entity.LineItem) string { return it.Quantity }},
	{"Unit Price", 0.19, "R", func(it entity.LineItem) string { return it.UnitPrice }},
	{"Amount", 0.19, "R", func(it entity.LineItem) string { return it.Amount }},
}

// writeItems draws the line-item table. Long cells wrap inside their column and the header
// repeats on every page the table reaches. A row that fits on one page is never split; a taller
// row continues line by line onto the next pages. Text is already cp1252 here, so wrapping
// works on bytes.
func writeItems(doc *fpdf.Fpdf, tr func(string) string, items []entity.LineItem) {
	pageW, pageH := doc.GetPageSize()
	left, top, right, bottom := doc.GetMargins()
	tableW := pageW - left - right
	widths := make([]float64, len(itemColumns))
	for i, c := range itemColumns {
		widths[i] = tableW * c.share
	}

	// page breaks are placed by hand below
	doc.SetAutoPageBreak(false, 0)
	defer doc.SetAutoPageBreak(true, bottom)

	const headerH = lineH + 1
	limit := pageH - bottom
	pageLines := max(1, int((limit-top-headerH)/lineH))
	linesLeft := func() int { return int((limit - doc.GetY() + 1e-6) / lineH) }

	header := func() {
		doc.SetFont(fontFamily, "B", 10)
		doc.SetFillColor(230, 230, 230)
		for i, c := range itemColumns {
			doc.CellFormat(widths[i], headerH, c.title, "1", 0, c.align, true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont(fontFamily, "", 10)
	}
	newPage := func() {
		doc.AddPage()
		header()
	}
	if limit-doc.GetY() < headerH+lineH {
		doc.AddPage()
	}
	header()

	for _, it := range items {
		cells := make([][]string, len(itemColumns))
		rows := 1
		for i, c := range itemColumns {
			text := tr(c.value(it))
			if strings.TrimSpace(text) == "" {
				text = "-"
			}
			for _, ln := range doc.SplitLines([]byte(text), widths[i]) {
				cells[i] = append(cells[i], string(ln))
			}
			rows = max(rows, len(cells[i]))
		}
		if rows <= pageLines && linesLeft() < rows {
			newPage()
		}

		for from := 0; from < rows; {
			n := min(rows-from, linesLeft())
			if n < 1 {
				newPage()
				continue
			}
			y := doc.GetY()
			x := left
			for i, c := range itemColumns {
				for j := from; j < from+n && j < len(cells[i]); j++ {
					doc.SetXY(x, y+float64(j-from)*lineH)
					doc.CellFormat(widths[i], lineH, cells[i][j], "", 0, c.align, false, 0, "")
				}
				x += widths[i]
			}
			from += n
			end := y + float64(n)*lineH
			if from == rows {
				doc.SetDrawColor(200, 200, 200)
				doc.Line(left, end, left+tableW, end)
				doc.SetDrawColor(0, 0, 0)
			}
			doc.SetXY(left, end)
		}
	}
}
