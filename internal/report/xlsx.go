package report

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/utils"
)

const (
	sheetInvoices = "Invoices"
	sheetItems    = "Line Items"
	sheetFailures = "Failures"
)

// XLSXRenderer exports invoices to a workbook with one sheet for invoices, one for line
// items and, when rendering a whole assembly, one for failures.
type XLSXRenderer struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewXLSXRenderer(logger *slog.Logger) *XLSXRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXRenderer{logger: logger, now: time.Now}
}

func (r *XLSXRenderer) Render(ctx context.Context, invoices []entity.ExtractedInvoice) (Rendered, error) {
	return r.RenderAssembly(ctx, Assembly{Invoices: invoices})
}

// RenderAssembly also writes a Failures sheet when the assembly has any.
func (r *XLSXRenderer) RenderAssembly(ctx context.Context, a Assembly) (Rendered, error) {
	if !a.HasInvoices() {
		return Rendered{}, ErrNoInvoices
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet rather than leave an empty Sheet1 behind
	if err := f.SetSheetName("Sheet1", sheetInvoices); err != nil {
		return Rendered{}, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetItems); err != nil {
		return Rendered{}, fmt.Errorf("xlsx sheet: %w", err)
	}

	invoiceHeaders := []string{
		"Source File", "Invoice Number", "Invoice Date", "Due Date",
		"Vendor", "Vendor Address", "Bill To", "Buyer Address",
		"Subtotal", "Tax", "Total", "Currency", "Payment Terms", "Payment Instructions",
	}
	writeRow(f, sheetInvoices, 1, toAny(invoiceHeaders))
	writeRow(f, sheetItems, 1, []any{"Source File", "Invoice Number", "Description", "Quantity", "Unit Price", "Amount"})

	itemRow := 2
	for i, inv := range a.Invoices {
		if err := ctx.Err(); err != nil {
			return Rendered{}, err
		}
		writeRow(f, sheetInvoices, i+2, []any{
			inv.SourceFilename,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			inv.DueDate,
			inv.VendorName,
			inv.VendorAddress,
			inv.BuyerName,
			inv.BuyerAddress,
			money(inv.Subtotal),
			money(inv.Tax),
			money(inv.Total),
			inv.Currency,
			inv.PaymentTerms,
			utils.Truncate(inv.PaymentInstructions, 500),
		})
		for _, it := range inv.LineItems {
			writeRow(f, sheetItems, itemRow, []any{
				inv.SourceFilename,
				inv.InvoiceNumber,
				it.Description,
				money(it.Quantity),
				money(it.UnitPrice),
				money(it.Amount),
			})
			itemRow++
		}
	}

	if len(a.Failures) > 0 {
		if _, err := f.NewSheet(sheetFailures); err != nil {
			return Rendered{}, fmt.Errorf("xlsx sheet: %w", err)
		}
		writeRow(f, sheetFailures, 1, []any{"Source File", "Kind", "Cause", "Message"})
		for i, fl := range a.Failures {
			writeRow(f, sheetFailures, i+2, []any{fl.Filename, fl.Kind, fl.Cause, utils.Truncate(fl.Message, 500)})
		}
		_ = f.SetColWidth(sheetFailures, "A", "A", 32)
		_ = f.SetColWidth(sheetFailures, "B", "C", 20)
		_ = f.SetColWidth(sheetFailures, "D", "D", 80)
	}

	_ = f.SetColWidth(sheetInvoices, "A", "A", 32) // file
	_ = f.SetColWidth(sheetInvoices, "B", "D", 16)
	_ = f.SetColWidth(sheetInvoices, "E", "H", 28) // parties
	_ = f.SetColWidth(sheetInvoices, "I", "L", 12) // amounts
	_ = f.SetColWidth(sheetInvoices, "M", "N", 40)
	_ = f.SetColWidth(sheetItems, "A", "B", 24)
	_ = f.SetColWidth(sheetItems, "C", "C", 48)
	_ = f.SetColWidth(sheetItems, "D", "F", 12)

	if idx, err := f.GetSheetIndex(sheetInvoices); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Rendered{}, fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Info("report.xlsx.ok",
		"invoices", len(a.Invoices),
		"line_items", itemRow-2,
		"failures", len(a.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Rendered{Name: FileName(r.now(), "xlsx"), ContentType: ContentTypeXLSX, Bytes: buf.Bytes()}, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// money writes decimal strings as numbers so spreadsheets can sum them.
func money(s string) any {
	if s == "" {
		return ""
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
