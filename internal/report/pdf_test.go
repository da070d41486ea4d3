package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
)

func sampleInvoice() entity.ExtractedInvoice {
	return entity.ExtractedInvoice{
		SourceFilename: "a.pdf",
		InvoiceNumber:  "INV-1001",
		InvoiceDate:    "2024-03-05",
		VendorName:     "Acme Corp",
		LineItems: []entity.LineItem{
			{Description: "Design work", Quantity: "1", UnitPrice: "150.00", Amount: "150.00"},
			{Description: "Hosting", Quantity: "2", UnitPrice: "50.00", Amount: "100.00"},
		},
		Total: "250.00",
	}
}

func fixedClock() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) }

func TestPDFRenderNaming(t *testing.T) {
	r := NewPDFRenderer("A4", nil)
	r.now = fixedClock
	out, err := r.Render(context.Background(), []entity.ExtractedInvoice{sampleInvoice()})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Name != "invoices_20240305_1430.pdf" {
		t.Errorf("Name = %q", out.Name)
	}
	if out.ContentType != ContentTypePDF || !bytes.HasPrefix(out.Bytes, []byte("%PDF-")) {
		t.Errorf("not a pdf: %s %q", out.ContentType, out.Bytes[:min(8, len(out.Bytes))])
	}
}

func TestPDFRenderNoInvoices(t *testing.T) {
	_, err := NewPDFRenderer("", nil).Render(context.Background(), nil)
	if !errors.Is(err, ErrNoInvoices) {
		t.Fatalf("err = %v", err)
	}
}

// The rendered report must read back through the parser with one page group per invoice
// and line items recognized as table rows.
func TestPDFRenderRoundTrip(t *testing.T) {
	second := entity.ExtractedInvoice{SourceFilename: "c.pdf", InvoiceNumber: "C-77", VendorName: "Café Müller", Total: "12.50"}
	out, err := NewPDFRenderer("Letter", nil).Render(context.Background(), []entity.ExtractedInvoice{sampleInvoice(), second})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	parsed, err := extract.NewPDFExtractor(nil).Extract(context.Background(), entity.UploadedDocument{Filename: out.Name, Content: out.Bytes})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Pages != 2 {
		t.Errorf("pages = %d, want 2", parsed.Pages)
	}

	text := parsed.Text()
	for _, want := range []string{
		"Invoice from a.pdf",
		"Invoice Number: INV-1001",
		"Total: 250.00",
		"Description | Qty | Unit Price | Amount",
		"Design work | 1 | 150.00 | 150.00",
		"Hosting | 2 | 50.00 | 100.00",
		"Invoice from c.pdf",
		"Invoice Number: C-77",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("round trip text lacks %q:\n%s", want, text)
		}
	}

	var tables int
	for _, s := range parsed.Segments {
		if s.Kind == entity.SegmentTable {
			tables++
			if s.Page != 1 {
				t.Errorf("table on page %d", s.Page)
			}
		}
	}
	if tables != 1 {
		t.Errorf("table segments = %d, want 1", tables)
	}
}

func TestPDFRenderPaginatesLongTables(t *testing.T) {
	inv := sampleInvoice()
	inv.LineItems = nil
	for i := range 120 {
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			Description: fmt.Sprintf("Consulting block %d with a description long enough to wrap inside its column", i),
			Quantity:    "1",
			UnitPrice:   "10.00",
			Amount:      "10.00",
		})
	}
	out, err := NewPDFRenderer("Letter", nil).Render(context.Background(), []entity.ExtractedInvoice{inv})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := extract.NewPDFExtractor(nil).Extract(context.Background(), entity.UploadedDocument{Filename: "long.pdf", Content: out.Bytes})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Pages < 3 {
		t.Errorf("pages = %d, want the table to spill over several pages", parsed.Pages)
	}
	if !strings.Contains(parsed.Text(), "Consulting block 119") {
		t.Error("last line item missing from output")
	}
}

func TestPDFRenderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFRenderer("", nil).Render(ctx, []entity.ExtractedInvoice{sampleInvoice()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestPDFRenderSplitsRowTallerThanPage(t *testing.T) {
	steps := make([]string, 150)
	for i := range steps {
		steps[i] = fmt.Sprintf("Step %03d", i+1)
	}
	inv := sampleInvoice()
	inv.LineItems = []entity.LineItem{
		{Description: strings.Join(steps, "\n"), Quantity: "3", UnitPrice: "33.33", Amount: "99.99"},
		{Description: "Tail item", Quantity: "1", UnitPrice: "5.00", Amount: "5.00"},
	}
	out, err := NewPDFRenderer("Letter", nil).Render(context.Background(), []entity.ExtractedInvoice{inv})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	parsed, err := extract.NewPDFExtractor(nil).Extract(context.Background(), entity.UploadedDocument{Filename: "tall.pdf", Content: out.Bytes})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Pages < 4 {
		t.Errorf("pages = %d, want the row to continue over several pages", parsed.Pages)
	}

	pageOf := func(s string) int {
		for _, seg := range parsed.Segments {
			if strings.Contains(seg.Text, s) {
				return seg.Page
			}
		}
		return 0
	}
	first := pageOf("Step 001")
	if first == 0 || pageOf("99.99") != first {
		t.Errorf("amount on page %d, first description line on page %d", pageOf("99.99"), first)
	}
	prev := first
	for _, s := range steps {
		p := pageOf(s)
		if p == 0 {
			t.Fatalf("%q missing from output", s)
		}
		if p < prev {
			t.Fatalf("%q on page %d after page %d", s, p, prev)
		}
		prev = p
	}
	if tail := pageOf("Tail item"); tail < prev {
		t.Errorf("next row on page %d, tall row ends on page %d", tail, prev)
	}
}
