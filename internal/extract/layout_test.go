package extract

import (
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// glyphs spells s at (x, y) as zero-width glyphs, the way core fonts without width tables report them.
func glyphs(x, y float64, s string) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	for _, r := range s {
		out = append(out, pdf.Text{X: x, Y: y, FontSize: 10, S: string(r)})
	}
	return out
}

// advancing spells s with real glyph widths.
func advancing(x, y float64, s string) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	for _, r := range s {
		out = append(out, pdf.Text{X: x, Y: y, FontSize: 10, W: 5, S: string(r)})
		x += 5
	}
	return out
}

func collect(parts ...[]pdf.Text) []pdf.Text {
	var all []pdf.Text
	for _, p := range parts {
		all = append(all, p...)
	}
	return all
}

func TestLayoutTextAndTable(t *testing.T) {
	text := collect(
		glyphs(72, 700, "INVOICE"),
		glyphs(72, 680, "Invoice Number:"),
		glyphs(200, 680, "INV-1001"),
		glyphs(72, 640, "Description"), glyphs(300, 640, "Qty"), glyphs(360, 640, "Unit Price"), glyphs(450, 640, "Amount"),
		glyphs(72, 625, "Design work"), glyphs(300, 625, "1"), glyphs(360, 625, "150.00"), glyphs(450, 625, "150.00"),
		glyphs(72, 610, "Hosting"), glyphs(300, 610, "2"), glyphs(360, 610, "50.00"), glyphs(450, 610, "100.00"),
		glyphs(72, 580, "Total: 250.00"),
	)
	segs := segmentsFromLines(1, linesFromRuns(runsFromGlyphs(text)))
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}
	if segs[0].Kind != entity.SegmentText || segs[0].Text != "INVOICE\nInvoice Number: INV-1001" {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	wantTable := "Description | Qty | Unit Price | Amount\nDesign work | 1 | 150.00 | 150.00\nHosting | 2 | 50.00 | 100.00"
	if segs[1].Kind != entity.SegmentTable || segs[1].Text != wantTable {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if segs[2].Text != "Total: 250.00" {
		t.Errorf("segment 2 = %+v", segs[2])
	}
}

func TestLayoutOutOfOrderDrawing(t *testing.T) {
	// right column drawn before left, lower line before upper
	text := collect(
		glyphs(72, 600, "second"),
		glyphs(300, 700, "right"),
		glyphs(72, 700, "left"),
	)
	segs := segmentsFromLines(2, linesFromRuns(runsFromGlyphs(text)))
	if len(segs) != 1 {
		t.Fatalf("segments = %+v", segs)
	}
	if segs[0].Text != "left right\nsecond" || segs[0].Page != 2 {
		t.Errorf("segment = %+v", segs[0])
	}
}

func TestLayoutMergesKernedRuns(t *testing.T) {
	// "Inv" and "oice" touch; "Total" follows after a word gap
	text := collect(
		advancing(72, 700, "Inv"),
		advancing(87.5, 700, "oice"),
		advancing(112, 700, "Total"),
	)
	lines := linesFromRuns(runsFromGlyphs(text))
	if len(lines) != 1 {
		t.Fatalf("lines = %+v", lines)
	}
	if got := strings.Join(lines[0].cells, "|"); got != "Invoice Total" {
		t.Errorf("cells = %q", got)
	}
}

func TestBulletize(t *testing.T) {
	tests := map[string]string{
		"• Pay by wire":  "• Pay by wire",
		"* Net 30":       "• Net 30",
		"·Late fee 2%":   "• Late fee 2%",
		"Plain sentence": "Plain sentence",
	}
	for in, want := range tests {
		if got := bulletize(in); got != want {
			t.Errorf("bulletize(%q) = %q, want %q", in, got, want)
		}
	}
}
