package extract

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const (
	lineTolerance = 2.0 // points between baselines still treated as one line
	minTableCells = 3
)

// run is a stretch of glyphs drawn contiguously on one baseline.
type run struct {
	x, y, end float64
	size      float64
	text      strings.Builder
}

// runsFromGlyphs groups glyphs in drawing order. A glyph continues the current run when it
// shares the baseline and starts where the previous one ended. Fonts without width tables
// report zero advance, so an unchanged X also counts as continuous.
func runsFromGlyphs(glyphs []pdf.Text) []*run {
	var runs []*run
	var cur *run
	prevX := math.NaN()
	for _, g := range glyphs {
		continuous := cur != nil &&
			math.Abs(g.Y-cur.y) < lineTolerance &&
			(g.X == prevX || math.Abs(g.X-cur.end) < math.Max(g.FontSize*0.25, 0.5))
		if !continuous {
			cur = &run{x: g.X, y: g.Y, size: g.FontSize}
			runs = append(runs, cur)
		}
		cur.text.WriteString(g.S)
		cur.end = g.X + g.W
		prevX = g.X
	}
	return runs
}

type line struct {
	y     float64
	cells []string
}

// linesFromRuns places runs on lines top to bottom, left to right, then merges runs separated
// by less than a word gap into a single cell.
func linesFromRuns(runs []*run) []line {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].y > runs[j].y })

	var lines []line
	var group []*run
	flush := func() {
		if len(group) == 0 {
			return
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].x < group[j].x })
		if cells := mergeCells(group); len(cells) > 0 {
			lines = append(lines, line{y: group[0].y, cells: cells})
		}
		group = nil
	}
	for _, r := range runs {
		if len(group) > 0 && group[0].y-r.y >= lineTolerance {
			flush()
		}
		group = append(group, r)
	}
	flush()
	return lines
}

func mergeCells(runs []*run) []string {
	var cells []string
	var b strings.Builder
	var last *run
	emit := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			cells = append(cells, s)
		}
		b.Reset()
	}
	for _, r := range runs {
		if last != nil {
			gap := r.x - last.end
			switch {
			case last.end > last.x && gap < last.size*0.15:
				// kerning split inside a word
			case last.end > last.x && gap < last.size*1.2:
				b.WriteByte(' ')
			default:
				emit()
			}
		}
		b.WriteString(r.text.String())
		last = r
	}
	emit()
	return cells
}

// segmentsFromLines folds consecutive lines into text and table segments. Lines with at
// least three cells are table rows and render as "a | b | c".
func segmentsFromLines(page int, lines []line) []entity.Segment {
	var segs []entity.Segment
	var b strings.Builder
	kind := entity.SegmentKind("")
	flush := func() {
		if b.Len() > 0 {
			segs = append(segs, entity.Segment{Page: page, Kind: kind, Text: b.String()})
			b.Reset()
		}
	}
	for _, ln := range lines {
		k := entity.SegmentText
		text := strings.Join(ln.cells, " ")
		if len(ln.cells) >= minTableCells {
			k = entity.SegmentTable
			text = strings.Join(ln.cells, " | ")
		} else {
			text = bulletize(text)
		}
		if k != kind {
			flush()
			kind = k
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	flush()
	return segs
}

var bulletPrefixes = []string{"•", "◦", "▪", "‣", "·", "*"}

// bulletize normalizes list markers to "• " so list items stay recognizable in the prompt.
func bulletize(s string) string {
	for _, p := range bulletPrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return "• " + strings.TrimSpace(rest)
		}
	}
	return s
}

// textSegments splits plain text into one text segment per page.
func textSegments(page int, text string) []entity.Segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []entity.Segment{{Page: page, Kind: entity.SegmentText, Text: text}}
}
