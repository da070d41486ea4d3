package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// OCR is the fallback used when a PDF carries no text layer.
type OCR interface {
	ExtractPDF(ctx context.Context, name string, content []byte) (ocr.Result, error)
}

// PDFExtractor reads the text layer of a PDF and falls back to OCR when configured.
type PDFExtractor struct {
	inspector *Inspector
	ocr       OCR
	logger    *slog.Logger
}

type Option func(*PDFExtractor)

func WithOCR(o OCR) Option {
	return func(p *PDFExtractor) { p.ocr = o }
}

func NewPDFExtractor(logger *slog.Logger, opts ...Option) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PDFExtractor{inspector: NewInspector(), logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *PDFExtractor) Extract(ctx context.Context, doc entity.UploadedDocument) (entity.ParsedContent, error) {
	start := time.Now()
	log := p.logger.With("file", doc.Filename)

	if len(doc.Content) == 0 {
		return entity.ParsedContent{}, newParseError(constants.ParseCauseEmpty, "zero-byte upload")
	}
	if mt := mimetype.Detect(doc.Content); !mt.Is(constants.PDFMimeType) {
		return entity.ParsedContent{}, newParseError(constants.ParseCauseNotPDF, "detected %s", mt.String())
	}

	ins := p.inspector.Inspect(doc.Content)
	pc, readErr := readPDFText(doc.Content)
	pc.Warnings = append(ins.Warnings, pc.Warnings...)
	if pc.Pages == 0 {
		pc.Pages = ins.Pages
	}

	if readErr != nil {
		if errors.Is(readErr, pdf.ErrInvalidPassword) {
			return entity.ParsedContent{}, &ParseError{Cause: constants.ParseCauseEncrypted, Err: readErr}
		}
		log.Warn("extract.pdf.read_failed", "error", readErr, "pdfcpu_warnings", len(ins.Warnings))
	}

	if pc.Empty() && p.ocr != nil && !ins.Encrypted {
		res, err := p.ocr.ExtractPDF(ctx, doc.Filename, doc.Content)
		if err == nil {
			pc = fromOCR(res, pc.Warnings)
		} else {
			pc.Warnings = append(pc.Warnings, "ocr: "+err.Error())
		}
	}

	if pc.Empty() {
		switch {
		case ins.Encrypted:
			return entity.ParsedContent{}, newParseError(constants.ParseCauseEncrypted, "document is password protected")
		case readErr != nil:
			return entity.ParsedContent{}, &ParseError{Cause: constants.ParseCauseCorrupt, Err: readErr}
		default:
			return entity.ParsedContent{}, newParseError(constants.ParseCauseEmpty, "no extractable text in %d page(s)", pc.Pages)
		}
	}

	log.Info("extract.pdf.ok",
		"method", pc.Method,
		"pages", pc.Pages,
		"segments", len(pc.Segments),
		"warnings", len(pc.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pc, nil
}

func readPDFText(content []byte) (pc entity.ParsedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return pc, err
	}
	pc.Method = MethodPDFText
	pc.Pages = r.NumPage()
	var failed int
	for i := 1; i <= pc.Pages; i++ {
		segs, perr := pageSegments(r.Page(i), i)
		if perr != nil {
			failed++
			pc.Warnings = append(pc.Warnings, fmt.Sprintf("page %d: %v", i, perr))
			continue
		}
		pc.Segments = append(pc.Segments, segs...)
	}
	if failed > 0 && failed == pc.Pages {
		return pc, fmt.Errorf("all %d page(s) unreadable", failed)
	}
	return pc, nil
}

func pageSegments(page pdf.Page, n int) (segs []entity.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if page.V.IsNull() {
		return nil, nil
	}
	content := page.Content()
	segs = segmentsFromLines(n, linesFromRuns(runsFromGlyphs(content.Text)))
	if len(segs) > 0 {
		return segs, nil
	}
	txt, err := page.GetPlainText(nil)
	if err != nil {
		return nil, err
	}
	return textSegments(n, txt), nil
}

func fromOCR(res ocr.Result, warnings []string) entity.ParsedContent {
	pc := entity.ParsedContent{
		Pages:    res.Pages,
		Method:   MethodOCR,
		Warnings: append(warnings, res.Warnings...),
	}
	for i, t := range res.PageTexts {
		pc.Segments = append(pc.Segments, textSegments(i+1, t)...)
	}
	return pc
}
