package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls the rasterize-then-recognize fallback for PDFs without a text layer.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang     string // default "eng"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool
	PSM                 int // e.g., 6 is good for uniform block of text

	StderrCap int // bytes of command stderr kept for errors and logs; default 8 KiB
}

type Result struct {
	PageTexts  []string // one entry per recognized page, in page order
	Pages      int
	Method     string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, logger: logger}
	e.runner = newExecRunner(logger, cfg.StderrCap)
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractPDF rasterizes the PDF bytes and runs tesseract over each page image.
func (e *Extractor) ExtractPDF(ctx context.Context, name string, content []byte) (Result, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "inv-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("ocr temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return Result{}, fmt.Errorf("ocr write input: %w", err)
	}

	e.logger.Debug("ocr.start", "file", name, "dpi", e.cfg.DPI, "lang", e.cfg.Lang)
	pages, warns, err := e.pdfToOCR(ctx, in, tmpDir)
	res := Result{
		PageTexts: pages,
		Pages:     len(pages),
		Method:    "ocr",
		Language:  e.cfg.Lang,
		Warnings:  warns,
		Duration:  time.Since(start),
	}
	if err != nil {
		e.logger.Error("ocr.failed", "file", name, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}
	res.Confidence = e.confidence(ctx, tmpDir, pages)
	e.logger.Info("ocr.ok",
		"file", name,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) confidence(ctx context.Context, dir string, pages []string) float32 {
	heur := heuristicConfidence(strings.Join(pages, "\n"))
	if !e.cfg.EnableTSVConfidence {
		return heur
	}
	images, _ := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if len(images) == 0 {
		return heur
	}
	sortPageImages(images)
	c, err := e.tesseractTSVConfidence(ctx, images[0])
	if err != nil || c <= 0 {
		return heur
	}
	conf := 0.7*c + 0.3*heur
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
