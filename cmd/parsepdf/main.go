package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// parsepdf prints the segments extracted from one PDF as JSON, for checking what the model will see.
func main() {
	var (
		useOCR = flag.Bool("ocr", false, "fall back to OCR when the PDF has no text layer")
		text   = flag.Bool("text", false, "print the prompt text instead of JSON")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "parsepdf [-ocr] [-text] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	var opts []extract.Option
	if *useOCR {
		cfg, err := common.LoadConfig()
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		opts = append(opts, extract.WithOCR(ocr.NewExtractor(ocr.Config{
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Tesseract: cfg.OCR.Tesseract,
			Lang:      cfg.OCR.Lang,
			DPI:       cfg.OCR.DPI,
			MaxPages:  cfg.OCR.MaxPages,
			StderrCap: cfg.OCR.StderrCap,
		}, logger)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	pc, err := extract.NewPDFExtractor(logger, opts...).Extract(ctx, entity.UploadedDocument{
		Filename: filepath.Base(path),
		Content:  content,
	})
	if err != nil {
		logger.Error("text extraction failed",
			"cause", extract.CauseOf(err), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	if *text {
		fmt.Println(pc.Text())
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pc); err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}
}
