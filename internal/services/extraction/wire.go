package extraction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/provider"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// Deps selects the optional parts wired by Build.
type Deps struct {
	History  bool // open the database and record batches
	Store    bool // keep reports in REPORT_DIR / REPORT_BUCKET
	Progress func(pipeline.Progress)
}

// Build assembles parser, provider, pipeline, renderers and optional storage from cfg.
// The returned cleanup closes everything Build opened.
func Build(ctx context.Context, cfg *common.Config, deps Deps, logger *slog.Logger) (*Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", "error", err)
			}
		}
	}

	var parserOpts []extract.Option
	if cfg.OCR.Enabled {
		parserOpts = append(parserOpts, extract.WithOCR(ocr.NewExtractor(ocr.Config{
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Tesseract: cfg.OCR.Tesseract,
			Lang:      cfg.OCR.Lang,
			DPI:       cfg.OCR.DPI,
			MaxPages:  cfg.OCR.MaxPages,
			StderrCap: cfg.OCR.StderrCap,
		}, logger)))
	}
	parser := extract.NewPDFExtractor(logger, parserOpts...)

	fields, closeLLM, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, func() {}, err
	}
	closers = append(closers, closeLLM)

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithConfig(pipeline.Config{
			Concurrency:     cfg.Pipeline.Concurrency,
			DocumentTimeout: cfg.Pipeline.DocumentTimeout,
			MaxPromptChars:  cfg.LLM.MaxPromptChars,
		}),
	}
	if deps.Progress != nil {
		pipeOpts = append(pipeOpts, pipeline.WithProgress(deps.Progress))
	}
	pipe := pipeline.New(parser, fields, pipeOpts...)

	opts := []Option{
		WithLogger(logger),
		WithXLSX(report.NewXLSXRenderer(logger)),
	}

	if deps.Store {
		var sink storage.Sink
		if cfg.Report.Bucket != "" {
			gcs, err := storage.NewGCSSink(ctx, cfg.Report.Bucket, "reports", logger)
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			closers = append(closers, gcs.Close)
			sink = gcs
		} else {
			local, err := storage.NewLocalSink(cfg.Report.Dir, logger)
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			sink = local
		}
		opts = append(opts, WithSink(sink))
	}

	if deps.History {
		db, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, errors.Join(common.ErrDatabase, err)
		}
		closers = append(closers, func() error { db.Close(logger); return nil })
		if err := db.Migrate(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		opts = append(opts, WithRepository(repository.NewBatchRepository(db, logger)))
	}

	return NewService(pipe, report.NewPDFRenderer(cfg.Report.PageSize, logger), opts...), cleanup, nil
}
