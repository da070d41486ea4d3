package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
	"github.com/joseph-ayodele/invoice-extractor/internal/services/extraction"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir         = flag.String("dir", "", "directory of PDFs to process (files may also be given as arguments)")
		out         = flag.String("out", ".", "directory to write reports into")
		xlsx        = flag.Bool("xlsx", false, "also write an XLSX workbook")
		concurrency = flag.Int("concurrency", 0, "documents processed at once (0 = config value)")
		history     = flag.Bool("history", false, "record the batch in the history database")
		dedup       = flag.Bool("dedup", false, "skip files whose content repeats within a batch")
		watch       = flag.Bool("watch", false, "keep watching --dir and process new PDFs in batches")
		window      = flag.Duration("window", 3*time.Second, "in --watch mode, how long to gather new files before a batch starts")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	paths := flag.Args()
	if *dir != "" {
		paths = append([]string{*dir}, paths...)
	}
	if len(paths) == 0 {
		printError("Error: --dir or at least one PDF path is required\n")
		os.Exit(2)
	}
	if *watch && *dir == "" {
		printError("Error: --watch requires --dir\n")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *concurrency > 0 {
		cfg.Pipeline.Concurrency = *concurrency
	}
	level := cfg.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(*out, 0o755); err != nil {
		printError("Error: create output directory: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := extraction.Build(ctx, cfg, extraction.Deps{
		History:  *history,
		Progress: progressPrinter(os.Stderr),
	}, logger)
	if err != nil {
		logger.Error("failed to build extraction service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	collector := ingest.NewCollector(ingest.Options{SkipHidden: true, SkipDuplicates: *dedup}, logger)

	if *watch {
		if err := runWatch(ctx, *dir, *out, *xlsx, *window, collector, svc, logger); err != nil {
			logger.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	docs, results, _, err := collector.Collect(ctx, paths)
	if err != nil {
		logger.Error("failed to collect documents", "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			printError("skipped %s: %s\n", r.Path, r.Err)
		}
	}
	if len(docs) == 0 {
		printError("No PDF files found\n")
		os.Exit(1)
	}

	outcome, err := svc.Process(ctx, docs)
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
	written, err := writeReports(outcome, *out, *xlsx)
	if err != nil {
		logger.Error("failed to write reports", "error", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, outcome, written)
	if len(outcome.Assembly.Invoices) == 0 {
		os.Exit(3)
	}
}

func runWatch(ctx context.Context, dir, out string, xlsx bool, window time.Duration,
	collector *ingest.Collector, svc *extraction.Service, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	collect := async.CollectorFunc(func(ctx context.Context, paths []string) ([]*entity.UploadedDocument, error) {
		docs, _, _, err := collector.Collect(ctx, paths)
		return docs, err
	})
	q := async.NewBatchQueue(collect, svc, logger,
		async.WithWorkers(1),
		async.WithOnDone(func(job async.Job, outcome *extraction.Outcome, err error) {
			if err != nil || outcome == nil {
				return
			}
			written, werr := writeReports(outcome, out, xlsx)
			if werr != nil {
				logger.Error("failed to write reports", "job_id", job.ID, "error", werr)
			}
			printSummary(os.Stdout, outcome, written)
		}),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		q.Shutdown(shutdownCtx)
	}()

	var (
		pending []string
		seen    = map[string]struct{}{}
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		job := async.Job{Paths: pending, TraceID: fmt.Sprintf("watch-%d", time.Now().UnixNano())}
		pending, seen = nil, map[string]struct{}{}
		if err := q.Enqueue(ctx, job); err != nil {
			logger.Warn("failed to enqueue batch", "paths", len(job.Paths), "error", err)
		}
	}

	logger.Info("watching for invoices", "dir", dir, "window", window.String())
	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case p, ok := <-events:
			if !ok {
				flush()
				return nil
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			pending = append(pending, p)
			if timer == nil {
				timer = time.NewTimer(window)
			} else {
				timer.Reset(window)
			}
			fire = timer.C
		case err, ok := <-errs:
			if ok {
				logger.Warn("watcher reported an error", "error", err)
			}
		case <-fire:
			fire = nil
			flush()
		}
	}
}

func writeReports(outcome *extraction.Outcome, dir string, xlsx bool) ([]string, error) {
	var written []string
	for _, r := range []*report.Rendered{outcome.PDF, outcome.XLSX} {
		if r == nil {
			continue
		}
		if r.ContentType == report.ContentTypeXLSX && !xlsx {
			continue
		}
		path := filepath.Join(dir, r.Name)
		if err := os.WriteFile(path, r.Bytes, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func printSummary(w io.Writer, outcome *extraction.Outcome, written []string) {
	ok, failed := outcome.Result.Counts()
	fmt.Fprintf(w, "Batch %s: %d documents, %d extracted, %d failed\n",
		outcome.Result.ID, len(outcome.Result.Entries), ok, failed)
	for _, e := range outcome.Result.Entries {
		switch {
		case e.Invoice != nil:
			number := e.Invoice.InvoiceNumber
			if number == "" {
				number = "(no number)"
			}
			fmt.Fprintf(w, "  [%d] %s: OK %s %s\n", e.Index+1, e.Filename, number, e.Invoice.Total)
		case e.Failure != nil:
			fmt.Fprintf(w, "  [%d] %s\n", e.Index+1, e.Failure.String())
		}
	}
	if len(written) == 0 {
		fmt.Fprintln(w, "No report written: no invoice was extracted.")
		return
	}
	for _, p := range written {
		fmt.Fprintf(w, "Report: %s\n", p)
	}
}

func progressPrinter(w io.Writer) func(pipeline.Progress) {
	return func(p pipeline.Progress) {
		fmt.Fprintf(w, "\r%d/%d processed (%d ok) %s", p.Done, p.Total, p.Succeeded, p.Filename)
		if p.Done == p.Total {
			fmt.Fprintln(w)
		}
	}
}
