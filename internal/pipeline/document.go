package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// processDocument never panics and always returns an entry for index i.
func (p *Pipeline) processDocument(ctx context.Context, log *slog.Logger, i int, doc *entity.UploadedDocument) (entry entity.Entry) {
	start := time.Now()
	log = log.With("index", i, "file", doc.Filename)
	entry = entity.Entry{Index: i, Filename: doc.Filename}
	stage := constants.ParseFailure

	fail := func(kind constants.FailureKind, cause string, err error) entity.Entry {
		entry.Failure = &entity.Failure{Filename: doc.Filename, Kind: kind, Cause: cause, Message: err.Error()}
		log.Warn("pipeline.document.failed",
			"kind", kind,
			"cause", cause,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entry
	}

	defer func() {
		if r := recover(); r != nil {
			entry.Invoice = nil
			entry = fail(stage, panicCause(stage), fmt.Errorf("panic: %v", r))
		}
	}()

	if p.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
		defer cancel()
	}
	log.Debug("pipeline.document.start", "bytes", len(doc.Content))

	parsed, err := p.parser.Extract(ctx, *doc)
	if err != nil {
		return fail(constants.ParseFailure, string(extract.CauseOf(err)), err)
	}
	if parsed.Empty() {
		return fail(constants.ParseFailure, string(constants.ParseCauseEmpty), errors.New("no extractable text"))
	}

	stage = constants.ExtractionFailure
	resp, err := p.extractor.ExtractFields(ctx, llm.NewExtractRequest(parsed.Text(), doc.Filename, p.cfg.MaxPromptChars))
	if err != nil {
		return fail(constants.ExtractionFailure, string(llm.CauseOf(err)), err)
	}

	stage = constants.MalformedResult
	inv, err := llm.MapInvoice(resp.Content, doc.Filename, log)
	if err != nil {
		return fail(constants.MalformedResult, "", err)
	}

	entry.Invoice = &inv
	entry.Model = resp.Model
	log.Info("pipeline.document.ok",
		"invoice_number", inv.InvoiceNumber,
		"line_items", len(inv.LineItems),
		"method", parsed.Method,
		"attempts", resp.Attempts,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entry
}

func panicCause(stage constants.FailureKind) string {
	switch stage {
	case constants.ParseFailure:
		return string(constants.ParseCauseCorrupt)
	case constants.ExtractionFailure:
		return string(constants.CauseUpstream)
	default:
		return ""
	}
}
