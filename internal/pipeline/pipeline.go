package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// ErrNilDocument is returned when a batch contains a nil document.
var ErrNilDocument = errors.New("pipeline: nil document")

// Pipeline runs parse -> extract -> map for every document of a batch. One document's
// failure never affects another's entry.
type Pipeline struct {
	logger    *slog.Logger
	cfg       Config
	parser    extract.TextExtractor
	extractor llm.FieldExtractor
	progress  func(Progress)
}

func New(parser extract.TextExtractor, extractor llm.FieldExtractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:    slog.Default(),
		parser:    parser,
		extractor: extractor,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes docs and returns one entry per document in submission order. The only error
// is ErrNilDocument, returned before any document is touched.
func (p *Pipeline) Run(ctx context.Context, docs []*entity.UploadedDocument) (entity.BatchResult, error) {
	for i, d := range docs {
		if d == nil {
			return entity.BatchResult{}, fmt.Errorf("%w at index %d", ErrNilDocument, i)
		}
	}

	result := entity.BatchResult{ID: uuid.New(), Entries: make([]entity.Entry, len(docs))}
	if len(docs) == 0 {
		return result, nil
	}

	start := time.Now()
	ctx = common.WithBatchID(ctx, result.ID.String())
	log := common.LoggerFrom(ctx, p.logger)
	log.Info("pipeline.batch.start", "documents", len(docs), "concurrency", max(p.cfg.Concurrency, 1))

	tr := &tracker{total: len(docs), fn: p.progress}
	if p.cfg.Concurrency <= 1 {
		for i, d := range docs {
			result.Entries[i] = p.processDocument(ctx, log, i, d)
			tr.done(result.Entries[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for i, d := range docs {
			g.Go(func() error {
				e := p.processDocument(ctx, log, i, d)
				result.Entries[i] = e
				tr.done(e)
				return nil
			})
		}
		_ = g.Wait()
	}

	ok, failed := result.Counts()
	log.Info("pipeline.batch.done",
		"documents", len(docs),
		"succeeded", ok,
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// tracker serializes progress callbacks across workers.
type tracker struct {
	mu    sync.Mutex
	count int
	total int
	fn    func(Progress)
}

func (t *tracker) done(e entity.Entry) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.fn(Progress{
		Index:     e.Index,
		Filename:  e.Filename,
		Done:      t.count,
		Total:     t.total,
		Succeeded: e.Succeeded(),
	})
}
