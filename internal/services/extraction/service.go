package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
	"github.com/joseph-ayodele/invoice-extractor/internal/utils"
)

// Runner executes one batch.
type Runner interface {
	Run(ctx context.Context, docs []*entity.UploadedDocument) (entity.BatchResult, error)
}

// AssemblyRenderer renders a whole assembly, failures included.
type AssemblyRenderer interface {
	RenderAssembly(ctx context.Context, a report.Assembly) (report.Rendered, error)
}

// Service runs batches and turns their results into stored reports and history rows.
type Service struct {
	runner Runner
	pdf    report.Renderer
	xlsx   AssemblyRenderer
	sink   storage.Sink
	repo   repository.BatchRepository
	logger *slog.Logger
}

type Option func(*Service)

func WithXLSX(r AssemblyRenderer) Option { return func(s *Service) { s.xlsx = r } }

// WithSink stores rendered reports so they can be downloaded later.
func WithSink(sink storage.Sink) Option { return func(s *Service) { s.sink = sink } }

// WithRepository records every batch in the history tables.
func WithRepository(repo repository.BatchRepository) Option {
	return func(s *Service) { s.repo = repo }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(runner Runner, pdf report.Renderer, opts ...Option) *Service {
	s := &Service{runner: runner, pdf: pdf, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Outcome is everything produced for one batch.
type Outcome struct {
	Result   entity.BatchResult
	Assembly report.Assembly
	PDF      *report.Rendered
	XLSX     *report.Rendered
	Reports  repository.ReportRefs
	Saved    bool
}

// Process runs the batch, renders reports when at least one invoice was extracted, then
// stores reports and history when configured. A batch with no invoices is not an error.
func (s *Service) Process(ctx context.Context, docs []*entity.UploadedDocument) (*Outcome, error) {
	start := time.Now()
	res, err := s.runner.Run(ctx, docs)
	if err != nil {
		return nil, common.NewAppError("INVALID_BATCH", "batch rejected", errors.Join(common.ErrInvalidInput, err))
	}
	log := s.logger.With("batch_id", res.ID.String())

	out := &Outcome{Result: res, Assembly: report.Assemble(res)}
	if out.Assembly.HasInvoices() {
		pdf, err := s.pdf.Render(ctx, out.Assembly.Invoices)
		if err != nil {
			log.Error("report.pdf.failed", "error", err)
			return out, common.WrapError(err, "render pdf")
		}
		out.PDF = &pdf
		if s.xlsx != nil {
			x, err := s.xlsx.RenderAssembly(ctx, out.Assembly)
			if err != nil {
				log.Error("report.xlsx.failed", "error", err)
				return out, common.WrapError(err, "render xlsx")
			}
			out.XLSX = &x
		}
	}

	if s.sink != nil {
		for _, r := range []*report.Rendered{out.PDF, out.XLSX} {
			if r == nil {
				continue
			}
			key := storage.Key(res.ID, r.Name)
			if err := s.sink.Put(ctx, key, r.ContentType, r.Bytes); err != nil {
				log.Error("report.store.failed", "key", key, "error", err)
				return out, err
			}
			if r == out.PDF {
				out.Reports.PDF = key
			} else {
				out.Reports.XLSX = key
			}
		}
	}

	if s.repo != nil {
		// history is best effort; the caller still gets the result
		if _, err := s.repo.SaveBatch(ctx, res, out.Reports); err != nil {
			log.Error("batch.save.failed", "error", err)
		} else {
			out.Saved = true
		}
	}

	ok, failed := res.Counts()
	log.Info("batch.processed",
		"documents", len(res.Entries),
		"succeeded", ok,
		"failed", failed,
		"report", out.Reports.PDF,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Format selects a stored report.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Report loads a stored report of a past batch.
func (s *Service) Report(ctx context.Context, batchID uuid.UUID, format Format) (report.Rendered, error) {
	if s.repo == nil || s.sink == nil {
		return report.Rendered{}, fmt.Errorf("report history disabled: %w", common.ErrNotFound)
	}
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return report.Rendered{}, err
	}

	var key string
	ct := report.ContentTypePDF
	switch format {
	case FormatPDF:
		key = utils.StrOrEmpty(b.ReportPDF)
	case FormatXLSX:
		key, ct = utils.StrOrEmpty(b.ReportXLSX), report.ContentTypeXLSX
	default:
		return report.Rendered{}, fmt.Errorf("format %q: %w", format, common.ErrInvalidInput)
	}
	if key == "" {
		return report.Rendered{}, fmt.Errorf("batch %s has no %s report: %w", batchID, format, common.ErrNotFound)
	}

	data, err := s.sink.Get(ctx, key)
	if err != nil {
		return report.Rendered{}, err
	}
	return report.Rendered{Name: path.Base(key), ContentType: ct, Bytes: data}, nil
}

func (s *Service) Batch(ctx context.Context, id uuid.UUID) (*entity.BatchDetail, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("batch history disabled: %w", common.ErrNotFound)
	}
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) Batches(ctx context.Context, limit int) ([]entity.Batch, error) {
	if s.repo == nil {
		return []entity.Batch{}, nil
	}
	return s.repo.ListBatches(ctx, limit)
}
