package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/services/extraction"
)

var ErrQueueClosed = errors.New("async: queue is shut down")

// Job is one batch: the files (or directories) to collect and process together.
type Job struct {
	ID          uuid.UUID
	Paths       []string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Collector turns a job's paths into documents.
type Collector interface {
	Collect(ctx context.Context, paths []string) ([]*entity.UploadedDocument, error)
}

type CollectorFunc func(ctx context.Context, paths []string) ([]*entity.UploadedDocument, error)

func (f CollectorFunc) Collect(ctx context.Context, paths []string) ([]*entity.UploadedDocument, error) {
	return f(ctx, paths)
}

type Processor interface {
	Process(ctx context.Context, docs []*entity.UploadedDocument) (*extraction.Outcome, error)
}

// DoneFunc is called once per job from the worker that ran it.
type DoneFunc func(job Job, out *extraction.Outcome, err error)

type BatchQueue struct {
	collect Collector
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  DoneFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*BatchQueue)

func WithWorkers(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *BatchQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithOnDone(fn DoneFunc) Option {
	return func(q *BatchQueue) { q.onDone = fn }
}

func NewBatchQueue(collect Collector, proc Processor, logger *slog.Logger, opts ...Option) *BatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &BatchQueue{
		collect: collect,
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *BatchQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *BatchQueue) run(workerID int, job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	log := q.logger.With("worker_id", workerID, "job_id", job.ID, "trace_id", job.TraceID)

	out, err := func() (*extraction.Outcome, error) {
		docs, err := q.collect.Collect(ctx, job.Paths)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return q.proc.Process(ctx, docs)
	}()

	switch {
	case err != nil:
		log.Error("queue.job.failed", "paths", len(job.Paths), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
	case out == nil:
		log.Info("queue.job.empty", "paths", len(job.Paths))
	default:
		log.Info("queue.job.ok",
			"batch_id", out.Result.ID,
			"documents", len(out.Result.Entries),
			"invoices", len(out.Assembly.Invoices),
			"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	if q.onDone != nil {
		q.onDone(job, out, err)
	}
}

// Enqueue blocks while the queue is full until there is room or ctx is done.
func (q *BatchQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.job.enqueued", "job_id", job.ID, "paths", len(job.Paths))
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *BatchQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
