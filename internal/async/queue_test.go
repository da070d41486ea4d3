package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/services/extraction"
)

type procFunc func(ctx context.Context, docs []*entity.UploadedDocument) (*extraction.Outcome, error)

func (f procFunc) Process(ctx context.Context, docs []*entity.UploadedDocument) (*extraction.Outcome, error) {
	return f(ctx, docs)
}

func pathDocs(_ context.Context, paths []string) ([]*entity.UploadedDocument, error) {
	docs := make([]*entity.UploadedDocument, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, &entity.UploadedDocument{Filename: p})
	}
	return docs, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBatchQueueProcessesJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	proc := procFunc(func(_ context.Context, docs []*entity.UploadedDocument) (*extraction.Outcome, error) {
		out := &extraction.Outcome{Result: entity.BatchResult{ID: uuid.New()}}
		for _, d := range docs {
			out.Result.Entries = append(out.Result.Entries, entity.Entry{Filename: d.Filename})
		}
		return out, nil
	})
	q := NewBatchQueue(CollectorFunc(pathDocs), proc, quiet(),
		WithWorkers(3),
		WithOnDone(func(job Job, out *extraction.Outcome, err error) {
			if err != nil {
				t.Errorf("job %v: %v", job.ID, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, e := range out.Result.Entries {
				seen[e.Filename]++
			}
		}),
	)

	ctx := context.Background()
	for _, p := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		if err := q.Enqueue(ctx, Job{Paths: []string{p}}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Shutdown(ctx)

	if len(seen) != 4 {
		t.Fatalf("processed %v, want 4 files", seen)
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("%s processed %d times", name, n)
		}
	}
}

func TestBatchQueueReportsErrors(t *testing.T) {
	boom := errors.New("collect failed")
	failing := CollectorFunc(func(context.Context, []string) ([]*entity.UploadedDocument, error) { return nil, boom })
	called := false
	proc := procFunc(func(context.Context, []*entity.UploadedDocument) (*extraction.Outcome, error) {
		called = true
		return nil, nil
	})
	var got error
	q := NewBatchQueue(failing, proc, quiet(), WithOnDone(func(_ Job, _ *extraction.Outcome, err error) { got = err }))
	if err := q.Enqueue(context.Background(), Job{Paths: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	q.Shutdown(context.Background())

	if !errors.Is(got, boom) {
		t.Fatalf("err = %v, want %v", got, boom)
	}
	if called {
		t.Fatal("processor called after collect error")
	}
}

func TestBatchQueueSkipsEmptyJobs(t *testing.T) {
	proc := procFunc(func(context.Context, []*entity.UploadedDocument) (*extraction.Outcome, error) {
		t.Error("processor called for empty job")
		return nil, nil
	})
	done := 0
	q := NewBatchQueue(CollectorFunc(pathDocs), proc, quiet(), WithOnDone(func(_ Job, out *extraction.Outcome, err error) {
		done++
		if out != nil || err != nil {
			t.Errorf("out=%v err=%v", out, err)
		}
	}))
	_ = q.Enqueue(context.Background(), Job{})
	q.Shutdown(context.Background())
	if done != 1 {
		t.Fatalf("onDone called %d times", done)
	}
}

func TestBatchQueueClosed(t *testing.T) {
	q := NewBatchQueue(CollectorFunc(pathDocs), procFunc(func(context.Context, []*entity.UploadedDocument) (*extraction.Outcome, error) {
		return nil, nil
	}), quiet())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), Job{Paths: []string{"a.pdf"}}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestBatchQueueBackpressureHonorsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	proc := procFunc(func(context.Context, []*entity.UploadedDocument) (*extraction.Outcome, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	})
	q := NewBatchQueue(CollectorFunc(pathDocs), proc, quiet(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	bg := context.Background()
	if err := q.Enqueue(bg, Job{Paths: []string{"running.pdf"}}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := q.Enqueue(bg, Job{Paths: []string{"queued.pdf"}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{Paths: []string{"blocked.pdf"}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
