package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// textParser returns the document bytes as text, or a parse error for names in fail.
type textParser struct {
	fail map[string]constants.ParseCause
}

func (p textParser) Extract(_ context.Context, doc entity.UploadedDocument) (entity.ParsedContent, error) {
	if cause, ok := p.fail[doc.Filename]; ok {
		return entity.ParsedContent{}, &extract.ParseError{Cause: cause, Err: errors.New("bad bytes")}
	}
	return entity.ParsedContent{
		Segments: []entity.Segment{{Page: 1, Kind: entity.SegmentText, Text: string(doc.Content)}},
		Pages:    1,
		Method:   extract.MethodPDFText,
	}, nil
}

type extractFunc func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error)

func (f extractFunc) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
	return f(ctx, req)
}

// echoInvoice answers with an invoice whose number is the document text.
func echoInvoice(_ context.Context, req llm.ExtractRequest) (llm.Response, error) {
	body := fmt.Sprintf(`{"invoice_found": true, "invoice_number": %q, "total": "10.00"}`, req.Text)
	return llm.Response{Content: []byte(body), Model: "test-model", Attempts: 1}, nil
}

func docs(names ...string) []*entity.UploadedDocument {
	out := make([]*entity.UploadedDocument, 0, len(names))
	for _, n := range names {
		out = append(out, entity.NewUploadedDocument(n, []byte("INV-"+strings.TrimSuffix(n, ".pdf"))))
	}
	return out
}

func TestRunPreservesOrder(t *testing.T) {
	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("doc%02d.pdf", i)
	}
	jitter := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return echoInvoice(ctx, req)
	})

	for _, conc := range []int{1, 4, 32} {
		t.Run(fmt.Sprintf("concurrency=%d", conc), func(t *testing.T) {
			p := New(textParser{}, jitter, WithConcurrency(conc))
			res, err := p.Run(context.Background(), docs(names...))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Entries) != len(names) {
				t.Fatalf("entries = %d, want %d", len(res.Entries), len(names))
			}
			for i, e := range res.Entries {
				if e.Index != i || e.Filename != names[i] {
					t.Errorf("entry %d = (%d, %s)", i, e.Index, e.Filename)
				}
				want := "INV-" + strings.TrimSuffix(names[i], ".pdf")
				if e.Invoice == nil || e.Invoice.InvoiceNumber != want {
					t.Errorf("entry %d invoice = %+v", i, e.Invoice)
				}
				if e.Model != "test-model" {
					t.Errorf("entry %d model = %q", i, e.Model)
				}
			}
		})
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	llmFail := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		switch req.FilenameHint {
		case "c.pdf":
			return llm.Response{}, &llm.ExtractionError{Cause: constants.CauseTimeout, Err: context.DeadlineExceeded}
		case "d.pdf":
			return llm.Response{Content: []byte(`{"invoice_found": false}`)}, nil
		case "e.pdf":
			return llm.Response{Content: []byte(`{"invoice_found": true, "line_items": "oops"}`)}, nil
		}
		return echoInvoice(ctx, req)
	})
	parser := textParser{fail: map[string]constants.ParseCause{"b.pdf": constants.ParseCauseEncrypted}}

	res, err := New(parser, llmFail, WithConcurrency(3)).Run(context.Background(), docs("a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	tests := []struct {
		idx   int
		ok    bool
		kind  constants.FailureKind
		cause string
	}{
		{0, true, "", ""},
		{1, false, constants.ParseFailure, string(constants.ParseCauseEncrypted)},
		{2, false, constants.ExtractionFailure, string(constants.CauseTimeout)},
		{3, false, constants.MalformedResult, ""},
		{4, false, constants.MalformedResult, ""},
		{5, true, "", ""},
	}
	for _, tc := range tests {
		e := res.Entries[tc.idx]
		if e.Succeeded() != tc.ok {
			t.Errorf("%s succeeded = %v, want %v", e.Filename, e.Succeeded(), tc.ok)
			continue
		}
		if tc.ok {
			if e.Failure != nil {
				t.Errorf("%s has both invoice and failure", e.Filename)
			}
			continue
		}
		if e.Failure == nil || e.Invoice != nil {
			t.Fatalf("%s entry = %+v", e.Filename, e)
		}
		if e.Failure.Kind != tc.kind || e.Failure.Cause != tc.cause {
			t.Errorf("%s failure = %s/%s, want %s/%s", e.Filename, e.Failure.Kind, e.Failure.Cause, tc.kind, tc.cause)
		}
		if e.Failure.Filename != e.Filename || e.Failure.Message == "" {
			t.Errorf("%s failure = %+v", e.Filename, e.Failure)
		}
	}
	if ok, failed := res.Counts(); ok != 2 || failed != 4 {
		t.Errorf("counts = %d/%d", ok, failed)
	}
}

func TestRunEmptyAndNil(t *testing.T) {
	var calls atomic.Int32
	count := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		calls.Add(1)
		return echoInvoice(ctx, req)
	})
	p := New(textParser{}, count)

	res, err := p.Run(context.Background(), nil)
	if err != nil || len(res.Entries) != 0 {
		t.Fatalf("empty batch = %+v, %v", res, err)
	}

	batch := docs("a.pdf", "b.pdf")
	batch = append(batch, nil)
	if _, err := p.Run(context.Background(), batch); !errors.Is(err, ErrNilDocument) {
		t.Fatalf("err = %v, want ErrNilDocument", err)
	}
	if calls.Load() != 0 {
		t.Errorf("extractor called %d times before nil check", calls.Load())
	}
}

func TestRunEmptyTextIsParseFailure(t *testing.T) {
	p := New(textParser{}, extractFunc(echoInvoice))
	res, err := p.Run(context.Background(), []*entity.UploadedDocument{entity.NewUploadedDocument("blank.pdf", []byte("   "))})
	if err != nil {
		t.Fatal(err)
	}
	f := res.Entries[0].Failure
	if f == nil || f.Kind != constants.ParseFailure || f.Cause != string(constants.ParseCauseEmpty) {
		t.Fatalf("failure = %+v", f)
	}
}

func TestRunRecoversFromPanics(t *testing.T) {
	boom := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		if req.FilenameHint == "b.pdf" {
			panic("provider exploded")
		}
		return echoInvoice(ctx, req)
	})
	res, err := New(textParser{}, boom, WithConcurrency(2)).Run(context.Background(), docs("a.pdf", "b.pdf", "c.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Entries[0].Succeeded() || !res.Entries[2].Succeeded() {
		t.Errorf("neighbours of a panicking document must succeed: %+v", res.Entries)
	}
	f := res.Entries[1].Failure
	if f == nil || f.Kind != constants.ExtractionFailure || !strings.Contains(f.Message, "provider exploded") {
		t.Fatalf("failure = %+v", f)
	}
}

func TestRunDocumentTimeout(t *testing.T) {
	slow := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		if req.FilenameHint == "slow.pdf" {
			<-ctx.Done()
			return llm.Response{}, &llm.ExtractionError{Cause: llm.CauseForTransport(ctx.Err()), Err: ctx.Err()}
		}
		return echoInvoice(ctx, req)
	})
	p := New(textParser{}, slow, WithDocumentTimeout(20*time.Millisecond), WithConcurrency(2))
	res, err := p.Run(context.Background(), docs("slow.pdf", "fast.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	f := res.Entries[0].Failure
	if f == nil || f.Kind != constants.ExtractionFailure || f.Cause != string(constants.CauseTimeout) {
		t.Fatalf("slow failure = %+v", f)
	}
	if !res.Entries[1].Succeeded() {
		t.Errorf("fast entry = %+v", res.Entries[1])
	}
}

func TestRunReportsProgress(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []Progress
	)
	p := New(textParser{}, extractFunc(echoInvoice), WithConcurrency(4), WithProgress(func(pr Progress) {
		mu.Lock()
		seen = append(seen, pr)
		mu.Unlock()
	}))
	if _, err := p.Run(context.Background(), docs("a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf")); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 5 {
		t.Fatalf("progress calls = %d", len(seen))
	}
	indexes := map[int]bool{}
	for i, pr := range seen {
		if pr.Done != i+1 || pr.Total != 5 || !pr.Succeeded {
			t.Errorf("progress %d = %+v", i, pr)
		}
		indexes[pr.Index] = true
	}
	if len(indexes) != 5 {
		t.Errorf("indexes = %v", indexes)
	}
}

func TestRunTruncatesPrompt(t *testing.T) {
	var got llm.ExtractRequest
	capture := extractFunc(func(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
		got = req
		return echoInvoice(ctx, req)
	})
	p := New(textParser{}, capture, WithMaxPromptChars(100))
	if _, err := p.Run(context.Background(), docs("a.pdf")); err != nil {
		t.Fatal(err)
	}
	if got.MaxChars != 100 || got.FilenameHint != "a.pdf" || got.Schema == nil || len(got.Fields) == 0 {
		t.Errorf("request = %+v", got)
	}
}
