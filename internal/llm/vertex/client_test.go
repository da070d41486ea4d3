package vertex

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(s)}}}},
	}
}

func TestExtractFieldsOK(t *testing.T) {
	g := &fakeGenerator{resp: textResponse("```json\n{\"invoice_found\": true, \"invoice_number\": \"INV-9\"}\n```")}
	c := &Client{cfg: Config{Model: "gemini-test"}, model: g, logger: slog.Default()}

	resp, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("Invoice INV-9", "a.pdf", 0))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if string(resp.Content) != `{"invoice_found": true, "invoice_number": "INV-9"}` {
		t.Errorf("content = %s", resp.Content)
	}
	if len(g.parts) != 2 {
		t.Errorf("parts sent = %d, want 2", len(g.parts))
	}
}

func TestExtractFieldsClassifiesErrors(t *testing.T) {
	tests := []struct {
		err  error
		want constants.ExtractionCause
	}{
		{status.Error(codes.Unauthenticated, "bad creds"), constants.CauseAuth},
		{status.Error(codes.PermissionDenied, "no access"), constants.CauseAuth},
		{status.Error(codes.ResourceExhausted, "quota"), constants.CauseRateLimit},
		{status.Error(codes.DeadlineExceeded, "slow"), constants.CauseTimeout},
		{status.Error(codes.Unavailable, "down"), constants.CauseNetwork},
		{status.Error(codes.InvalidArgument, "bad"), constants.CauseUpstream},
		{context.DeadlineExceeded, constants.CauseTimeout},
	}
	for _, tt := range tests {
		c := &Client{model: &fakeGenerator{err: tt.err}, logger: slog.Default()}
		_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
		var ee *llm.ExtractionError
		if !errors.As(err, &ee) {
			t.Fatalf("%v: err = %v", tt.err, err)
		}
		if ee.Cause != tt.want {
			t.Errorf("%v: cause = %s, want %s", tt.err, ee.Cause, tt.want)
		}
	}
}

func TestExtractFieldsEmptyCandidate(t *testing.T) {
	c := &Client{model: &fakeGenerator{resp: &genai.GenerateContentResponse{}}, logger: slog.Default()}
	_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
	if llm.CauseOf(err) != constants.CauseMalformedOutput {
		t.Fatalf("err = %v, want malformed_output", err)
	}
}

func TestExtractFieldsDialFailureIsAuth(t *testing.T) {
	dials := 0
	c, err := NewClient(Config{ProjectID: "p"}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	c.dial = func(context.Context, Config) (*genai.Client, generator, error) {
		dials++
		return nil, nil, errors.New("open /nonexistent/creds.json: no such file or directory")
	}

	for i := 0; i < 2; i++ {
		_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
		if llm.CauseOf(err) != constants.CauseAuth {
			t.Fatalf("call %d: err = %v, want auth", i, err)
		}
	}
	if dials != 1 {
		t.Errorf("dialed %d times, want 1", dials)
	}
}

func TestExtractFieldsDialsOnFirstCall(t *testing.T) {
	g := &fakeGenerator{resp: textResponse(`{"invoice_found": true}`)}
	c, err := NewClient(Config{ProjectID: "p"}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	dials := 0
	c.dial = func(ctx context.Context, cfg Config) (*genai.Client, generator, error) {
		dials++
		if cfg.Model != "gemini-2.0-flash" || cfg.Region != "us-central1" {
			t.Errorf("cfg = %+v", cfg)
		}
		return nil, g, nil
	}
	if dials != 0 {
		t.Fatal("dialed during construction")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.ExtractFields(ctx, llm.NewExtractRequest("x", "x.pdf", 0)); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("y", "y.pdf", 0)); err != nil {
		t.Fatal(err)
	}
	if dials != 1 {
		t.Errorf("dialed %d times, want 1", dials)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestCloseBeforeUse(t *testing.T) {
	c, _ := NewClient(Config{ProjectID: "p"}, slog.Default())
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
	if !errors.Is(err, errClosed) {
		t.Fatalf("err = %v", err)
	}
}
