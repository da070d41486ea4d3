package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

func TestNewOpenAIProvider(t *testing.T) {
	cfg := common.DefaultConfig().LLM
	fe, closeFn, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if fe == nil || closeFn == nil {
		t.Fatal("nil extractor or close func")
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestNewVertexProviderDefersCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/creds.json")
	cfg := common.DefaultConfig().LLM
	cfg.Provider = common.ProviderVertex
	cfg.VertexProject = "invoices-test"
	cfg.MaxRetries = 0

	fe, closeFn, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = closeFn() }()

	_, err = fe.ExtractFields(context.Background(), llm.NewExtractRequest("Invoice INV-1", "a.pdf", 0))
	var ee *llm.ExtractionError
	if !errors.As(err, &ee) || ee.Cause != constants.CauseAuth {
		t.Fatalf("err = %v, want auth extraction error", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := common.DefaultConfig().LLM
	cfg.Provider = "carrier-pigeon"
	_, _, err := New(cfg, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
