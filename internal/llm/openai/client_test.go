package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"model": "llama-test",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestExtractFieldsSendsPromptAndReturnsContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, chatResponse(`{"invoice_found": true, "invoice_number": "INV-1001", "total": "250.00"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "llama-test"}, nil)
	resp, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("INVOICE INV-1001 Total 250.00", "a.pdf", 0))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if resp.Model != "llama-test" || resp.RequestID == "" {
		t.Errorf("resp = %+v", resp)
	}
	inv, err := llm.MapInvoice(resp.Content, "a.pdf", nil)
	if err != nil {
		t.Fatalf("MapInvoice: %v", err)
	}
	if inv.InvoiceNumber != "INV-1001" || inv.Total != "250.00" {
		t.Errorf("invoice = %+v", inv)
	}

	if got["model"] != "llama-test" {
		t.Errorf("model sent = %v", got["model"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", got["response_format"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	if !strings.Contains(user["content"].(string), "INV-1001") || !strings.Contains(user["content"].(string), "Filename: a.pdf") {
		t.Errorf("user message = %v", user["content"])
	}
}

func TestExtractFieldsMissingKeyIsAuth(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
	var ee *llm.ExtractionError
	if !errors.As(err, &ee) || ee.Cause != constants.CauseAuth {
		t.Fatalf("err = %v, want auth", err)
	}
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("err should wrap ErrMissingAPIKey")
	}
	if called {
		t.Error("no request should be sent without a key")
	}
}

func TestExtractFieldsClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		header string
		cause  constants.ExtractionCause
	}{
		{http.StatusUnauthorized, "", constants.CauseAuth},
		{http.StatusTooManyRequests, "3", constants.CauseRateLimit},
		{http.StatusBadGateway, "", constants.CauseNetwork},
		{http.StatusGatewayTimeout, "", constants.CauseTimeout},
		{http.StatusBadRequest, "", constants.CauseUpstream},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tt.header != "" {
				w.Header().Set("Retry-After", tt.header)
			}
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
		}))
		c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
		_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
		srv.Close()

		var ee *llm.ExtractionError
		if !errors.As(err, &ee) {
			t.Fatalf("status %d: err = %v", tt.status, err)
		}
		if ee.Cause != tt.cause || ee.StatusCode != tt.status {
			t.Errorf("status %d: got cause %s status %d", tt.status, ee.Cause, ee.StatusCode)
		}
		if tt.header == "3" && ee.RetryAfter != 3*time.Second {
			t.Errorf("RetryAfter = %v", ee.RetryAfter)
		}
	}
}

func TestExtractFieldsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
	if llm.CauseOf(err) != constants.CauseTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestExtractFieldsMalformedOutput(t *testing.T) {
	tests := map[string]string{
		"not json envelope": "<html>gateway</html>",
		"no choices":        `{"choices": []}`,
		"prose content":     chatResponse("The invoice total is 250."),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()
			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, err := c.ExtractFields(context.Background(), llm.NewExtractRequest("x", "x.pdf", 0))
			if llm.CauseOf(err) != constants.CauseMalformedOutput {
				t.Fatalf("err = %v, want malformed_output", err)
			}
		})
	}
}
