package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
// The credential is checked here, per call, never at construction.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"file", req.FilenameHint,
		"text_len", len(req.Text),
	)

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Error("llm.extract.no_api_key", "req_id", rid)
		return llm.Response{}, &llm.ExtractionError{Cause: constants.CauseAuth, Err: llm.ErrMissingAPIKey}
	}

	schema := req.Schema
	if schema == nil {
		schema = llm.BuildInvoiceJSONSchema()
	}
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}
	if *c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	res, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, rid, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err, "cause", llm.CauseOf(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(res.Body, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(res.Body),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, &llm.ExtractionError{Cause: constants.CauseMalformedOutput, StatusCode: res.StatusCode, Err: err}
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, &llm.ExtractionError{Cause: constants.CauseMalformedOutput, StatusCode: res.StatusCode, Err: errors.New("no choices in response")}
	}

	content, err := llm.CleanContent(cc.Choices[0].Message.Content)
	if err != nil {
		c.log.Error("llm.extract.malformed_content",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, err
	}

	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	elapsed := time.Since(start)
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"model", model,
		"content_bytes", len(content),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return llm.Response{Content: content, Model: model, RequestID: rid, Elapsed: elapsed}, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
