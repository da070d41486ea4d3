package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

type Config struct {
	ProjectID   string
	Region      string  // default us-central1
	Model       string  // default gemini-2.0-flash
	Temperature float32 // 0..2
}

// generator is the slice of *genai.GenerativeModel the client uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// dialFunc opens the Vertex client. Credentials are resolved here.
type dialFunc func(ctx context.Context, cfg Config) (*genai.Client, generator, error)

// Client extracts invoice fields with Gemini on Vertex AI. The underlying genai client is
// opened on the first call, so missing credentials show up as auth failures per document.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc

	once    sync.Once
	initErr error
	base    *genai.Client
	model   generator
}

// NewClient checks the configuration only; nothing is dialed until ExtractFields.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("vertex: project id is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger, dial: dialGenAI}, nil
}

func dialGenAI(ctx context.Context, cfg Config) (*genai.Client, generator, error) {
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	m := base.GenerativeModel(cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(cfg.Temperature),
	}
	return base, m, nil
}

var errClosed = errors.New("vertex: client closed")

// generator opens the client once. The dial outlives the calling document's context.
func (c *Client) generator(ctx context.Context) (generator, error) {
	c.once.Do(func() {
		if c.model != nil || c.dial == nil {
			return
		}
		start := time.Now()
		c.base, c.model, c.initErr = c.dial(context.WithoutCancel(ctx), c.cfg)
		if c.initErr != nil {
			c.logger.Error("llm.vertex.dial_failed", "project", c.cfg.ProjectID, "region", c.cfg.Region, "error", c.initErr)
			return
		}
		c.logger.Info("llm.vertex.dial_ok", "project", c.cfg.ProjectID, "region", c.cfg.Region,
			"elapsed_ms", time.Since(start).Milliseconds())
	})
	if c.initErr != nil {
		return nil, &llm.ExtractionError{Cause: constants.CauseAuth, Err: c.initErr}
	}
	if c.model == nil {
		return nil, &llm.ExtractionError{Cause: constants.CauseAuth, Err: errors.New("vertex: no client configured")}
	}
	return c.model, nil
}

// Close releases the genai client if one was opened. Later calls fail.
func (c *Client) Close() error {
	c.once.Do(func() { c.initErr = errClosed })
	if c.base == nil {
		return nil
	}
	return c.base.Close()
}

func (c *Client) Model() string { return c.cfg.Model }

// ExtractFields implements llm.FieldExtractor. The system prompt and schema travel as the
// first text part since the model handle is shared across concurrent calls.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "vertex",
		"model", c.cfg.Model,
		"file", req.FilenameHint,
		"text_len", len(req.Text),
	)

	model, err := c.generator(ctx)
	if err != nil {
		c.logger.Error("llm.extract.vertex_error", "req_id", rid, "error", err, "cause", constants.CauseAuth)
		return llm.Response{}, err
	}

	schema := req.Schema
	if schema == nil {
		schema = llm.BuildInvoiceJSONSchema()
	}
	resp, err := model.GenerateContent(ctx,
		genai.Text(llm.BuildSystemPrompt(req)+"\n\nJSON Schema:\n"+schemaJSON(schema)),
		genai.Text(llm.BuildUserPrompt(req)),
	)
	if err != nil {
		ee := classify(err)
		c.logger.Error("llm.extract.vertex_error",
			"req_id", rid, "error", err, "cause", ee.Cause,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, ee
	}

	content, err := llm.CleanContent(responseText(resp))
	if err != nil {
		c.logger.Error("llm.extract.malformed_content", "req_id", rid, "error", err)
		return llm.Response{}, err
	}
	elapsed := time.Since(start)
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"content_bytes", len(content),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return llm.Response{Content: content, Model: c.cfg.Model, RequestID: rid, Elapsed: elapsed}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// classify maps gRPC status codes from Vertex onto extraction causes.
func classify(err error) *llm.ExtractionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.ExtractionError{Cause: constants.CauseTimeout, Err: err}
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return &llm.ExtractionError{Cause: constants.CauseAuth, Err: err}
	case codes.ResourceExhausted:
		return &llm.ExtractionError{Cause: constants.CauseRateLimit, Err: err}
	case codes.DeadlineExceeded:
		return &llm.ExtractionError{Cause: constants.CauseTimeout, Err: err}
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return &llm.ExtractionError{Cause: constants.CauseNetwork, Err: err}
	case codes.Unknown:
		return &llm.ExtractionError{Cause: llm.CauseForTransport(err), Err: err}
	default:
		return &llm.ExtractionError{Cause: constants.CauseUpstream, Err: err}
	}
}
