// Package provider builds the configured FieldExtractor.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/vertex"
)

// New returns the provider named in cfg wrapped with retries, plus a close func for
// providers that hold connections. Credentials are not checked here; a bad or missing
// credential fails each call with cause auth.
func New(cfg common.LLMConfig, logger *slog.Logger) (llm.FieldExtractor, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	retry := llm.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}
	noop := func() error { return nil }

	switch cfg.Provider {
	case "", common.ProviderOpenAI:
		c := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		logger.Info("llm provider ready", "provider", common.ProviderOpenAI, "model", c.Model(), "base_url", cfg.BaseURL)
		return llm.WithRetry(c, retry, logger), noop, nil

	case common.ProviderVertex:
		model := cfg.Model
		if model == common.DefaultConfig().LLM.Model {
			// the default names a Groq model; let the Vertex client pick its own
			model = ""
		}
		c, err := vertex.NewClient(vertex.Config{
			ProjectID:   cfg.VertexProject,
			Region:      cfg.VertexRegion,
			Model:       model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("vertex provider: %w", err)
		}
		logger.Info("llm provider ready", "provider", common.ProviderVertex, "model", c.Model())
		return llm.WithRetry(c, retry, logger), c.Close, nil

	default:
		return nil, nil, common.NewAppError("CONFIG_ERROR", "unknown LLM provider "+cfg.Provider, common.ErrInvalidInput)
	}
}
