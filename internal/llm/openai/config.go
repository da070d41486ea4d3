package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for any OpenAI-compatible chat/completions endpoint (Groq by default).
type Config struct {
	APIKey      string        // if empty, falls back to env LLM_API_KEY, GROQ_API_KEY, OPENAI_API_KEY
	BaseURL     string        // default https://api.groq.com/openai/v1
	Model       string        // e.g., "llama-3.1-8b-instant"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	JSONMode    *bool         // send response_format json_object; default true
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		for _, k := range []string{"LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"} {
			if v := os.Getenv(k); v != "" {
				cfg.APIKey = v
				break
			}
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.JSONMode == nil {
		on := true
		cfg.JSONMode = &on
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.cfg.Model }
