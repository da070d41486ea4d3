package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Report   ReportConfig   `yaml:"report"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig holds batch history database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// OCRConfig holds OCR fallback configuration
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Pdftoppm  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	Lang      string `yaml:"lang"`
	DPI       int    `yaml:"dpi"`
	MaxPages  int    `yaml:"max_pages"`
	StderrCap int    `yaml:"stderr_cap"`
}

// LLMConfig holds field extractor configuration
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"-"`
	BaseURL        string        `yaml:"base_url"`
	Temperature    float32       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	MaxPromptChars int           `yaml:"max_prompt_chars"`
	VertexProject  string        `yaml:"vertex_project"`
	VertexRegion   string        `yaml:"vertex_region"`
}

// PipelineConfig holds batch execution configuration
type PipelineConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
}

// ReportConfig holds report rendering and storage configuration
type ReportConfig struct {
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	PageSize string `yaml:"page_size"`
}

const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "file:invoices.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			GRPCAddr:    ":9090",
			MaxUploadMB: 32,
		},
		OCR: OCRConfig{
			Enabled:   false,
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Lang:      "eng",
			DPI:       300,
			MaxPages:  5,
			StderrCap: 8 << 10,
		},
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			Model:          "llama-3.1-8b-instant",
			BaseURL:        "https://api.groq.com/openai/v1",
			Temperature:    0,
			Timeout:        45 * time.Second,
			MaxRetries:     2,
			RetryBaseDelay: 500 * time.Millisecond,
			MaxPromptChars: 24000,
			VertexRegion:   "us-central1",
		},
		Pipeline: PipelineConfig{
			Concurrency:     1,
			DocumentTimeout: 0,
		},
		Report: ReportConfig{
			Dir:      "./reports",
			PageSize: "Letter",
		},
		LogLevel: "info",
	}
}

// LoadConfig builds configuration from defaults, the optional YAML file named by
// INVOICE_CONFIG, and finally environment variables. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}
	cfg := DefaultConfig()
	if path := os.Getenv("INVOICE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	c.OCR.Enabled = getEnvAsBool("OCR_ENABLED", c.OCR.Enabled)
	c.OCR.Pdftoppm = getEnv("OCR_PDFTOPPM", c.OCR.Pdftoppm)
	c.OCR.Tesseract = getEnv("OCR_TESSERACT", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.StderrCap = getEnvAsInt("OCR_STDERR_CAP", c.OCR.StderrCap)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("GROQ_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey)))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxRetries = getEnvAsInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)
	c.LLM.RetryBaseDelay = getEnvAsDuration("LLM_RETRY_BASE_DELAY", c.LLM.RetryBaseDelay)
	c.LLM.MaxPromptChars = getEnvAsInt("LLM_MAX_PROMPT_CHARS", c.LLM.MaxPromptChars)
	c.LLM.VertexProject = getEnv("VERTEX_PROJECT", c.LLM.VertexProject)
	c.LLM.VertexRegion = getEnv("VERTEX_REGION", c.LLM.VertexRegion)

	c.Pipeline.Concurrency = getEnvAsInt("PIPELINE_CONCURRENCY", c.Pipeline.Concurrency)
	c.Pipeline.DocumentTimeout = getEnvAsDuration("PIPELINE_DOCUMENT_TIMEOUT", c.Pipeline.DocumentTimeout)

	c.Report.Dir = getEnv("REPORT_DIR", c.Report.Dir)
	c.Report.Bucket = getEnv("REPORT_BUCKET", c.Report.Bucket)
	c.Report.PageSize = getEnv("REPORT_PAGE_SIZE", c.Report.PageSize)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks structural values only. The LLM credential is checked when a call is made.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required, HostPort)
	v.Field("GRPC_ADDR", c.Server.GRPCAddr, Required, HostPort)
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderOpenAI, ProviderVertex))
	v.Field("LLM_MODEL", c.LLM.Model, Required)
	v.Field("MAX_UPLOAD_MB", c.Server.MaxUploadMB, Positive)
	v.Field("LLM_MAX_RETRIES", c.LLM.MaxRetries, NonNegative)
	v.Field("REPORT_PAGE_SIZE", c.Report.PageSize, OneOf("Letter", "A4", "Legal"))
	if c.LLM.Provider == ProviderVertex {
		v.Field("VERTEX_PROJECT", c.LLM.VertexProject, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
