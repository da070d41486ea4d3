package pipeline

import (
	"log/slog"
	"time"
)

// Config controls how a batch is executed.
type Config struct {
	Concurrency     int           // <= 1 runs documents one after another
	DocumentTimeout time.Duration // 0 = bounded only by the caller's context
	MaxPromptChars  int           // 0 = send the full document text
}

// Progress is reported once per finished document.
type Progress struct {
	Index     int
	Filename  string
	Done      int
	Total     int
	Succeeded bool
}

type Option func(*Pipeline)

func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.cfg.Concurrency = n }
}

func WithDocumentTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.cfg.DocumentTimeout = d }
}

func WithMaxPromptChars(n int) Option {
	return func(p *Pipeline) { p.cfg.MaxPromptChars = n }
}

// WithProgress registers an observer. Calls are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithConfig applies every field of cfg at once.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}
