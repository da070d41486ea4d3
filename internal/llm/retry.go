package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds retries of transient failures (network, timeout, rate_limit).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type retrying struct {
	next   FieldExtractor
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// WithRetry wraps next so transient extraction failures are retried with exponential backoff
// and jitter. auth, upstream and malformed_output failures return immediately.
func WithRetry(next FieldExtractor, cfg RetryConfig, logger *slog.Logger) FieldExtractor {
	if cfg.MaxRetries <= 0 {
		return next
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{next: next, cfg: cfg, logger: logger, sleep: sleepCtx}
}

func (r *retrying) ExtractFields(ctx context.Context, req ExtractRequest) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		resp, err := r.next.ExtractFields(ctx, req)
		if err == nil {
			resp.Attempts = attempt + 1
			return resp, nil
		}
		lastErr = err

		cause := CauseOf(err)
		if !cause.Transient() || attempt == r.cfg.MaxRetries {
			break
		}
		delay := r.backoff(attempt, err)
		r.logger.Warn("llm.extract.retry",
			"file", req.FilenameHint,
			"attempt", attempt+1,
			"cause", cause,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			// caller gave up; report the last provider error rather than the cancellation
			break
		}
	}
	return Response{}, lastErr
}

func (r *retrying) backoff(attempt int, err error) time.Duration {
	var ee *ExtractionError
	if errors.As(err, &ee) && ee.RetryAfter > 0 {
		return min(ee.RetryAfter, r.cfg.MaxDelay)
	}
	d := r.cfg.BaseDelay << attempt
	if d <= 0 || d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	// jitter within [d/2, d]
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
