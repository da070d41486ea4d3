package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// ExtractionError is a failed field extraction call.
type ExtractionError struct {
	Cause      constants.ExtractionCause
	StatusCode int           // HTTP status when the provider answered; 0 otherwise
	RetryAfter time.Duration // provider hint on rate limits
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction %s (status %d): %v", e.Cause, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extraction %s: %v", e.Cause, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MappingError means the provider answered but the answer cannot become an ExtractedInvoice.
type MappingError struct {
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *MappingError) Unwrap() error { return e.Err }

var ErrMissingAPIKey = errors.New("missing API key")

// CauseForStatus classifies a non-2xx provider answer.
func CauseForStatus(code int) constants.ExtractionCause {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return constants.CauseAuth
	case code == http.StatusTooManyRequests:
		return constants.CauseRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return constants.CauseTimeout
	case code >= 500:
		return constants.CauseNetwork
	default:
		return constants.CauseUpstream
	}
}

// CauseForTransport classifies an error raised before any response arrived.
func CauseForTransport(err error) constants.ExtractionCause {
	if errors.Is(err, context.DeadlineExceeded) {
		return constants.CauseTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return constants.CauseTimeout
	}
	return constants.CauseNetwork
}

// CauseOf returns the extraction cause carried by err. Untyped errors are classified as transport errors.
func CauseOf(err error) constants.ExtractionCause {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Cause
	}
	return CauseForTransport(err)
}
