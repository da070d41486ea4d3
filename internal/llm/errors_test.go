package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

func TestCauseForStatus(t *testing.T) {
	tests := map[int]constants.ExtractionCause{
		401: constants.CauseAuth,
		403: constants.CauseAuth,
		429: constants.CauseRateLimit,
		408: constants.CauseTimeout,
		504: constants.CauseTimeout,
		500: constants.CauseNetwork,
		503: constants.CauseNetwork,
		400: constants.CauseUpstream,
		404: constants.CauseUpstream,
	}
	for code, want := range tests {
		if got := CauseForStatus(code); got != want {
			t.Errorf("CauseForStatus(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestCauseOfWrapped(t *testing.T) {
	err := fmt.Errorf("doc a.pdf: %w", &ExtractionError{Cause: constants.CauseAuth, Err: ErrMissingAPIKey})
	if CauseOf(err) != constants.CauseAuth {
		t.Errorf("CauseOf = %s", CauseOf(err))
	}
	if CauseOf(fmt.Errorf("x: %w", context.DeadlineExceeded)) != constants.CauseTimeout {
		t.Error("deadline should classify as timeout")
	}
}
