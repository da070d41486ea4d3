package extract

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// ParseError reports why a document could not be turned into text.
type ParseError struct {
	Cause constants.ParseCause
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("parse %s", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(cause constants.ParseCause, format string, args ...any) *ParseError {
	return &ParseError{Cause: cause, Err: fmt.Errorf(format, args...)}
}

// CauseOf returns the parse cause carried by err, or corrupt for untyped errors.
func CauseOf(err error) constants.ParseCause {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Cause
	}
	return constants.ParseCauseCorrupt
}
