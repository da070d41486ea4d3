package entity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Failure explains why a document produced no invoice.
type Failure struct {
	Filename string                `json:"filename"`
	Kind     constants.FailureKind `json:"kind"`
	Cause    string                `json:"cause,omitempty"`
	Message  string                `json:"message"`
}

func (f Failure) String() string {
	if f.Cause != "" {
		return fmt.Sprintf("%s: %s (%s): %s", f.Filename, f.Kind, f.Cause, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Filename, f.Kind, f.Message)
}

// Entry is the outcome for the document at Index. Exactly one of Invoice or Failure is set.
type Entry struct {
	Index    int               `json:"index"`
	Filename string            `json:"filename"`
	Invoice  *ExtractedInvoice `json:"invoice,omitempty"`
	Failure  *Failure          `json:"failure,omitempty"`
	Model    string            `json:"model,omitempty"`
}

func (e Entry) Succeeded() bool { return e.Invoice != nil }

// BatchResult has one entry per submitted document, in submission order.
type BatchResult struct {
	ID      uuid.UUID `json:"id"`
	Entries []Entry   `json:"entries"`
}

// Counts returns the number of successful and failed entries.
func (r BatchResult) Counts() (succeeded, failed int) {
	for _, e := range r.Entries {
		if e.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
