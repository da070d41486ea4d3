package report

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// FailureSummary is a failed document as shown next to a report.
type FailureSummary struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	Cause    string `json:"cause,omitempty"`
	Message  string `json:"message"`
}

// Assembly is a batch split into renderable invoices and failures, both in submission order.
type Assembly struct {
	BatchID  uuid.UUID                 `json:"batch_id"`
	Invoices []entity.ExtractedInvoice `json:"invoices"`
	Failures []FailureSummary          `json:"failures"`
}

// Assemble keeps successes in their relative order and lists failures separately.
func Assemble(res entity.BatchResult) Assembly {
	a := Assembly{
		BatchID:  res.ID,
		Invoices: make([]entity.ExtractedInvoice, 0, len(res.Entries)),
		Failures: []FailureSummary{},
	}
	for _, e := range res.Entries {
		switch {
		case e.Invoice != nil:
			a.Invoices = append(a.Invoices, *e.Invoice)
		case e.Failure != nil:
			a.Failures = append(a.Failures, FailureSummary{
				Index:    e.Index,
				Filename: e.Failure.Filename,
				Kind:     string(e.Failure.Kind),
				Cause:    e.Failure.Cause,
				Message:  e.Failure.Message,
			})
		}
	}
	return a
}

// HasInvoices reports whether a report can be rendered.
func (a Assembly) HasInvoices() bool { return len(a.Invoices) > 0 }
