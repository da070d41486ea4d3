package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Batch is the stored summary of one processed batch.
type Batch struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	DocumentCount int       `json:"document_count" db:"document_count"`
	SuccessCount  int       `json:"success_count" db:"success_count"`
	FailureCount  int       `json:"failure_count" db:"failure_count"`
	ReportPDF     *string   `json:"report_pdf,omitempty" db:"report_pdf"`
	ReportXLSX    *string   `json:"report_xlsx,omitempty" db:"report_xlsx"`
}

// ExtractJob is the stored outcome of one document within a batch.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	BatchID       uuid.UUID       `json:"batch_id"`
	Position      int             `json:"position"`
	Filename      string          `json:"filename"`
	Status        string          `json:"status"`
	FailureKind   *string         `json:"failure_kind,omitempty"`
	FailureCause  *string         `json:"failure_cause,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	ModelName     *string         `json:"model_name,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BatchDetail is a stored batch with its jobs in submission order.
type BatchDetail struct {
	Batch
	Jobs []ExtractJob `json:"jobs"`
}
