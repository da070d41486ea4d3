package llm

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// ExtractRequest is everything a provider needs to ask for the invoice fields of one document.
type ExtractRequest struct {
	Text         string
	FilenameHint string
	Fields       []string       // recognized field names, in prompt order
	Schema       map[string]any // JSON schema the answer must satisfy
	MaxChars     int            // document text beyond this is truncated; 0 = no limit
}

// NewExtractRequest fills the fixed field list and schema.
func NewExtractRequest(text, filename string, maxChars int) ExtractRequest {
	return ExtractRequest{
		Text:         text,
		FilenameHint: filename,
		Fields:       constants.InvoiceFields(),
		Schema:       BuildInvoiceJSONSchema(),
		MaxChars:     maxChars,
	}
}

// Response is the raw JSON object returned by a provider. Mapping happens in MapInvoice.
type Response struct {
	Content   []byte
	Model     string
	RequestID string
	Elapsed   time.Duration
	Attempts  int
}

// FieldExtractor is the remote field extraction boundary. Errors are *ExtractionError.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Response, error)
}
