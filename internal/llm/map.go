package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

var (
	invoiceSchemaOnce sync.Once
	invoiceSchema     *jsonschema.Schema
	invoiceSchemaErr  error
)

func compiledInvoiceSchema() (*jsonschema.Schema, error) {
	invoiceSchemaOnce.Do(func() {
		invoiceSchema, invoiceSchemaErr = CompileSchema(BuildInvoiceJSONSchema())
	})
	return invoiceSchema, invoiceSchemaErr
}

// MapInvoice turns a provider answer into an ExtractedInvoice. Missing fields stay empty;
// anything structurally unusable is a *MappingError.
func MapInvoice(content []byte, filename string, logger *slog.Logger) (entity.ExtractedInvoice, error) {
	if bytes.Equal(bytes.TrimSpace(content), []byte(NoInvoiceMarker)) {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "no invoice content detected"}
	}

	var m map[string]any
	if err := json.Unmarshal(content, &m); err != nil {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "answer is not a JSON object", Err: err}
	}
	if m == nil {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "answer is not a JSON object"}
	}
	NormalizeInvoiceMap(m, logger)

	found, present := m[string(constants.FieldInvoiceFound)]
	if !present {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "missing invoice_found marker"}
	}
	if b, ok := found.(bool); ok && !b {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "no invoice content detected"}
	}

	schema, err := compiledInvoiceSchema()
	if err != nil {
		return entity.ExtractedInvoice{}, fmt.Errorf("invoice schema: %w", err)
	}
	if err := schema.Validate(map[string]any(m)); err != nil {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "answer does not match invoice schema", Err: err}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "re-encode answer", Err: err}
	}
	var inv entity.ExtractedInvoice
	if err := json.Unmarshal(b, &inv); err != nil {
		return entity.ExtractedInvoice{}, &MappingError{Reason: "decode invoice", Err: err}
	}
	inv.SourceFilename = filename
	return inv, nil
}
