package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// CleanContent strips markdown fences from a model answer and checks that what is left is a
// JSON object or the no-invoice marker. Anything else is malformed provider output.
func CleanContent(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, &ExtractionError{Cause: constants.CauseMalformedOutput, Err: errors.New("empty model output")}
	}
	if strings.Contains(s, NoInvoiceMarker) && !strings.HasPrefix(s, "{") {
		return []byte(NoInvoiceMarker), nil
	}
	b := []byte(s)
	if !json.Valid(b) || !bytes.HasPrefix(b, []byte("{")) {
		return nil, &ExtractionError{Cause: constants.CauseMalformedOutput, Err: errors.New("model output is not a JSON object")}
	}
	return b, nil
}
