package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// TextExtractor turns one uploaded document into ordered text and table segments.
// Failures are returned as *ParseError.
type TextExtractor interface {
	Extract(ctx context.Context, doc entity.UploadedDocument) (entity.ParsedContent, error)
}

const (
	MethodPDFText = "pdf_text"
	MethodOCR     = "ocr"
)
