package report

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrNoInvoices is returned when there is nothing to render.
var ErrNoInvoices = errors.New("report: no invoices to render")

// Rendered is a finished report file.
type Rendered struct {
	Name        string
	ContentType string
	Bytes       []byte
}

// Renderer turns extracted invoices into a single downloadable file.
type Renderer interface {
	Render(ctx context.Context, invoices []entity.ExtractedInvoice) (Rendered, error)
}

// FileName returns "invoices_YYYYMMDD_HHMM.<ext>".
func FileName(t time.Time, ext string) string {
	return "invoices_" + t.Format("20060102_1504") + "." + ext
}
