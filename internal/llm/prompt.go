package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/utils"
)

// NoInvoiceMarker is what the model may answer when the text is not an invoice.
const NoInvoiceMarker = "NO_INVOICE_FOUND"

// BuildSystemPrompt lists the recognized fields and the formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	parts := []string{
		"You are an invoice parser. Return ONLY a JSON object that matches the provided JSON Schema.",
		"Extract these fields when present: " + strings.Join(req.Fields, ", ") + ".",
		"Set invoice_found to true when the text is an invoice, otherwise return {\"invoice_found\": false}.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Money values are plain decimal strings without currency symbols or thousands separators, e.g. \"1250.00\".",
		"currency_code is a 3-letter ISO 4217 code.",
		"line_items is an ordered array of {description, quantity, unit_price, amount}; keep the document order.",
		"Addresses are single strings with parts separated by commas.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and the document text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(req.Text)
	cut := utils.Truncate(text, req.MaxChars)
	b.WriteString("\nInvoice text:\n")
	b.WriteString(cut)
	if len(cut) < len(text) {
		b.WriteString("\n…(truncated)")
	}
	return b.String()
}
