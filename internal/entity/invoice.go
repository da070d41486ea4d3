package entity

// LineItem is one billed row of an invoice. Values are kept as extracted strings.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// ExtractedInvoice holds the recognized invoice fields for one document.
// An empty string means the field was not found.
type ExtractedInvoice struct {
	SourceFilename      string     `json:"source_filename"`
	InvoiceNumber       string     `json:"invoice_number"`
	InvoiceDate         string     `json:"invoice_date"`
	DueDate             string     `json:"due_date"`
	VendorName          string     `json:"vendor_name"`
	VendorAddress       string     `json:"vendor_address"`
	BuyerName           string     `json:"buyer_name"`
	BuyerAddress        string     `json:"buyer_address"`
	LineItems           []LineItem `json:"line_items"`
	Subtotal            string     `json:"subtotal"`
	Tax                 string     `json:"tax"`
	Total               string     `json:"total"`
	Currency            string     `json:"currency_code"`
	PaymentTerms        string     `json:"payment_terms"`
	PaymentInstructions string     `json:"payment_instructions"`
}

// FieldValue pairs a display label with an extracted value.
type FieldValue struct {
	Label string
	Value string
}

// HeaderFields returns the scalar fields in display order, skipping absent ones.
func (inv ExtractedInvoice) HeaderFields() []FieldValue {
	all := []FieldValue{
		{"Invoice Number", inv.InvoiceNumber},
		{"Invoice Date", inv.InvoiceDate},
		{"Due Date", inv.DueDate},
		{"Vendor", inv.VendorName},
		{"Vendor Address", inv.VendorAddress},
		{"Bill To", inv.BuyerName},
		{"Buyer Address", inv.BuyerAddress},
		{"Subtotal", inv.Subtotal},
		{"Tax", inv.Tax},
		{"Total", inv.Total},
		{"Currency", inv.Currency},
		{"Payment Terms", inv.PaymentTerms},
		{"Payment Instructions", inv.PaymentInstructions},
	}
	out := make([]FieldValue, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}
