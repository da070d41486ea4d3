package constants

// Field is a recognized invoice data point the extractor is asked for.
type Field string

const (
	FieldInvoiceNumber       Field = "invoice_number"
	FieldInvoiceDate         Field = "invoice_date"
	FieldDueDate             Field = "due_date"
	FieldVendorName          Field = "vendor_name"
	FieldVendorAddress       Field = "vendor_address"
	FieldBuyerName           Field = "buyer_name"
	FieldBuyerAddress        Field = "buyer_address"
	FieldLineItems           Field = "line_items"
	FieldSubtotal            Field = "subtotal"
	FieldTax                 Field = "tax"
	FieldTotal               Field = "total"
	FieldCurrency            Field = "currency_code"
	FieldPaymentTerms        Field = "payment_terms"
	FieldPaymentInstructions Field = "payment_instructions"

	// FieldInvoiceFound is the mandatory marker the model sets to say it recognized an invoice.
	FieldInvoiceFound Field = "invoice_found"
)

var invoiceFields = []Field{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldVendorName,
	FieldVendorAddress,
	FieldBuyerName,
	FieldBuyerAddress,
	FieldLineItems,
	FieldSubtotal,
	FieldTax,
	FieldTotal,
	FieldCurrency,
	FieldPaymentTerms,
	FieldPaymentInstructions,
}

// InvoiceFields returns the recognized field names in prompt order.
func InvoiceFields() []string {
	result := make([]string, len(invoiceFields))
	for i, f := range invoiceFields {
		result[i] = string(f)
	}
	return result
}

// Line item keys.
const (
	ItemDescription = "description"
	ItemQuantity    = "quantity"
	ItemUnitPrice   = "unit_price"
	ItemAmount      = "amount"
)
