package llm

import "github.com/joseph-ayodele/invoice-extractor/constants"

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as an output constraint and also use it locally to validate.
// Only the invoice_found marker is required; every other field may be omitted.
func BuildInvoiceJSONSchema() map[string]any {
	str := func() map[string]any { return map[string]any{"type": "string"} }
	props := map[string]any{
		string(constants.FieldInvoiceFound):        map[string]any{"type": "boolean"},
		string(constants.FieldInvoiceNumber):       str(),
		string(constants.FieldInvoiceDate):         str(),
		string(constants.FieldDueDate):             str(),
		string(constants.FieldVendorName):          str(),
		string(constants.FieldVendorAddress):       str(),
		string(constants.FieldBuyerName):           str(),
		string(constants.FieldBuyerAddress):        str(),
		string(constants.FieldSubtotal):            decimalProp(),
		string(constants.FieldTax):                 decimalProp(),
		string(constants.FieldTotal):               decimalProp(),
		string(constants.FieldCurrency):            map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		string(constants.FieldPaymentTerms):        str(),
		string(constants.FieldPaymentInstructions): str(),
		string(constants.FieldLineItems): map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					constants.ItemDescription: str(),
					constants.ItemQuantity:    str(),
					constants.ItemUnitPrice:   decimalProp(),
					constants.ItemAmount:      decimalProp(),
				},
			},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{string(constants.FieldInvoiceFound)},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,2})?$`, // allow negatives for credits
	}
}
