package llm

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/utils"
)

var reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)

var synonyms = map[string]string{
	"invoice_no":       string(constants.FieldInvoiceNumber),
	"invoice_id":       string(constants.FieldInvoiceNumber),
	"number":           string(constants.FieldInvoiceNumber),
	"date":             string(constants.FieldInvoiceDate),
	"issue_date":       string(constants.FieldInvoiceDate),
	"vendor":           string(constants.FieldVendorName),
	"seller_name":      string(constants.FieldVendorName),
	"seller_address":   string(constants.FieldVendorAddress),
	"customer_name":    string(constants.FieldBuyerName),
	"bill_to":          string(constants.FieldBuyerName),
	"customer_address": string(constants.FieldBuyerAddress),
	"items":            string(constants.FieldLineItems),
	"tax_amount":       string(constants.FieldTax),
	"total_amount":     string(constants.FieldTotal),
	"amount_due":       string(constants.FieldTotal),
	"currency":         string(constants.FieldCurrency),
	"terms":            string(constants.FieldPaymentTerms),
}

var itemSynonyms = map[string]string{
	"qty":   constants.ItemQuantity,
	"price": constants.ItemUnitPrice,
	"rate":  constants.ItemUnitPrice,
	"total": constants.ItemAmount,
	"name":  constants.ItemDescription,
}

var moneyFields = []string{
	string(constants.FieldSubtotal),
	string(constants.FieldTax),
	string(constants.FieldTotal),
}

var dateFields = []string{
	string(constants.FieldInvoiceDate),
	string(constants.FieldDueDate),
}

// NormalizeInvoiceMap rewrites a decoded model answer in place so it can validate:
//   - renames known synonyms
//   - drops null and blank values
//   - coerces money to "%.2f" strings and dates to YYYY-MM-DD where recognizable
//   - removes unknown keys
//
// Values of an impossible type (objects where strings belong, a string where line_items
// belongs) are left alone so schema validation rejects them.
func NormalizeInvoiceMap(m map[string]any, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	dropped := make([]string, 0, 8)

	for from, to := range synonyms {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
		}
	}

	if v, ok := m[string(constants.FieldInvoiceFound)].(string); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			m[string(constants.FieldInvoiceFound)] = true
		case "false", "no":
			m[string(constants.FieldInvoiceFound)] = false
		}
	}

	for _, k := range moneyFields {
		coerceMoney(m, k, &dropped)
	}

	allowed := map[string]struct{}{string(constants.FieldInvoiceFound): {}}
	for _, f := range constants.InvoiceFields() {
		allowed[f] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
				continue
			}
			m[k] = s
		case float64:
			// numeric invoice numbers and the like
			if k != string(constants.FieldInvoiceFound) {
				m[k] = formatNumber(t)
			}
		}
	}

	for _, k := range dateFields {
		if s, ok := m[k].(string); ok {
			m[k] = utils.NormalizeDate(s)
		}
	}
	if s, ok := m[string(constants.FieldCurrency)].(string); ok {
		if c := strings.ToUpper(s); reCurrency.MatchString(c) {
			m[string(constants.FieldCurrency)] = c
		} else {
			delete(m, string(constants.FieldCurrency))
			dropped = append(dropped, string(constants.FieldCurrency)+"(not ISO 4217)")
		}
	}

	if items, ok := m[string(constants.FieldLineItems)].([]any); ok {
		m[string(constants.FieldLineItems)] = normalizeItems(items, &dropped)
	}

	if len(dropped) > 0 {
		logger.Debug("llm.normalize.dropped", "dropped", dropped)
	}
	return dropped
}

func normalizeItems(items []any, dropped *[]string) []any {
	out := make([]any, 0, len(items))
	for i, it := range items {
		row, ok := it.(map[string]any)
		if !ok {
			out = append(out, it)
			continue
		}
		for from, to := range itemSynonyms {
			if v, ok := row[from]; ok {
				if _, exists := row[to]; !exists {
					row[to] = v
				}
				delete(row, from)
			}
		}
		for k := range maps.Clone(row) {
			switch k {
			case constants.ItemDescription, constants.ItemQuantity, constants.ItemUnitPrice, constants.ItemAmount:
			default:
				delete(row, k)
				*dropped = append(*dropped, fmt.Sprintf("line_items[%d].%s(unknown)", i, k))
			}
		}
		coerceMoney(row, constants.ItemUnitPrice, dropped)
		coerceMoney(row, constants.ItemAmount, dropped)
		switch q := row[constants.ItemQuantity].(type) {
		case float64:
			row[constants.ItemQuantity] = formatNumber(q)
		case nil:
			delete(row, constants.ItemQuantity)
		}
		if d, ok := row[constants.ItemDescription].(string); ok {
			row[constants.ItemDescription] = strings.TrimSpace(d)
		}
		if len(row) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

func coerceMoney(m map[string]any, k string, dropped *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch v.(type) {
	case nil, string, float64:
		if s, ok := utils.NormalizeMoney(v); ok {
			m[k] = s
			return
		}
		delete(m, k)
		*dropped = append(*dropped, k+"(not a number)")
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
