package sheets

import (
	"strings"

	"rechnungen/internal/core"
)

// Header is the first row of a mirrored sheet.
var Header = []string{
	"ID",
	"Rechnungsnummer",
	"Rechnungsdatum",
	"Betrag",
	"Lieferant",
	"Kategorie",
	"Bezahlt",
	"Zahlungsdatum",
	"Notizen",
	"Datei",
	"Erstellt",
}

// LastColumn is the column letter of the last Header entry.
const LastColumn = "K"

// Row renders a record as sheet cells in Header order. Absent fields are
// empty cells; the amount is written as a decimal number so sheet formulas
// can sum it.
func Row(r core.Record) []any {
	row := make([]any, 0, len(Header))
	row = append(row, r.ID, str(r.InvoiceNumber), date(r.InvoiceDate))
	if r.Amount != nil {
		row = append(row, r.Amount.Euros())
	} else {
		row = append(row, "")
	}
	row = append(row, str(r.Supplier))
	if r.Category != nil {
		row = append(row, r.Category.Label())
	} else {
		row = append(row, "")
	}
	switch {
	case r.Paid == nil:
		row = append(row, "")
	case *r.Paid:
		row = append(row, "ja")
	default:
		row = append(row, "nein")
	}
	row = append(row, date(r.PaymentDate), str(r.Notes), str(r.InvoiceFile))
	if r.CreatedAt.IsZero() {
		row = append(row, "")
	} else {
		row = append(row, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return row
}

// IndexIDs maps record ids found in the first column of values to their
// 1-based sheet row numbers. Row 1 is the header and is skipped. The first
// occurrence of an id wins.
func IndexIDs(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		id, ok := row[0].(string)
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, seen := out[id]; !seen {
			out[id] = i + 1
		}
	}
	return out
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func date(d *core.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
