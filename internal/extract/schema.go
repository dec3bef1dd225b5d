// Package extract turns a photographed or scanned invoice into a best-effort
// set of invoice fields by calling an external AI service.
package extract

import (
	"fmt"
	"strings"

	"rechnungen/internal/core"
)

// FieldType is the JSON shape a schema field is expected to have.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
)

type (
	FieldSpec struct {
		Name        core.Field
		Type        FieldType
		Description string
		// Enum restricts string values to a closed set.
		Enum []string
	}

	// Schema is the target field set sent to the extraction service.
	Schema struct {
		Fields []FieldSpec
	}
)

// InvoiceSchema describes the invoice fields worth reading off a document.
// The file reference is left out since it is the upload itself.
func InvoiceSchema() Schema {
	categories := make([]string, len(core.Categories))
	for i, c := range core.Categories {
		categories[i] = string(c)
	}
	return Schema{Fields: []FieldSpec{
		{Name: core.FieldInvoiceNumber, Type: TypeString, Description: "Rechnungsnummer as printed on the invoice"},
		{Name: core.FieldInvoiceDate, Type: TypeDate, Description: "invoice date, YYYY-MM-DD"},
		{Name: core.FieldAmount, Type: TypeNumber, Description: "gross total in EUR as a plain number"},
		{Name: core.FieldSupplier, Type: TypeString, Description: "name of the issuing company"},
		{Name: core.FieldCategory, Type: TypeString, Description: "best matching invoice category", Enum: categories},
		{Name: core.FieldPaid, Type: TypeBoolean, Description: "true only if the document states it was already paid"},
		{Name: core.FieldPaymentDate, Type: TypeDate, Description: "payment date if stated, YYYY-MM-DD"},
		{Name: core.FieldNotes, Type: TypeString, Description: "short note, e.g. payment terms"},
	}}
}

// Describe renders the schema as the instruction text sent along with the image.
func (s Schema) Describe() string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the attached invoice image.\n")
	b.WriteString("Return one JSON object with exactly these keys. Use null for values that are not on the document.\n\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %q: %s or null", string(f.Name), jsonType(f.Type))
		if f.Description != "" {
			fmt.Fprintf(&b, ", %s", f.Description)
		}
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " (one of: %s)", strings.Join(f.Enum, ", "))
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nReturn ONLY raw JSON, no Markdown and no code fences.\n")
	return b.String()
}

// Names returns the field names in schema order.
func (s Schema) Names() []core.Field {
	out := make([]core.Field, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

func jsonType(t FieldType) string {
	if t == TypeDate {
		return "string"
	}
	return string(t)
}
