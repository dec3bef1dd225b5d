package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Patch is a partial update of a record's fields.
// Set carries the values to write; Clear names fields to reset to absent.
// Fields that appear in neither are left untouched.
type Patch struct {
	Set   Fields
	Clear []Field
}

// NewPatch returns a patch that writes every present field of f.
func NewPatch(f Fields) Patch {
	return Patch{Set: f.Clone()}
}

// IsEmpty reports whether applying the patch would change nothing.
func (p Patch) IsEmpty() bool {
	if len(p.Clear) > 0 {
		return false
	}
	for _, name := range AllFields {
		if p.Set.Has(name) {
			return false
		}
	}
	return true
}

// Touches reports whether the patch sets or clears the given field.
func (p Patch) Touches(name Field) bool {
	return p.Set.Has(name) || slices.Contains(p.Clear, name)
}

// Apply merges the patch into f field by field and returns the result.
// f itself is not modified.
func (f Fields) Apply(p Patch) Fields {
	out := f.Clone()
	set := p.Set.Clone()
	if set.InvoiceNumber != nil {
		out.InvoiceNumber = set.InvoiceNumber
	}
	if set.InvoiceDate != nil {
		out.InvoiceDate = set.InvoiceDate
	}
	if set.Amount != nil {
		out.Amount = set.Amount
	}
	if set.Supplier != nil {
		out.Supplier = set.Supplier
	}
	if set.Category != nil {
		out.Category = set.Category
	}
	if set.InvoiceFile != nil {
		out.InvoiceFile = set.InvoiceFile
	}
	if set.Paid != nil {
		out.Paid = set.Paid
	}
	if set.PaymentDate != nil {
		out.PaymentDate = set.PaymentDate
	}
	if set.Notes != nil {
		out.Notes = set.Notes
	}
	for _, name := range p.Clear {
		if set.Has(name) {
			continue
		}
		out.clear(name)
	}
	return out
}

func (f *Fields) clear(name Field) {
	switch name {
	case FieldInvoiceNumber:
		f.InvoiceNumber = nil
	case FieldInvoiceDate:
		f.InvoiceDate = nil
	case FieldAmount:
		f.Amount = nil
	case FieldSupplier:
		f.Supplier = nil
	case FieldCategory:
		f.Category = nil
	case FieldInvoiceFile:
		f.InvoiceFile = nil
	case FieldPaid:
		f.Paid = nil
	case FieldPaymentDate:
		f.PaymentDate = nil
	case FieldNotes:
		f.Notes = nil
	}
}

// MarshalJSON encodes the patch as a field object where cleared fields are null.
func (p Patch) MarshalJSON() ([]byte, error) {
	set, err := json.Marshal(p.Set)
	if err != nil {
		return nil, err
	}
	if len(p.Clear) == 0 {
		return set, nil
	}
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(set, &obj); err != nil {
		return nil, err
	}
	for _, name := range p.Clear {
		if _, ok := obj[string(name)]; ok {
			continue
		}
		obj[string(name)] = json.RawMessage("null")
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a field object. Keys with a null value become Clear entries,
// unknown keys are rejected.
func (p *Patch) UnmarshalJSON(data []byte) error {
	obj := map[string]json.RawMessage{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	var out Patch
	for _, name := range AllFields {
		raw, ok := obj[string(name)]
		if !ok {
			continue
		}
		delete(obj, string(name))
		if string(raw) == "null" {
			out.Clear = append(out.Clear, name)
			continue
		}
		if err := out.Set.UnmarshalFieldValue(name, raw); err != nil {
			return err
		}
	}
	for key := range obj {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	*p = out
	return nil
}
