package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type (
	// Record is one invoice entry held by the hosted-records service.
	Record struct {
		ID        string
		CreatedAt time.Time
		UpdatedAt *time.Time
		Fields
	}

	// Fields is the set of independently optional invoice attributes.
	// A nil pointer means the field is absent, which is not the same as a zero value.
	Fields struct {
		InvoiceNumber *string   `json:"rechnungsnummer,omitempty"`
		InvoiceDate   *Date     `json:"rechnungsdatum,omitempty"`
		Amount        *Money    `json:"betrag,omitempty"`
		Supplier      *string   `json:"lieferant,omitempty"`
		Category      *Category `json:"kategorie,omitempty"`
		InvoiceFile   *string   `json:"rechnung_datei,omitempty"`
		Paid          *bool     `json:"bezahlt,omitempty"`
		PaymentDate   *Date     `json:"zahlungsdatum,omitempty"`
		Notes         *string   `json:"notizen,omitempty"`
	}

	// Field names a single attribute of Fields by its wire key.
	Field string
)

const (
	FieldInvoiceNumber Field = "rechnungsnummer"
	FieldInvoiceDate   Field = "rechnungsdatum"
	FieldAmount        Field = "betrag"
	FieldSupplier      Field = "lieferant"
	FieldCategory      Field = "kategorie"
	FieldInvoiceFile   Field = "rechnung_datei"
	FieldPaid          Field = "bezahlt"
	FieldPaymentDate   Field = "zahlungsdatum"
	FieldNotes         Field = "notizen"
)

// AllFields lists every field in display order.
var AllFields = []Field{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldAmount,
	FieldSupplier,
	FieldCategory,
	FieldInvoiceFile,
	FieldPaid,
	FieldPaymentDate,
	FieldNotes,
}

var (
	ErrMissingInvoiceNumber = errors.New("missing invoice number")
	ErrMissingAmount        = errors.New("missing amount")
	ErrUnknownField         = errors.New("unknown field")
)

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// IsPaid reports whether the paid flag is present and true.
// Absent, null and false all count as unpaid.
func (f Fields) IsPaid() bool {
	return f.Paid != nil && *f.Paid
}

// AmountCents returns the amount in cents, treating an absent amount as zero.
func (f Fields) AmountCents() int64 {
	if f.Amount == nil {
		return 0
	}
	return f.Amount.Cents
}

// CategoryKey resolves the category, defaulting absent values to CategoryOther.
func (f Fields) CategoryKey() Category {
	if f.Category == nil || strings.TrimSpace(string(*f.Category)) == "" {
		return CategoryOther
	}
	return *f.Category
}

// Validate checks the fields the invoice form requires before submission.
func (f Fields) Validate() error {
	if f.InvoiceNumber == nil || strings.TrimSpace(*f.InvoiceNumber) == "" {
		return ErrMissingInvoiceNumber
	}
	if f.Amount == nil {
		return ErrMissingAmount
	}
	return nil
}

// Has reports whether the given field is present.
func (f Fields) Has(name Field) bool {
	switch name {
	case FieldInvoiceNumber:
		return f.InvoiceNumber != nil
	case FieldInvoiceDate:
		return f.InvoiceDate != nil
	case FieldAmount:
		return f.Amount != nil
	case FieldSupplier:
		return f.Supplier != nil
	case FieldCategory:
		return f.Category != nil
	case FieldInvoiceFile:
		return f.InvoiceFile != nil
	case FieldPaid:
		return f.Paid != nil
	case FieldPaymentDate:
		return f.PaymentDate != nil
	case FieldNotes:
		return f.Notes != nil
	}
	return false
}

// Clone returns a deep copy so callers can mutate the result freely.
func (f Fields) Clone() Fields {
	return Fields{
		InvoiceNumber: clonePtr(f.InvoiceNumber),
		InvoiceDate:   clonePtr(f.InvoiceDate),
		Amount:        clonePtr(f.Amount),
		Supplier:      clonePtr(f.Supplier),
		Category:      clonePtr(f.Category),
		InvoiceFile:   clonePtr(f.InvoiceFile),
		Paid:          clonePtr(f.Paid),
		PaymentDate:   clonePtr(f.PaymentDate),
		Notes:         clonePtr(f.Notes),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for building Fields literals.
func Ptr[T any](v T) *T {
	return &v
}

// recordIDPattern matches the last 24 hex chars at the end of a storage URL.
var recordIDPattern = regexp.MustCompile(`([0-9a-fA-F]{24})/?$`)

// ExtractRecordID returns the trailing 24-character hexadecimal run of a
// storage URL, or "" and false when the URL does not end in one. A longer
// hex run yields its last 24 characters.
func ExtractRecordID(url string) (string, bool) {
	m := recordIDPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// UnmarshalFieldValue decodes a single wire value into the named field of f.
// A JSON null clears the field.
func (f *Fields) UnmarshalFieldValue(name Field, raw json.RawMessage) error {
	var err error
	switch name {
	case FieldInvoiceNumber:
		f.InvoiceNumber, err = decodeOptional[string](raw)
	case FieldInvoiceDate:
		f.InvoiceDate, err = decodeOptional[Date](raw)
	case FieldAmount:
		f.Amount, err = decodeOptional[Money](raw)
	case FieldSupplier:
		f.Supplier, err = decodeOptional[string](raw)
	case FieldCategory:
		f.Category, err = decodeOptional[Category](raw)
	case FieldInvoiceFile:
		f.InvoiceFile, err = decodeOptional[string](raw)
	case FieldPaid:
		f.Paid, err = decodeOptional[bool](raw)
	case FieldPaymentDate:
		f.PaymentDate, err = decodeOptional[Date](raw)
	case FieldNotes:
		f.Notes, err = decodeOptional[string](raw)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// DecodeFields decodes a wire field object leniently. A value that does not
// decode is left absent and its field is reported in dropped. Unknown keys are
// ignored.
func DecodeFields(data []byte) (f Fields, dropped []Field, err error) {
	if len(data) == 0 || string(data) == "null" {
		return Fields{}, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Fields{}, nil, fmt.Errorf("decode fields: %w", err)
	}
	for _, name := range AllFields {
		raw, ok := obj[string(name)]
		if !ok {
			continue
		}
		if err := f.UnmarshalFieldValue(name, raw); err != nil {
			dropped = append(dropped, name)
		}
	}
	return f, dropped, nil
}

// decodeOptional treats null and, for non-text fields, the empty string as absent.
func decodeOptional[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if _, text := any(v).(string); !text && string(raw) == `""` {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
