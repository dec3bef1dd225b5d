// Package http serves the invoice dashboard.
//
// This file maps the invoice form to and from core types. Form inputs are
// named after the wire keys of core.Fields.

package http

import (
	"net/url"
	"strings"

	"rechnungen/internal/core"
)

const (
	formRemoveFile = "datei_entfernen"
	formUpload     = "datei"
	formImage      = "bild"
)

// InvoiceForm holds the raw form values so a rejected submission can be
// shown again exactly as typed.
type InvoiceForm struct {
	ID            string
	InvoiceNumber string
	InvoiceDate   string
	Amount        string
	Supplier      string
	Category      string
	InvoiceFile   string
	Paid          bool
	PaymentDate   string
	Notes         string
	RemoveFile    bool
}

// FieldErrors maps a field to a message shown next to its input.
type FieldErrors map[core.Field]string

func (e FieldErrors) Any() bool { return len(e) > 0 }

// For is used by templates, which cannot index with a typed key.
func (e FieldErrors) For(name string) string { return e[core.Field(name)] }

// FormFromValues reads a posted form.
func FormFromValues(v url.Values) InvoiceForm {
	get := func(key core.Field) string { return sanitizeInput(v.Get(string(key))) }
	return InvoiceForm{
		InvoiceNumber: get(core.FieldInvoiceNumber),
		InvoiceDate:   get(core.FieldInvoiceDate),
		Amount:        get(core.FieldAmount),
		Supplier:      get(core.FieldSupplier),
		Category:      get(core.FieldCategory),
		InvoiceFile:   get(core.FieldInvoiceFile),
		Paid:          checkbox(v.Get(string(core.FieldPaid))),
		PaymentDate:   get(core.FieldPaymentDate),
		Notes:         sanitizeInput(v.Get(string(core.FieldNotes))),
		RemoveFile:    checkbox(v.Get(formRemoveFile)),
	}
}

// FormFromFields fills the form with stored or extracted values.
func FormFromFields(id string, f core.Fields) InvoiceForm {
	form := InvoiceForm{
		ID:            id,
		InvoiceNumber: deref(f.InvoiceNumber),
		Supplier:      deref(f.Supplier),
		InvoiceFile:   deref(f.InvoiceFile),
		Notes:         deref(f.Notes),
		Paid:          f.IsPaid(),
	}
	if f.InvoiceDate != nil {
		form.InvoiceDate = f.InvoiceDate.String()
	}
	if f.PaymentDate != nil {
		form.PaymentDate = f.PaymentDate.String()
	}
	if f.Amount != nil {
		form.Amount = formatAmountInput(*f.Amount)
	}
	if f.Category != nil {
		form.Category = string(*f.Category)
	}
	return form
}

// Patch converts the form into a partial update. On create only filled
// inputs are set. On edit an emptied input clears the stored field.
// The checkbox always sets bezahlt.
func (f InvoiceForm) Patch(editing bool) (core.Patch, FieldErrors) {
	var p core.Patch
	errs := FieldErrors{}

	text := func(name core.Field, raw string, dst **string) {
		if raw != "" {
			*dst = core.Ptr(raw)
		} else if editing {
			p.Clear = append(p.Clear, name)
		}
	}
	date := func(name core.Field, raw string, dst **core.Date) {
		if raw == "" {
			if editing {
				p.Clear = append(p.Clear, name)
			}
			return
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			errs[name] = "Ungültiges Datum, bitte als TT.MM.JJJJ oder JJJJ-MM-TT angeben."
			return
		}
		*dst = &d
	}

	if f.InvoiceNumber == "" {
		errs[core.FieldInvoiceNumber] = "Rechnungsnummer ist erforderlich."
	} else {
		p.Set.InvoiceNumber = core.Ptr(f.InvoiceNumber)
	}

	switch {
	case f.Amount == "":
		errs[core.FieldAmount] = "Betrag ist erforderlich."
	default:
		cents, err := core.ParseDecimalToCents(f.Amount)
		if err != nil {
			errs[core.FieldAmount] = "Ungültiger Betrag."
		} else {
			p.Set.Amount = &core.Money{Cents: cents}
		}
	}

	date(core.FieldInvoiceDate, f.InvoiceDate, &p.Set.InvoiceDate)
	date(core.FieldPaymentDate, f.PaymentDate, &p.Set.PaymentDate)
	text(core.FieldSupplier, f.Supplier, &p.Set.Supplier)
	text(core.FieldNotes, f.Notes, &p.Set.Notes)

	switch {
	case f.Category != "":
		c := core.Category(f.Category)
		if !c.Known() {
			errs[core.FieldCategory] = "Unbekannte Kategorie."
		} else {
			p.Set.Category = &c
		}
	case editing:
		p.Clear = append(p.Clear, core.FieldCategory)
	}

	switch {
	case f.RemoveFile:
		p.Clear = append(p.Clear, core.FieldInvoiceFile)
	default:
		text(core.FieldInvoiceFile, f.InvoiceFile, &p.Set.InvoiceFile)
	}

	p.Set.Paid = core.Ptr(f.Paid)

	if errs.Any() {
		return core.Patch{}, errs
	}
	return p, nil
}

func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "ja":
		return true
	}
	return false
}

// formatAmountInput renders cents the way the amount input expects them ("1234,50").
func formatAmountInput(m core.Money) string {
	return strings.Replace(m.Decimal(), ".", ",", 1)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
