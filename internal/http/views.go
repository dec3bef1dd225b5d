package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/extract"
	"rechnungen/internal/records"
)

// Page carries what the layout needs on every page.
type Page struct {
	Title  string
	Active string
}

type invoiceRow struct {
	ID          string
	Number      string
	Date        string
	Supplier    string
	Category    string
	Amount      string
	Negative    bool
	Paid        bool
	PaymentDate string
	File        string
	Notes       string
	CreatedAt   time.Time
}

type categoryBar struct {
	Key    string
	Label  string
	Amount string
	Width  int
}

type dashboardView struct {
	Page
	Count       int
	Total       string
	Paid        string
	Unpaid      string
	PaidCount   int
	UnpaidCount int
	Categories  []categoryBar
	Recent      []invoiceRow
	LoadError   string
	LoadedAt    time.Time
}

type tableView struct {
	Page
	Rows      []invoiceRow
	Total     string
	LoadError string
	LoadedAt  time.Time
}

type categoryOption struct {
	Key   string
	Label string
}

type formView struct {
	Page
	Form           InvoiceForm
	Errors         FieldErrors
	Review         map[string]bool
	Categories     []categoryOption
	Editing        bool
	Action         string
	SubmitError    string
	ExtractEnabled bool
	ExtractNotice  string
	ExtractError   string
}

type deleteView struct {
	Page
	ID       string
	Number   string
	Supplier string
	Amount   string
	Error    string
}

type errorView struct {
	Page
	Status  int
	Message string
	Back    string
}

func newInvoiceRow(r core.Record) invoiceRow {
	row := invoiceRow{
		ID:        r.ID,
		Number:    deref(r.InvoiceNumber),
		Supplier:  deref(r.Supplier),
		File:      deref(r.InvoiceFile),
		Notes:     deref(r.Notes),
		Paid:      r.IsPaid(),
		CreatedAt: r.CreatedAt,
	}
	if r.InvoiceDate != nil {
		row.Date = r.InvoiceDate.German()
	}
	if r.PaymentDate != nil {
		row.PaymentDate = r.PaymentDate.German()
	}
	if r.Amount != nil {
		row.Amount = r.Amount.String()
		row.Negative = r.Amount.Cents < 0
	}
	if r.Category != nil {
		row.Category = r.Category.Label()
	}
	return row
}

func newDashboardView(list []core.Record, recent int) dashboardView {
	s := core.Summarize(list)
	v := dashboardView{
		Page:        Page{Title: "Übersicht", Active: "dashboard"},
		Count:       len(list),
		Total:       s.Total.String(),
		Paid:        s.Paid.String(),
		Unpaid:      s.Unpaid.String(),
		PaidCount:   s.PaidCount,
		UnpaidCount: s.UnpaidCount,
	}

	var maxCents int64
	for _, c := range s.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	for _, c := range s.ByCategory {
		v.Categories = append(v.Categories, categoryBar{
			Key:    string(c.Category),
			Label:  c.Category.Label(),
			Amount: c.Amount.String(),
			Width:  barWidth(c.Amount.Cents, maxCents),
		})
	}

	// newest first; the collection keeps the service's creation order
	for i := len(list) - 1; i >= 0 && len(v.Recent) < recent; i-- {
		v.Recent = append(v.Recent, newInvoiceRow(list[i]))
	}
	return v
}

func newTableView(list []core.Record) tableView {
	v := tableView{
		Page:  Page{Title: "Rechnungen", Active: "rechnungen"},
		Rows:  make([]invoiceRow, 0, len(list)),
		Total: core.TotalAmount(list).String(),
	}
	for _, r := range list {
		v.Rows = append(v.Rows, newInvoiceRow(r))
	}
	return v
}

func categoryOptions() []categoryOption {
	out := make([]categoryOption, 0, len(core.Categories))
	for _, c := range core.Categories {
		out = append(out, categoryOption{Key: string(c), Label: c.Label()})
	}
	return out
}

func newFormView(form InvoiceForm) formView {
	v := formView{
		Form:       form,
		Errors:     FieldErrors{},
		Review:     map[string]bool{},
		Categories: categoryOptions(),
		Editing:    form.ID != "",
	}
	if v.Editing {
		v.Page = Page{Title: "Rechnung bearbeiten", Active: "rechnungen"}
		v.Action = "/rechnungen/" + form.ID
	} else {
		v.Page = Page{Title: "Neue Rechnung", Active: "neu"}
		v.Action = "/rechnungen"
	}
	return v
}

// prefill overlays the extracted values onto what the user already typed.
func prefill(base InvoiceForm, values core.Fields) InvoiceForm {
	extracted := FormFromFields(base.ID, values)
	if values.InvoiceNumber != nil {
		base.InvoiceNumber = extracted.InvoiceNumber
	}
	if values.InvoiceDate != nil {
		base.InvoiceDate = extracted.InvoiceDate
	}
	if values.Amount != nil {
		base.Amount = extracted.Amount
	}
	if values.Supplier != nil {
		base.Supplier = extracted.Supplier
	}
	if values.Category != nil && values.Category.Known() {
		base.Category = extracted.Category
	}
	if values.Paid != nil {
		base.Paid = extracted.Paid
	}
	if values.PaymentDate != nil {
		base.PaymentDate = extracted.PaymentDate
	}
	if values.Notes != nil {
		base.Notes = extracted.Notes
	}
	return base
}

// describeError turns a records or extraction error into a message for the user.
func describeError(err error) string {
	var (
		transportErr *records.TransportError
		serviceErr   *records.ServiceError
		uploadErr    *records.UploadError
		failure      *extract.Failure
	)
	switch {
	case errors.Is(err, records.ErrNotFound):
		return "Die Rechnung wurde nicht gefunden. Sie wurde möglicherweise bereits gelöscht."
	case errors.Is(err, extract.ErrDisabled):
		return "Die automatische Erkennung ist nicht eingerichtet. Bitte die Felder manuell ausfüllen."
	case errors.As(err, &uploadErr):
		return "Die Datei konnte nicht hochgeladen werden. Bitte erneut versuchen."
	case errors.As(err, &failure):
		return "Die Rechnung konnte nicht automatisch gelesen werden. Bitte erneut versuchen oder die Felder manuell ausfüllen."
	case errors.As(err, &transportErr):
		return "Der Rechnungsdienst ist nicht erreichbar. Bitte später erneut versuchen."
	case errors.As(err, &serviceErr):
		return fmt.Sprintf("Der Rechnungsdienst hat die Anfrage abgelehnt (Status %d).", serviceErr.StatusCode)
	default:
		return "Ein unerwarteter Fehler ist aufgetreten."
	}
}

func statusFor(err error) int {
	var (
		transportErr *records.TransportError
		serviceErr   *records.ServiceError
		uploadErr    *records.UploadError
	)
	switch {
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transportErr), errors.As(err, &serviceErr), errors.As(err, &uploadErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
