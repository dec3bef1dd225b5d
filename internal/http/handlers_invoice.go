package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"rechnungen/internal/core"
	"rechnungen/internal/extract"
	"rechnungen/internal/log"
)

func (s *Server) formView(form InvoiceForm) formView {
	v := newFormView(form)
	v.ExtractEnabled = s.extractor != nil && !v.Editing
	return v
}

// renderForm shows the whole page, or only the form fragment for HTMX.
// HTMX does not swap error statuses, so fragments always go out as 200.
func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, v formView) {
	if isHTMX(r) {
		s.render(w, r, http.StatusOK, "invoice_form", v)
		return
	}
	s.render(w, r, status, "form.html", v)
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, s.formView(InvoiceForm{}))
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Loading invoice for edit failed",
			log.FieldRecordID, id,
			log.FieldError, err)
		s.renderError(w, r, statusFor(err), describeError(err), "/rechnungen")
		return
	}
	s.renderForm(w, r, http.StatusOK, s.formView(FormFromFields(rec.ID, rec.Fields)))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, "")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, r.PathValue("id"))
}

// handleSubmit validates the form, uploads an attached file first and then
// creates or updates depending on whether an id is present.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	if err := s.parseBody(w, r); err != nil {
		s.renderError(w, r, http.StatusBadRequest, uploadMessage(err), "/rechnungen")
		return
	}

	form := FormFromValues(r.PostForm)
	form.ID = id
	v := s.formView(form)

	patch, errs := form.Patch(id != "")
	if errs.Any() {
		v.Errors = errs
		s.renderForm(w, r, http.StatusUnprocessableEntity, v)
		return
	}

	file, header, err := r.FormFile(formUpload)
	switch {
	case err == nil:
		defer file.Close()
		url, err := s.service.UploadInvoiceFile(ctx, file, header.Filename)
		if err != nil {
			s.logger.ErrorContext(ctx, "Invoice file upload failed",
				log.FieldOperation, log.OpUpload,
				"filename", header.Filename,
				log.FieldError, err)
			v.SubmitError = describeError(err)
			s.renderForm(w, r, statusFor(err), v)
			return
		}
		patch.Set.InvoiceFile = &url
		patch.Clear = slices.DeleteFunc(patch.Clear, func(f core.Field) bool { return f == core.FieldInvoiceFile })
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		s.renderError(w, r, http.StatusBadRequest, "Die Datei konnte nicht gelesen werden.", "/rechnungen")
		return
	}

	rec, err := s.service.Submit(ctx, id, patch)
	if err != nil {
		s.logger.ErrorContext(ctx, "Saving invoice failed",
			log.FieldRecordID, id,
			log.FieldError, err)
		v.SubmitError = describeError(err)
		s.renderForm(w, r, statusFor(err), v)
		return
	}

	op, msg := "created", "Rechnung angelegt."
	if id != "" {
		op, msg = "updated", "Rechnung gespeichert."
	}
	NewHTMXResponse().
		TriggerInvoiceChanged(op, rec.ID).
		TriggerSummaryRefresh().
		TriggerSuccessNotification(msg).
		Redirect(r, "/rechnungen").
		Write(w)
}

// handleExtract reads an invoice photo and returns the create form prefilled
// with whatever the extractor recognised. Nothing is stored.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseBody(w, r); err != nil {
		s.renderError(w, r, http.StatusBadRequest, uploadMessage(err), "/rechnungen/neu")
		return
	}

	base := FormFromValues(r.PostForm)
	v := s.formView(base)
	if s.extractor == nil {
		v.ExtractError = describeError(extract.ErrDisabled)
		s.renderForm(w, r, http.StatusOK, v)
		return
	}

	data, mime, problem := s.readImage(r)
	if problem != "" {
		v.ExtractError = problem
		s.renderForm(w, r, http.StatusUnprocessableEntity, v)
		return
	}

	res, err := s.extractor.Extract(ctx, extract.EncodeDataURI(mime, data), extract.InvoiceSchema())
	if err != nil {
		v.ExtractError = describeError(err)
		s.renderForm(w, r, http.StatusBadGateway, v)
		return
	}

	values, review := res.Prefill()
	v.Form = prefill(base, values)
	for _, f := range review {
		v.Review[string(f)] = true
	}
	v.ExtractNotice = fmt.Sprintf("%d von %d Feldern erkannt.", len(res.Present()), len(extract.InvoiceSchema().Fields))
	if res.IsPartial() {
		v.ExtractNotice += " Markierte Felder bitte prüfen."
	}
	s.renderForm(w, r, http.StatusOK, v)
}

// readImage returns the uploaded extraction image and its sniffed type, or a
// message for the form when the upload is unusable.
func (s *Server) readImage(r *http.Request) ([]byte, string, string) {
	file, _, err := r.FormFile(formImage)
	if err != nil {
		return nil, "", "Bitte ein Foto oder einen Scan der Rechnung auswählen."
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	switch {
	case err != nil:
		return nil, "", "Das Bild konnte nicht gelesen werden."
	case int64(len(data)) > s.maxUpload:
		return nil, "", "Das Bild ist zu groß."
	case len(data) == 0:
		return nil, "", "Die Datei ist leer."
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		return nil, "", "Nur Bilder (JPEG, PNG, WebP) oder PDF-Dateien werden unterstützt."
	}
	return data, mime, ""
}

func (s *Server) handleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, statusFor(err), describeError(err), "/rechnungen")
		return
	}
	v := deleteView{
		Page:     Page{Title: "Rechnung löschen", Active: "rechnungen"},
		ID:       rec.ID,
		Number:   deref(rec.InvoiceNumber),
		Supplier: deref(rec.Supplier),
	}
	if rec.Amount != nil {
		v.Amount = rec.Amount.String()
	}
	s.render(w, r, http.StatusOK, "loeschen.html", v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Deleting invoice failed",
			log.FieldRecordID, id,
			log.FieldError, err)
		s.renderError(w, r, statusFor(err), describeError(err), "/rechnungen")
		return
	}
	NewHTMXResponse().
		TriggerInvoiceChanged("deleted", id).
		TriggerSummaryRefresh().
		TriggerSuccessNotification("Rechnung gelöscht.").
		Redirect(r, "/rechnungen").
		Write(w)
}

// parseBody parses url-encoded and multipart bodies within the upload limit.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(s.maxUpload)
	}
	return r.ParseForm()
}

func uploadMessage(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return "Die Datei ist zu groß."
	}
	return "Ungültige Anfrage."
}
