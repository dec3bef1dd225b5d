// Package recordserver serves the hosted-records REST API from local storage.
// It backs the records-dev command and the client integration tests.
package recordserver

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rechnungen/internal/blob"
	"rechnungen/internal/core"
	"rechnungen/internal/log"
	"rechnungen/internal/middleware/metrics"
	"rechnungen/internal/records"
	"rechnungen/internal/storage"
)

const maxUploadMemory = 32 << 20

type Config struct {
	// PublicURL is the externally visible base URL used in record urls.
	// Derived from the request when empty.
	PublicURL string
	// SessionCookieName and SessionCookie, when both set, are required on every request.
	SessionCookieName string
	SessionCookie     string
}

type Server struct {
	repo   storage.Repository
	blobs  blob.Store
	cfg    Config
	logger *log.Logger
	now    func() time.Time
	newID  func() (string, error)
}

func New(repo storage.Repository, blobs blob.Store, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Server{
		repo:   repo,
		blobs:  blobs,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentDevServer),
		now:    time.Now,
		newID:  NewID,
	}
}

// NewID returns 24 random lower-case hex characters.
func NewID() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(log.Middleware(s.logger))
	r.Use(s.requireSession)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/apps/{appID}/records", func(r chi.Router) {
		r.Get("/", s.listRecords)
		r.Post("/", s.createRecord)
		r.Get("/{id}", s.getRecord)
		r.Patch("/{id}", s.updateRecord)
		r.Delete("/{id}", s.deleteRecord)
	})
	r.Post("/files", s.uploadFile)
	r.Get("/files/{name}", s.downloadFile)
	return r
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SessionCookie == "" || s.cfg.SessionCookieName == "" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		c, err := r.Cookie(s.cfg.SessionCookieName)
		if err != nil || c.Value != s.cfg.SessionCookie {
			writeError(w, http.StatusUnauthorized, "missing or invalid session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.List(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		s.internalError(w, r, log.OpList, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := records.EncodeCollection(w, list); err != nil {
		s.logger.WarnContext(r.Context(), "Writing list response failed", log.FieldError, err)
	}
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	appID, id := chi.URLParam(r, "appID"), chi.URLParam(r, "id")
	rec, err := s.repo.Get(r.Context(), appID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internalError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, records.NewDocument(rec, s.recordURL(r, appID, id)))
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	var req records.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	id, err := s.newID()
	if err != nil {
		s.internalError(w, r, log.OpCreate, err)
		return
	}
	rec := core.Record{ID: id, CreatedAt: s.now().UTC(), Fields: req.Fields}
	if err := s.repo.Insert(r.Context(), appID, rec); err != nil {
		s.internalError(w, r, log.OpCreate, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Record created",
		log.FieldRecordID, id,
		"app_id", appID)
	writeJSON(w, http.StatusCreated, records.NewDocument(rec, s.recordURL(r, appID, id)))
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	appID, id := chi.URLParam(r, "appID"), chi.URLParam(r, "id")
	var req records.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	rec, err := s.repo.Update(r.Context(), appID, id, req.Fields, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internalError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, records.NewDocument(rec, s.recordURL(r, appID, id)))
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	appID, id := chi.URLParam(r, "appID"), chi.URLParam(r, "id")
	err := s.repo.Delete(r.Context(), appID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internalError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "field 'file' is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		var sniff [512]byte
		n, _ := io.ReadFull(file, sniff[:])
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			s.internalError(w, r, log.OpUpload, err)
			return
		}
	}

	obj, err := s.blobs.Put(r.Context(), blob.ObjectName(header.Filename), contentType, file)
	if err != nil {
		s.internalError(w, r, log.OpUpload, err)
		return
	}
	if err := s.repo.SaveFile(r.Context(), storage.FileInfo{
		ObjectName:  obj.Name,
		Filename:    header.Filename,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		URL:         obj.URL,
		CreatedAt:   s.now().UTC(),
	}); err != nil {
		s.internalError(w, r, log.OpUpload, err)
		return
	}

	s.logger.InfoContext(r.Context(), "File stored",
		"filename", header.Filename,
		"object", obj.Name,
		"size_bytes", obj.Size)
	writeJSON(w, http.StatusCreated, records.UploadResponse{URL: obj.URL})
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	rc, obj, err := s.blobs.Open(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internalError(w, r, log.OpRead, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", obj.ContentType)
	_, _ = io.Copy(w, rc)
}

func (s *Server) recordURL(r *http.Request, appID, id string) string {
	base := s.cfg.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/apps/" + appID + "/records/" + id
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), "Request failed",
		log.FieldOperation, op,
		log.FieldError, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, map[string]string{"detail": detail})
}
