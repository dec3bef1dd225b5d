package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"rechnungen/internal/extract"
	"rechnungen/internal/loader"
	"rechnungen/internal/log"
	"rechnungen/internal/middleware/metrics"
	"rechnungen/internal/middleware/ratelimit"
	"rechnungen/internal/middleware/security"
	"rechnungen/internal/middleware/trace"
	"rechnungen/internal/services"
	appweb "rechnungen/web"
)

const defaultMaxUploadBytes = 10 << 20

type Config struct {
	Addr string
	// MaxUploadBytes caps invoice files and extraction images.
	MaxUploadBytes int64
	// FileOrigins are allowed as image and frame sources so uploaded
	// invoices can be previewed.
	FileOrigins []string
	// TrustedProxies are added to the private ranges allowed to set
	// X-Forwarded-For.
	TrustedProxies []string
	RateLimit      ratelimit.Config
	Logger         *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	service   *services.InvoiceService
	loader    *loader.Loader
	extractor extract.Extractor
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	logger    *log.Logger
	maxUpload int64
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
// extractor may be nil when AI prefill is not configured.
func NewServer(cfg Config, svc *services.InvoiceService, extractor extract.Extractor) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		templates: t,
		service:   svc,
		loader:    svc.Loader(),
		extractor: extractor,
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:    logger.WithComponent(log.ComponentHTTP),
		maxUpload: cfg.MaxUploadBytes,
		started:   time.Now(),
	}

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.ImgSources = cfg.FileOrigins
	headers := security.NewHeadersMiddleware(headersCfg)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(metrics.Middleware()(s.detector.Middleware(headers.Middleware(s.routes())))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// extraction calls can take a while
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	post := func(h http.HandlerFunc) http.Handler {
		return s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(security.NoStore(h))
	}

	mux.Handle("GET /{$}", page(s.handleDashboard))
	mux.Handle("GET /rechnungen", page(s.handleList))
	mux.Handle("GET /rechnungen/neu", page(s.handleNewForm))
	mux.Handle("POST /rechnungen", post(s.handleCreate))
	mux.Handle("POST /rechnungen/extract", post(s.handleExtract))
	mux.Handle("GET /rechnungen/{id}/bearbeiten", page(s.handleEditForm))
	mux.Handle("POST /rechnungen/{id}", post(s.handleUpdate))
	mux.Handle("GET /rechnungen/{id}/loeschen", page(s.handleDeleteConfirm))
	mux.Handle("POST /rechnungen/{id}/loeschen", post(s.handleDelete))

	return mux
}

// render executes the template into a buffer first so a failing template
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		http.Error(w, "Die Seite konnte nicht angezeigt werden.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message, back string) {
	if isHTMX(r) {
		ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
		return
	}
	s.render(w, r, status, "error.html", errorView{
		Page:    Page{Title: "Fehler"},
		Status:  status,
		Message: message,
		Back:    back,
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, "Zu viele Anfragen. Bitte in einer Minute erneut versuchen.", r.URL.Path)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
