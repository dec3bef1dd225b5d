package security

import (
	"fmt"
	"net/http"
	"strings"
)

type HeadersConfig struct {
	// CSP is built from ImgSources when empty.
	CSP string
	// ImgSources are extra img-src/frame-src origins, e.g. the file host
	// serving uploaded invoices.
	ImgSources []string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginOpener   string
	CrossOriginResource string
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:   "same-origin",
		CrossOriginResource: "same-origin",
	}
}

// ContentSecurityPolicy returns the configured policy. Scripts come from the
// dashboard itself and the htmx CDN; invoice previews from ImgSources.
func (c HeadersConfig) ContentSecurityPolicy() string {
	if c.CSP != "" {
		return c.CSP
	}
	extra := ""
	if len(c.ImgSources) > 0 {
		extra = " " + strings.Join(c.ImgSources, " ")
	}
	return "default-src 'self'; " +
		"script-src 'self' https://unpkg.com; " +
		"style-src 'self'; " +
		"img-src 'self' data:" + extra + "; " +
		"frame-src 'self'" + extra + "; " +
		"connect-src 'self'; " +
		"object-src 'none'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self'"
}

type HeadersMiddleware struct {
	config HeadersConfig
	csp    string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config, csp: config.ContentSecurityPolicy()}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()
	setIf := func(k, v string) {
		if v != "" {
			headers.Set(k, v)
		}
	}

	setIf("X-Content-Type-Options", h.config.XContentTypeOptions)
	setIf("X-Frame-Options", h.config.XFrameOptions)
	setIf("Content-Security-Policy", h.csp)
	setIf("Referrer-Policy", h.config.ReferrerPolicy)
	setIf("Permissions-Policy", h.config.PermissionsPolicy)
	setIf("Cross-Origin-Opener-Policy", h.config.CrossOriginOpener)
	setIf("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)

	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		headers.Set("Strict-Transport-Security", hsts)
	}
}

// StaticAssetMiddleware marks responses cacheable for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore disables caching, for pages that show live invoice data.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
