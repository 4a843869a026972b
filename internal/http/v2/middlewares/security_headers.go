package middlewares

import (
	"net/http"
	"strings"
)

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// apiCSP es la política para respuestas JSON; la página de prompt de Google
// define la suya.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// WithSecurityHeaders inyecta cabeceras de seguridad por defecto.
// csp vacío usa la política estricta de API.
func WithSecurityHeaders(csp string) Middleware {
	if csp == "" {
		csp = apiCSP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", csp)
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
