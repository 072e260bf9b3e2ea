package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/permission"
	"github.com/volantix/siteapi/internal/session"
)

type contextKey int

const claimsKey contextKey = iota

// claimsFrom retrieves the session claims placed by requireSession.
func claimsFrom(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(claimsKey).(*session.Claims)
	return claims
}

// clientAddr resolves the caller's network address for throttling. The
// X-Forwarded-For chain is only meaningful behind the site's own reverse
// proxy, which overwrites client-supplied values.
func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requireSession authenticates the request from the session cookie. Missing,
// expired, tampered, and structurally incomplete cookies are all the same
// 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.codec.Validate(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// guard wraps an admin handler with a capability check against the session's
// permission snapshot. Authentication happened in requireSession; this is
// pure authorization, default deny.
func (s *Server) guard(c permission.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || !permission.Allowed(claims.Permissions, c) {
			writeError(w, http.StatusForbidden, "Permission denied")
			return
		}
		next(w, r)
	}
}
