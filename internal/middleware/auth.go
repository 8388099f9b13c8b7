package middleware

import (
	"net/http"
	"strings"

	"github.com/adambn/recruitly/internal/auth"
	"github.com/adambn/recruitly/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ SessionVerifier = (*auth.TokenService)(nil)

// SessionVerifier resolves a raw cookie value to a session, or nil.
// All verification failures collapse to nil - the gate never learns,
// and never leaks, why a token failed.
type SessionVerifier interface {
	VerifySessionToken(token string) *auth.Session
}

const (
	adminPagePath      = "/admin"
	adminLoginPagePath = "/admin/login"
)

type AuthMiddlewareHandler struct {
	verifier     SessionVerifier
	allowedPaths map[string]bool
}

func NewAuthMiddlewareHandler(verifier SessionVerifier) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		verifier: verifier,
		allowedPaths: map[string]bool{
			// landing page endpoints:
			"/":                true,
			"/version":         true,
			"/api/leads":       true,
			"/api/unsubscribe": true,

			// login and session introspection stay reachable without a session:
			"/api/admin/login":   true,
			"/api/admin/session": true,
		},
	}
}

// AuthCheck is the session gate: a route guard for the admin API and a
// page guard for the admin pages. Every request is evaluated on its own,
// purely from the inbound cookie.
func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			path := r.URL.Path

			if h.isAdminPage(path) {
				h.pageGuard(w, r, next, span)
				return
			}

			if h.isProtectedAPIPath(path) {
				session, _ := h.sessionFromRequest(r)
				if session == nil {
					log.Tracef("[auth middleware] unauthorized => %s", path)
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "unauthorized")
					return
				}
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

func (h *AuthMiddlewareHandler) isAdminPage(path string) bool {
	return path == adminPagePath || path == adminPagePath+"/" || path == adminLoginPagePath
}

func (h *AuthMiddlewareHandler) isProtectedAPIPath(path string) bool {
	if h.allowedPaths[path] {
		return false
	}
	return strings.HasPrefix(path, "/api/admin/")
}

// pageGuard: admin pages without a valid session redirect to the login
// page (clearing a stale cookie on the way), while an already logged-in
// admin is bounced away from the login page.
func (h *AuthMiddlewareHandler) pageGuard(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	span trace.Span,
) {
	session, cookiePresent := h.sessionFromRequest(r)

	if r.URL.Path == adminLoginPagePath {
		if session != nil {
			span.SetStatus(codes.Ok, "already-logged-in")
			http.Redirect(w, r, adminPagePath, http.StatusFound)
			return
		}
		span.SetStatus(codes.Ok, "ok")
		next.ServeHTTP(w, r)
		return
	}

	if session == nil {
		if cookiePresent {
			// stale or forged cookie, drop it before sending to login
			ClearSessionCookie(w)
		}
		log.Tracef("[auth middleware] admin page redirect to login => %s", r.URL.Path)
		span.SetStatus(codes.Error, "redirect-to-login")
		http.Redirect(w, r, adminLoginPagePath, http.StatusFound)
		return
	}

	span.SetStatus(codes.Ok, "ok")
	next.ServeHTTP(w, r)
}

func (h *AuthMiddlewareHandler) sessionFromRequest(r *http.Request) (session *auth.Session, cookiePresent bool) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return h.verifier.VerifySessionToken(cookie.Value), true
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
