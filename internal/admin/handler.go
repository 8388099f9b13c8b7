package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adambn/recruitly/internal/auth"
	"github.com/adambn/recruitly/internal/middleware"
	"github.com/adambn/recruitly/internal/telemetry/metrics"
	"github.com/adambn/recruitly/internal/telemetry/tracing"
	"github.com/adambn/recruitly/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type Handler struct {
	validator      *auth.CredentialValidator
	tokenService   *auth.TokenService
	sessionTTL     time.Duration
	metricsManager *metrics.Manager
}

func NewHandler(
	validator *auth.CredentialValidator,
	tokenService *auth.TokenService,
	sessionTTL time.Duration,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		validator:      validator,
		tokenService:   tokenService,
		sessionTTL:     sessionTTL,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginRateLimitAllowedPerMin int,
) {
	// rate limit the login endpoint to prevent abuse
	loginRateLimit := middleware.RateLimit(
		rateLimiter, "admin-login", loginRateLimitAllowedPerMin, handler.metricsManager,
	)
	mainRouter.Handle("/api/admin/login", loginRateLimit(http.HandlerFunc(handler.HandleLogin))).
		Methods("POST", "OPTIONS").Name("login")

	mainRouter.HandleFunc("/api/admin/logout", handler.HandleLogout).
		Methods("GET", "OPTIONS").Name("logout")
	mainRouter.HandleFunc("/api/admin/session", handler.HandleSession).
		Methods("GET").Name("session")

	// guarded page shells, the session gate runs before these render
	mainRouter.HandleFunc("/admin", handler.HandleAdminPage).Methods("GET").Name("admin-page")
	mainRouter.HandleFunc("/admin/", handler.HandleAdminPage).Methods("GET")
	mainRouter.HandleFunc("/admin/login", handler.HandleLoginPage).Methods("GET").Name("admin-login-page")
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			span.SetStatus(codes.Error, "bad-request-body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			span.SetStatus(codes.Error, "parse-form-error")
			return
		}
		loginReq = loginRequest{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		span.SetStatus(codes.Error, "username-empty")
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		span.SetStatus(codes.Error, "password-empty")
		return
	}

	if !handler.validator.Validate(loginReq.Username, loginReq.Password) {
		reqIp, _ := pkg.ReadUserIP(r)
		log.Tracef("failed login attempt for user [%s] from %s", loginReq.Username, reqIp)
		handler.metricsManager.CounterFailedLogins.Inc()
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		span.SetStatus(codes.Error, "wrong-credentials")
		return
	}

	token, err := handler.tokenService.IssueSessionToken(loginReq.Username)
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "token-error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(handler.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	handler.metricsManager.CounterLogins.Inc()

	log.Trace("new login success")
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

// HandleLogout just drops the cookie. There is no server side session
// state to destroy - the token itself stays valid until expiry.
func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	middleware.ClearSessionCookie(w)

	log.Trace("logout success")
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteTextResponseOK(w, "logged-out")
}

// HandleSession reports whether the request carries a valid session.
// Always 200 - an anonymous caller simply gets authenticated: false.
func (handler *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.session")
	defer span.End()

	type sessionResponse struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username,omitempty"`
	}

	resp := sessionResponse{}
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if session := handler.tokenService.VerifySessionToken(cookie.Value); session != nil {
			resp.Authenticated = true
			resp.Username = session.Username
		}
	}

	respJson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "marshal-error")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
