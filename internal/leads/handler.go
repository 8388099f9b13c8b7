package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/adambn/recruitly/internal/auth"
	"github.com/adambn/recruitly/internal/telemetry/metrics"
	"github.com/adambn/recruitly/internal/telemetry/tracing"
	"github.com/adambn/recruitly/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// local-part@domain.tld
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

type Handler struct {
	api            Api
	tokenService   *auth.TokenService
	metricsManager *metrics.Manager
}

func NewHandler(
	api Api,
	tokenService *auth.TokenService,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		api:            api,
		tokenService:   tokenService,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/leads", handler.HandleAdd).Methods("POST", "OPTIONS").Name("new-lead")
	r.HandleFunc("/api/unsubscribe", handler.HandleUnsubscribeLink).Methods("GET").Name("unsubscribe-link")
	r.HandleFunc("/api/unsubscribe", handler.HandleUnsubscribe).Methods("POST", "OPTIONS").Name("unsubscribe")

	// admin side, behind the session gate:
	r.HandleFunc("/api/admin/leads", handler.HandleList).Methods("GET", "OPTIONS").Name("list-leads")
	r.HandleFunc("/api/admin/leads/unsubscribe-token", handler.HandleNewUnsubscribeToken).
		Methods("GET").Name("new-unsubscribe-token")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "leadsHandler.add")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type leadRequest struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}

	var leadReq leadRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&leadReq); err != nil {
			log.Errorf("add lead, unmarshal json params: %s", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			span.SetStatus(codes.Error, "bad-request-body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("add lead failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			span.SetStatus(codes.Error, "parse-form-error")
			return
		}
		leadReq = leadRequest{
			Name:  r.Form.Get("name"),
			Email: r.Form.Get("email"),
			Phone: r.Form.Get("phone"),
		}
	}

	email := auth.NormalizeEmail(leadReq.Email)
	if !ValidEmail(email) {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-email")
		return
	}

	lead := &Lead{
		Name:      leadReq.Name,
		Email:     email,
		Phone:     leadReq.Phone,
		CreatedAt: time.Now(),
	}

	addedLead, err := handler.api.Add(ctx, lead)
	if err != nil {
		log.Errorf("failed to add new lead [%s]: %s", lead.Email, err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		span.SetStatus(codes.Error, "store-error")
		return
	}

	handler.metricsManager.CounterLeads.Inc()

	log.Printf("new lead added: [%s]: %d", addedLead.Email, addedLead.Id)
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteResponse(w, "", fmt.Sprintf("added:%d", addedLead.Id), http.StatusOK)
}

// HandleUnsubscribeLink is the one-click flow: the token from the mail
// link carries the email. An invalid token gets a generic rejection,
// with no hint whether it was expired, forged or just garbage.
func (handler *Handler) HandleUnsubscribeLink(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "leadsHandler.unsubscribeLink")
	defer span.End()

	token := r.URL.Query().Get("token")
	email, ok := handler.tokenService.VerifyUnsubscribeToken(token)
	if !ok {
		log.Tracef("unsubscribe link, invalid token")
		http.Error(w, "invalid unsubscribe link", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-token")
		return
	}

	handler.unsubscribe(ctx, w, span, email)
}

func (handler *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "leadsHandler.unsubscribe")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type unsubscribeRequest struct {
		Email string `json:"email"`
	}

	var unsubReq unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&unsubReq); err != nil {
		log.Errorf("unsubscribe, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		span.SetStatus(codes.Error, "bad-request-body")
		return
	}

	email := auth.NormalizeEmail(unsubReq.Email)
	if !ValidEmail(email) {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-email")
		return
	}

	handler.unsubscribe(ctx, w, span, email)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "leadsHandler.list")
	defer span.End()

	allLeads, err := handler.api.List(ctx)
	if err != nil {
		log.Errorf("list leads error: %s", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		span.SetStatus(codes.Error, "store-error")
		return
	}

	leadsJson, err := json.Marshal(allLeads)
	if err != nil {
		log.Errorf("marshal leads error: %s", err)
		http.Error(w, "", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "marshal-error")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, leadsJson, http.StatusOK)
}

// HandleNewUnsubscribeToken lets the admin mint the token embedded in
// outgoing mails for a given lead
func (handler *Handler) HandleNewUnsubscribeToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "leadsHandler.newUnsubscribeToken")
	defer span.End()

	email := auth.NormalizeEmail(r.URL.Query().Get("email"))
	if !ValidEmail(email) {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		span.SetStatus(codes.Error, "invalid-email")
		return
	}

	if _, err := handler.api.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "error, lead not found", http.StatusNotFound)
			span.SetStatus(codes.Error, "lead-not-found")
			return
		}
		log.Errorf("get lead [%s] error: %s", email, err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		span.SetStatus(codes.Error, "store-error")
		return
	}

	token, err := handler.tokenService.IssueUnsubscribeToken(email)
	if err != nil {
		log.Errorf("issue unsubscribe token for [%s]: %s", email, err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "token-error")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

func (handler *Handler) unsubscribe(
	ctx context.Context,
	w http.ResponseWriter,
	span trace.Span,
	email string,
) {
	if err := handler.api.Unsubscribe(ctx, email); err != nil {
		log.Errorf("unsubscribe [%s] error: %s", email, err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		span.SetStatus(codes.Error, "store-error")
		return
	}

	handler.metricsManager.CounterUnsubscribes.Inc()

	log.Printf("lead unsubscribed: [%s]", email)
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteTextResponseOK(w, "unsubscribed")
}
