package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adambn/recruitly/internal/auth"
	"github.com/adambn/recruitly/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHandler(t *testing.T) (*Handler, *TestApi, *auth.TokenService) {
	t.Helper()
	api := NewTestApi()
	tokenService := auth.NewTokenService("test-secret", time.Hour, 30*24*time.Hour)
	handler := NewHandler(api, tokenService, metrics.NewTestManager())
	require.NotNil(t, handler)
	return handler, api, tokenService
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLeadsHandler_Add(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	handler.HandleAdd(rr, jsonReq("POST", "/api/leads", `{"name":"Dana","email":" Dana@Example.COM ","phone":"050-1234567"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "added:1", rr.Body.String())

	lead, err := api.GetByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Dana", lead.Name)
	assert.False(t, lead.Unsubscribed)

	// same email again - last write wins, same id
	rr = httptest.NewRecorder()
	handler.HandleAdd(rr, jsonReq("POST", "/api/leads", `{"name":"Dana Cohen","email":"dana@example.com"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "added:1", rr.Body.String())
}

func TestLeadsHandler_Add_FormBody(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	form := "name=Noam&email=noam%40example.com&phone=052-7654321"
	req := httptest.NewRequest("POST", "/api/leads", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	handler.HandleAdd(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := api.GetByEmail(context.Background(), "noam@example.com")
	require.NoError(t, err)
}

func TestLeadsHandler_Add_InvalidEmail(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	for _, email := range []string{"", "not-an-email", "a@b", "@example.com", "a b@c.de"} {
		rr := httptest.NewRecorder()
		handler.HandleAdd(rr, jsonReq("POST", "/api/leads", fmt.Sprintf(`{"email":%q}`, email)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "email: %q", email)
	}

	// the store was never contacted
	assert.Zero(t, api.Calls)
}

func TestLeadsHandler_Add_StoreDown(t *testing.T) {
	handler, api, _ := newTestHandler(t)
	api.ErrToReturn = ErrTestStoreDown

	rr := httptest.NewRecorder()
	handler.HandleAdd(rr, jsonReq("POST", "/api/leads", `{"email":"dana@example.com"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLeadsHandler_Unsubscribe(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	_, err := api.Add(context.Background(), &Lead{Email: "dana@example.com", CreatedAt: time.Now()})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{"email":"dana@example.com"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "unsubscribed", rr.Body.String())

	lead, err := api.GetByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.True(t, lead.Unsubscribed)

	// second call still reports success
	rr = httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{"email":"dana@example.com"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "unsubscribed", rr.Body.String())
}

func TestLeadsHandler_Unsubscribe_UnknownEmailStillSucceeds(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{"email":"ghost@example.com"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLeadsHandler_Unsubscribe_BadRequests(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	// not parseable json
	rr := httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{{{`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// malformed email
	rr = httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{"email":"not-an-email"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Zero(t, api.Calls)
}

func TestLeadsHandler_Unsubscribe_StoreDown(t *testing.T) {
	handler, api, _ := newTestHandler(t)
	api.ErrToReturn = ErrTestStoreDown

	rr := httptest.NewRecorder()
	handler.HandleUnsubscribe(rr, jsonReq("POST", "/api/unsubscribe", `{"email":"dana@example.com"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLeadsHandler_UnsubscribeLink(t *testing.T) {
	handler, api, tokenService := newTestHandler(t)

	_, err := api.Add(context.Background(), &Lead{Email: "dana@example.com", CreatedAt: time.Now()})
	require.NoError(t, err)

	token, err := tokenService.IssueUnsubscribeToken("dana@example.com")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.HandleUnsubscribeLink(rr, httptest.NewRequest("GET", "/api/unsubscribe?token="+token, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	lead, err := api.GetByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.True(t, lead.Unsubscribed)

	// the link token is not consumed, clicking twice is fine
	rr = httptest.NewRecorder()
	handler.HandleUnsubscribeLink(rr, httptest.NewRequest("GET", "/api/unsubscribe?token="+token, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLeadsHandler_UnsubscribeLink_InvalidTokens(t *testing.T) {
	handler, api, tokenService := newTestHandler(t)

	// a session token is not an unsubscribe token, even though validly signed
	sessionToken, err := tokenService.IssueSessionToken("admin")
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", sessionToken} {
		rr := httptest.NewRecorder()
		handler.HandleUnsubscribeLink(rr, httptest.NewRequest("GET", "/api/unsubscribe?token="+token, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}

	assert.Zero(t, api.Calls)
}

func TestLeadsHandler_List(t *testing.T) {
	handler, api, _ := newTestHandler(t)

	_, err := api.Add(context.Background(), &Lead{Email: "dana@example.com", Name: "Dana", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = api.Add(context.Background(), &Lead{Email: "noam@example.com", Name: "Noam", CreatedAt: time.Now()})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.HandleList(rr, httptest.NewRequest("GET", "/api/admin/leads", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var listed []Lead
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "dana@example.com", listed[0].Email)
	assert.Equal(t, "noam@example.com", listed[1].Email)
}

func TestLeadsHandler_NewUnsubscribeToken(t *testing.T) {
	handler, api, tokenService := newTestHandler(t)

	_, err := api.Add(context.Background(), &Lead{Email: "dana@example.com", CreatedAt: time.Now()})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.HandleNewUnsubscribeToken(rr, httptest.NewRequest("GET", "/api/admin/leads/unsubscribe-token?email=dana@example.com", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	email, ok := tokenService.VerifyUnsubscribeToken(resp.Token)
	require.True(t, ok)
	assert.Equal(t, "dana@example.com", email)
}

func TestLeadsHandler_NewUnsubscribeToken_UnknownLead(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rr := httptest.NewRecorder()
	handler.HandleNewUnsubscribeToken(rr, httptest.NewRequest("GET", "/api/admin/leads/unsubscribe-token?email=ghost@example.com", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
