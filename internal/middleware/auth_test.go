package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adambn/recruitly/internal/auth"
	"github.com/adambn/recruitly/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedHandler(t *testing.T, verifier middleware.SessionVerifier) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return middleware.NewAuthMiddlewareHandler(verifier).AuthCheck()(next)
}

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	tokenService := auth.NewTokenService("test-secret", time.Hour, 0)
	validToken, err := tokenService.IssueSessionToken("admin")
	require.NoError(t, err)

	handler := gatedHandler(t, tokenService)

	testCases := []struct {
		name               string
		path               string
		method             string
		cookieValue        string
		expectedStatusCode int
		expectedLocation   string
		expectCookieClear  bool
	}{
		{
			name:               "AllowedPathWithoutCookie",
			path:               "/api/leads",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ProtectedAPIWithoutCookie",
			path:               "/api/admin/candidates",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ProtectedAPIWithValidCookie",
			path:               "/api/admin/candidates",
			method:             "GET",
			cookieValue:        validToken,
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ProtectedAPIWithInvalidCookie",
			path:               "/api/admin/candidates",
			method:             "GET",
			cookieValue:        "garbage-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "LoginAPIAlwaysReachable",
			path:               "/api/admin/login",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "SessionIntrospectionAlwaysReachable",
			path:               "/api/admin/session",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "AdminPageWithoutCookie",
			path:               "/admin",
			method:             "GET",
			expectedStatusCode: http.StatusFound,
			expectedLocation:   "/admin/login",
		},
		{
			name:               "AdminPageTrailingSlashWithoutCookie",
			path:               "/admin/",
			method:             "GET",
			expectedStatusCode: http.StatusFound,
			expectedLocation:   "/admin/login",
		},
		{
			name:               "AdminPageWithCorruptedCookie",
			path:               "/admin",
			method:             "GET",
			cookieValue:        "corrupted-token",
			expectedStatusCode: http.StatusFound,
			expectedLocation:   "/admin/login",
			expectCookieClear:  true,
		},
		{
			name:               "AdminPageWithValidCookie",
			path:               "/admin",
			method:             "GET",
			cookieValue:        validToken,
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LoginPageWithoutCookie",
			path:               "/admin/login",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LoginPageWithValidCookie",
			path:               "/admin/login",
			method:             "GET",
			cookieValue:        validToken,
			expectedStatusCode: http.StatusFound,
			expectedLocation:   "/admin",
		},
		{
			name:               "LoginPageWithInvalidCookie",
			path:               "/admin/login",
			method:             "GET",
			cookieValue:        "corrupted-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "UnguardedPathPassesThrough",
			path:               "/api/unsubscribe",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "OptionsRequest",
			path:               "/api/admin/candidates",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.cookieValue != "" {
				req.AddCookie(&http.Cookie{
					Name:  auth.SessionCookieName,
					Value: tc.cookieValue,
				})
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			if tc.expectedLocation != "" {
				assert.Equal(t, tc.expectedLocation, rr.Header().Get("Location"))
			}

			if tc.expectCookieClear {
				cookies := rr.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
				assert.Empty(t, cookies[0].Value)
				assert.Negative(t, cookies[0].MaxAge)
			} else {
				assert.Empty(t, rr.Result().Cookies())
			}
		})
	}
}

func TestAuthMiddlewareHandler_ExpiredCookieRedirectsAndClears(t *testing.T) {
	tokenService := auth.NewTokenService("test-secret", time.Hour, 0)

	issuedAt := time.Now().Add(-2 * time.Hour)
	tokenService.NowFunc = func() time.Time { return issuedAt }
	expiredToken, err := tokenService.IssueSessionToken("admin")
	require.NoError(t, err)
	tokenService.NowFunc = time.Now

	handler := gatedHandler(t, tokenService)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: expiredToken})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// expired is treated exactly like forged: redirect and cookie cleared
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/admin/login", rr.Header().Get("Location"))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
}
