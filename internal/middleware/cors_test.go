package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsMiddleware(t *testing.T) {
	testCases := []struct {
		name           string
		origin         string
		userAgent      string
		path           string
		expectCors     bool
		expectedStatus int
	}{
		{
			name:           "AllowedOrigin",
			origin:         "https://www.recruitly.co.il",
			path:           "/api/leads",
			expectCors:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "NotAllowedOrigin",
			origin:         "https://www.notallowed.com",
			path:           "/api/leads",
			expectCors:     false,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "NoOriginPassesThrough",
			path:           "/admin",
			expectCors:     false,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "UnsubscribeLinkFromAnywhere",
			origin:         "https://mail.example.com",
			path:           "/api/unsubscribe",
			expectCors:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "CurlAllowed",
			origin:         "https://www.notallowed.com",
			userAgent:      "curl/8.0.1",
			path:           "/api/leads",
			expectCors:     true,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req, err := http.NewRequest("GET", tc.path, nil)
			require.NoError(t, err)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.userAgent != "" {
				req.Header.Set("User-Agent", tc.userAgent)
			}

			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			handler := Cors()(nextHandler)

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectCors {
				assert.Equal(t, tc.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
