package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the HTTP-only cookie carrying the admin session token
	SessionCookieName = "admin_token"

	purposeUnsubscribe = "unsubscribe"

	DefaultSessionTTL     = 24 * time.Hour
	DefaultUnsubscribeTTL = 30 * 24 * time.Hour
)

// Session is reconstructed from a verified token on each request,
// never persisted server side
type Session struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Purpose string `json:"purpose,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-SHA256 signed, time limited tokens.
// It holds no state besides the signing secret - tokens cannot be revoked,
// they die only through expiry or the client dropping the cookie.
type TokenService struct {
	secret         []byte
	sessionTTL     time.Duration
	unsubscribeTTL time.Duration
	// ability to inject time func (for unit testing token expiry)
	NowFunc func() time.Time
}

func NewTokenService(secret string, sessionTTL, unsubscribeTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if unsubscribeTTL <= 0 {
		unsubscribeTTL = DefaultUnsubscribeTTL
	}
	return &TokenService{
		secret:         []byte(secret),
		sessionTTL:     sessionTTL,
		unsubscribeTTL: unsubscribeTTL,
		NowFunc:        time.Now,
	}
}

func (ts *TokenService) IssueSessionToken(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username empty")
	}

	now := ts.NowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.sessionTTL)),
		},
	})

	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// VerifySessionToken returns the session encoded in the token, or nil on
// any verification failure. Expired, malformed and forged tokens are
// indistinguishable to the caller.
func (ts *TokenService) VerifySessionToken(tokenString string) *Session {
	claims, ok := ts.parse(tokenString)
	if !ok {
		return nil
	}
	if claims.Subject == "" {
		return nil
	}

	session := &Session{
		Username: claims.Subject,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}

func (ts *TokenService) IssueUnsubscribeToken(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("email empty")
	}

	now := ts.NowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Purpose: purposeUnsubscribe,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.unsubscribeTTL)),
		},
	})

	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return signed, nil
}

// VerifyUnsubscribeToken returns the normalized email embedded in the token.
// A signed session token does not pass here - the purpose claim must match.
func (ts *TokenService) VerifyUnsubscribeToken(tokenString string) (string, bool) {
	claims, ok := ts.parse(tokenString)
	if !ok {
		return "", false
	}
	if claims.Purpose != purposeUnsubscribe {
		return "", false
	}
	if claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

func (ts *TokenService) parse(tokenString string) (*tokenClaims, bool) {
	if tokenString == "" {
		return nil, false
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (interface{}, error) {
			return ts.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.NowFunc),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	return &claims, true
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
