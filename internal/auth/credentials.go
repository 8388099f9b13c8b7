package auth

import (
	"crypto/subtle"

	"github.com/adambn/recruitly/pkg"
)

var _ Comparator = (*PlainComparator)(nil)
var _ Comparator = (*BcryptComparator)(nil)

// Comparator checks a submitted password against the configured one.
// Pluggable so the plaintext comparison can be swapped for a salted hash
// one without touching the login handler.
type Comparator interface {
	Compare(given, configured string) bool
}

// PlainComparator compares plaintext values in constant time.
//
// Plaintext admin credentials are a deployment hazard - prefer
// BcryptComparator with a hashed password anywhere that matters.
type PlainComparator struct{}

func (PlainComparator) Compare(given, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(configured)) == 1
}

// BcryptComparator expects the configured value to be a bcrypt hash
type BcryptComparator struct{}

func (BcryptComparator) Compare(given, configured string) bool {
	return pkg.CheckPasswordHash(given, configured)
}

type Admin struct {
	Username string
	// Password is plaintext or a bcrypt hash, depending on the comparator
	Password string
}

type CredentialValidator struct {
	admin      Admin
	comparator Comparator
}

func NewCredentialValidator(admin Admin, comparator Comparator) *CredentialValidator {
	if comparator == nil {
		comparator = PlainComparator{}
	}
	return &CredentialValidator{
		admin:      admin,
		comparator: comparator,
	}
}

// Validate returns true only for the exact configured username and a
// password accepted by the comparator. No rate limiting or lockout here -
// the login route carries its own rate limiter.
func (v *CredentialValidator) Validate(username, password string) bool {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.admin.Username)) == 1
	passwordOK := v.comparator.Compare(password, v.admin.Password)
	return usernameOK && passwordOK
}

func (v *CredentialValidator) Username() string {
	return v.admin.Username
}
