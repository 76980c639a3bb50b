package security

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"

	"constructlink/session"
)

// SecurityError marks failures of a security check that the caller may turn
// into a form error instead of aborting the request.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string { return "security: " + e.Reason }

var (
	ErrCSRF        = &SecurityError{Reason: "csrf token mismatch"}
	ErrRateLimited = &SecurityError{Reason: "too many attempts"}
)

// FormField and Header are where a submitted CSRF token is looked up.
const (
	FormField = "csrf_token"
	Header    = "X-CSRF-Token"
)

const csrfTokenBytes = 32

// CSRFToken returns the token bound to sess, creating one on first use. The
// caller is responsible for saving the session.
func CSRFToken(sess *sessions.Session) (string, error) {
	if tok := session.String(sess, session.KeyCSRFToken); tok != "" {
		return tok, nil
	}
	tok, err := RandomToken(csrfTokenBytes)
	if err != nil {
		return "", err
	}
	sess.Values[session.KeyCSRFToken] = tok
	return tok, nil
}

// ValidateCSRF returns ErrCSRF unless submitted equals the session token.
func ValidateCSRF(sess *sessions.Session, submitted string) error {
	want := session.String(sess, session.KeyCSRFToken)
	if want == "" || submitted == "" {
		return ErrCSRF
	}
	if !ConstantTimeEqual(want, submitted) {
		return ErrCSRF
	}
	return nil
}

// TokenFromRequest reads the submitted token from the form, then the header.
func TokenFromRequest(r *http.Request) string {
	if v := r.PostFormValue(FormField); v != "" {
		return v
	}
	return r.Header.Get(Header)
}

// ConstantTimeEqual compares two secrets without leaking timing.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsSecurityError reports whether err is a *SecurityError.
func IsSecurityError(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}
