package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrDomainUnreachable      = errors.New("email domain does not exist, please check your email address")
	ErrMailDispatchFailed     = errors.New("email could not be delivered, please check your email address")
	ErrPrincipalNotFound      = errors.New("account not found")
	ErrAlreadyVerified        = errors.New("account already verified")
	ErrNoCodeOutstanding      = errors.New("no code found, please request a new one")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired code, please request a new one")
	ErrWeakCredential         = errors.New("password must be at least 8 characters long and contain an uppercase letter, a lowercase letter, a number and a symbol")
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrResendTooSoon          = errors.New("a code was sent recently, please wait before requesting another one")
	ErrEmailAlreadyRegistered = errors.New("email already exists")
	ErrPendingVerification    = errors.New("email already registered, please verify your account")
	ErrUsernameTaken          = errors.New("username already taken, please change the username")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailNotVerified       = errors.New("please verify your email first")
)

// Code check failures wrap ErrInvalidOrExpiredCode. Callers that face
// clients match on the generic error; diagnostics match on these.
var (
	ErrCodeMismatch = fmt.Errorf("%w: code mismatch", ErrInvalidOrExpiredCode)
	ErrCodeExpired  = fmt.Errorf("%w: code expired", ErrInvalidOrExpiredCode)
)

// reason maps an engine error to the label used in logs and metrics.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, ErrNoCodeOutstanding):
		return "no_code_outstanding"
	case errors.Is(err, ErrDomainUnreachable):
		return "domain_unreachable"
	case errors.Is(err, ErrMailDispatchFailed):
		return "mail_dispatch_failed"
	case errors.Is(err, ErrPrincipalNotFound):
		return "principal_not_found"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrWeakCredential):
		return "weak_credential"
	case errors.Is(err, ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, ErrResendTooSoon):
		return "resend_too_soon"
	case errors.Is(err, ErrEmailAlreadyRegistered), errors.Is(err, ErrPendingVerification), errors.Is(err, ErrUsernameTaken):
		return "duplicate"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	default:
		return "error"
	}
}
