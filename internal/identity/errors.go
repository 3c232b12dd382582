package identity

import (
	"errors"
	"fmt"
)

// Code enumerates the backend failure vocabulary. The set is closed: every
// fallible backend call fails with one of these, and message mapping switches
// over the enum instead of matching strings.
type Code int

const (
	// CodeUnknown is the default arm for unclassified failures.
	CodeUnknown Code = iota
	// CodeAccountNotFound indicates no account exists for the address.
	CodeAccountNotFound
	// CodeWrongPassword indicates the password did not match.
	CodeWrongPassword
	// CodeInvalidEmail indicates a malformed email address.
	CodeInvalidEmail
	// CodeAccountDisabled indicates the account is administratively disabled.
	CodeAccountDisabled
	// CodeRateLimited indicates too many attempts in a short window.
	CodeRateLimited
	// CodeEmailInUse indicates the address is already registered.
	CodeEmailInUse
	// CodeWeakPassword indicates the password fails the strength policy.
	CodeWeakPassword
	// CodeInvalidCredential indicates a generic credential failure, used
	// when the backend does not distinguish wrong email from wrong password.
	CodeInvalidCredential
	// CodeNetworkFailure indicates the backend was unreachable.
	CodeNetworkFailure
	// CodeRequiresRecentLogin indicates a stale session attempted a
	// sensitive mutation.
	CodeRequiresRecentLogin
	// CodeEmailConflict indicates the address is registered to another account.
	CodeEmailConflict
	// CodeOperationNotAllowed indicates the operation is disabled or an
	// equivalent request is already pending.
	CodeOperationNotAllowed
	// CodeInvalidActionLink indicates a malformed or already-used action link.
	CodeInvalidActionLink
	// CodeExpiredActionLink indicates the action link's TTL elapsed.
	CodeExpiredActionLink
	// CodeSessionExpired indicates the stored session is no longer valid.
	CodeSessionExpired
)

// String returns the stable wire identifier for the code.
func (c Code) String() string {
	switch c {
	case CodeAccountNotFound:
		return "account-not-found"
	case CodeWrongPassword:
		return "wrong-password"
	case CodeInvalidEmail:
		return "invalid-email"
	case CodeAccountDisabled:
		return "account-disabled"
	case CodeRateLimited:
		return "rate-limited"
	case CodeEmailInUse:
		return "email-in-use"
	case CodeWeakPassword:
		return "weak-password"
	case CodeInvalidCredential:
		return "invalid-credential"
	case CodeNetworkFailure:
		return "network-failure"
	case CodeRequiresRecentLogin:
		return "requires-recent-login"
	case CodeEmailConflict:
		return "email-conflict"
	case CodeOperationNotAllowed:
		return "operation-not-allowed"
	case CodeInvalidActionLink:
		return "invalid-action-link"
	case CodeExpiredActionLink:
		return "expired-action-link"
	case CodeSessionExpired:
		return "session-expired"
	default:
		return "unknown"
	}
}

// Error carries a taxonomy code across the backend boundary.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return "identity: " + e.Code.String()
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a taxonomy code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Errf builds a coded error from a format string.
func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, CodeUnknown when uncoded.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeUnknown
}
