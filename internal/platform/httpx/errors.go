// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/pocketshop-app/identity/internal/identity"
)

// StatusForCode maps the identity error taxonomy to HTTP status codes.
func StatusForCode(code identity.Code) int {
	switch code {
	case identity.CodeAccountNotFound:
		return http.StatusNotFound
	case identity.CodeWrongPassword, identity.CodeInvalidCredential, identity.CodeSessionExpired, identity.CodeRequiresRecentLogin:
		return http.StatusUnauthorized
	case identity.CodeAccountDisabled, identity.CodeOperationNotAllowed:
		return http.StatusForbidden
	case identity.CodeEmailInUse, identity.CodeEmailConflict:
		return http.StatusConflict
	case identity.CodeRateLimited:
		return http.StatusTooManyRequests
	case identity.CodeInvalidEmail, identity.CodeWeakPassword, identity.CodeInvalidActionLink, identity.CodeExpiredActionLink:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
