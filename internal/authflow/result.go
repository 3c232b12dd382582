package authflow

import "github.com/pocketshop-app/identity/internal/identity"

// Result is the uniform outcome shape every coordinator operation returns.
// Failures carry a user-facing message; successes may carry operation data.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *Data  `json:"data,omitempty"`
}

// Data holds the operation-specific payload of a successful (or, for the
// unverified-login case, partially informative) result.
type Data struct {
	Message           string             `json:"message,omitempty"`
	User              *identity.Identity `json:"user,omitempty"`
	NeedsVerification bool               `json:"needsVerification,omitempty"`
	EmailUpdated      bool               `json:"emailUpdated,omitempty"`
	PendingEmail      string             `json:"pendingEmail,omitempty"`
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

func success(data *Data) Result {
	return Result{Success: true, Data: data}
}
