// Package identity defines the vocabulary shared between the auth
// coordinator and identity backends: the principal record, the backend
// capability interface, and the error taxonomy.
package identity

import (
	"context"
	"time"
)

// Identity represents the authenticated principal as reported by a backend.
type Identity struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	EmailVerified bool      `json:"emailVerified"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a copy so callers can hold the record without sharing state.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	dup := *id
	return &dup
}

// Backend is the external identity provider capability. Implementations own
// credential verification, token issuance and transactional email delivery.
// A Backend value is session scoped: SignIn/SignUp establish the current
// principal, and the remaining mutators act on it.
type Backend interface {
	// SignIn verifies credentials and makes the account current. The
	// identity is returned even when unverified; gating is the caller's
	// responsibility.
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// SignUp creates a credential and makes the new account current.
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	// SignOut clears the current principal. Safe to call when signed out.
	SignOut(ctx context.Context) error
	// Reload fetches the freshest identity record for the current principal.
	Reload(ctx context.Context) (*Identity, error)
	// UpdateDisplayName sets the profile display name of the current principal.
	UpdateDisplayName(ctx context.Context, name string) error
	// UpdatePassword replaces the current principal's password.
	UpdatePassword(ctx context.Context, newPassword string) error
	// Reauthenticate re-proves credentials for the current principal,
	// satisfying the backend's recent-login policy for sensitive mutations.
	Reauthenticate(ctx context.Context, email, password string) error
	// DeleteIdentity permanently removes the current principal.
	DeleteIdentity(ctx context.Context) error
	// SendVerificationEmail delivers a verification link to the current
	// principal's address.
	SendVerificationEmail(ctx context.Context) error
	// SendPasswordResetEmail delivers a reset link to the given address.
	SendPasswordResetEmail(ctx context.Context, email string) error
	// RequestEmailChange delivers a confirmation link to the proposed
	// address; the account email only changes once the link is followed.
	RequestEmailChange(ctx context.Context, newEmail string) error
	// Subscribe registers fn for identity-change notifications. fn is
	// invoked immediately with the current state (nil when signed out) and
	// again on every subsequent change, in order, until the returned
	// cancel function is called.
	Subscribe(fn func(*Identity)) (cancel func())
}
