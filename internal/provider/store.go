package provider

import (
	"context"
	"time"
)

// Account is the provider-side credential record. The coordinator never sees
// it directly; identities handed across the Backend boundary are projections
// of it.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	DisplayName   string
	EmailVerified bool
	Disabled      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store defines persistence operations for accounts.
type Store interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateDisplayName(ctx context.Context, id, name string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	MarkEmailVerified(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}
