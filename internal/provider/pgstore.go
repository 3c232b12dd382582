package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pocketshop-app/identity/internal/shared"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateAccount inserts a new unverified account. Emails are stored
// lowercased; the unique index enforces one account per address.
func (s *PGStore) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	now := time.Now().UTC()
	acc := &Account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, display_name, email_verified, disabled, created_at, updated_at)
		 VALUES ($1, $2, $3, '', FALSE, FALSE, $4, $4)`,
		acc.ID, acc.Email, acc.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shared.ErrDuplicateEmail
		}
		return nil, err
	}
	return acc, nil
}

// GetAccount fetches an account by id.
func (s *PGStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, email_verified, disabled, created_at, updated_at
		 FROM accounts WHERE id = $1`, id))
}

// GetAccountByEmail fetches an account by email, case-insensitive.
func (s *PGStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, email_verified, disabled, created_at, updated_at
		 FROM accounts WHERE email = $1`, strings.ToLower(email)))
}

func (s *PGStore) scanOne(row pgx.Row) (*Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.DisplayName,
		&acc.EmailVerified, &acc.Disabled, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// UpdateDisplayName sets the profile display name.
func (s *PGStore) UpdateDisplayName(ctx context.Context, id, name string) error {
	return s.exec(ctx,
		`UPDATE accounts SET display_name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now().UTC())
}

// UpdatePasswordHash replaces the stored password hash.
func (s *PGStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, time.Now().UTC())
}

// UpdateEmail replaces the account email. The address arrives pre-verified,
// so the verified flag stays set.
func (s *PGStore) UpdateEmail(ctx context.Context, id, email string) error {
	err := s.exec(ctx,
		`UPDATE accounts SET email = $2, updated_at = $3 WHERE id = $1`,
		id, strings.ToLower(email), time.Now().UTC())
	if err != nil && isUniqueViolation(err) {
		return shared.ErrDuplicateEmail
	}
	return err
}

// MarkEmailVerified flips the verification flag.
func (s *PGStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.exec(ctx,
		`UPDATE accounts SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
}

// DeleteAccount removes the account row.
func (s *PGStore) DeleteAccount(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

func (s *PGStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
