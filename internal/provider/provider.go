// Package provider is a self-hosted identity backend: credential storage in
// PostgreSQL, single-use action tokens in Redis, and transactional email
// handed off to the background worker. Clients obtained from it satisfy
// identity.Backend, so the auth coordinator runs against it unchanged.
package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/shared"
)

// Mailer enqueues transactional email. Delivery happens out of band.
type Mailer interface {
	EnqueueVerification(ctx context.Context, to, link string) error
	EnqueuePasswordReset(ctx context.Context, to, link string) error
	EnqueueEmailChange(ctx context.Context, to, link string) error
}

// Config carries provider dependencies and policy.
type Config struct {
	Store  Store
	Tokens *TokenStore
	Mailer Mailer
	Logger *slog.Logger
	// ActionLinkBase is the public base URL emailed action links point at.
	ActionLinkBase string
	// MinPasswordLen is the server-side strength policy. Defaults to 6.
	MinPasswordLen int
}

// Provider owns accounts and the account-change notification hub.
type Provider struct {
	store          Store
	tokens         *TokenStore
	mailer         Mailer
	logger         *slog.Logger
	linkBase       string
	minPasswordLen int

	mu       sync.Mutex
	watchers map[string]map[int]func() // account id -> hub subscribers
	nextSub  int
}

// New constructs a Provider.
func New(cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minLen := cfg.MinPasswordLen
	if minLen <= 0 {
		minLen = 6
	}
	return &Provider{
		store:          cfg.Store,
		tokens:         cfg.Tokens,
		mailer:         cfg.Mailer,
		logger:         logger,
		linkBase:       strings.TrimRight(cfg.ActionLinkBase, "/"),
		minPasswordLen: minLen,
		watchers:       make(map[string]map[int]func()),
	}
}

// NewClient returns a fresh, signed-out backend handle.
func (p *Provider) NewClient() *Client {
	return newClient(p)
}

// ClientFor resumes a backend handle for a stored session's account.
func (p *Provider) ClientFor(ctx context.Context, accountID string) (*Client, error) {
	if accountID == "" {
		return newClient(p), nil
	}
	acc, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.Errf(identity.CodeSessionExpired, "account %s no longer exists", accountID)
		}
		return nil, p.storeErr(err)
	}
	c := newClient(p)
	c.attach(acc.ID)
	c.mu.Lock()
	c.last = p.projected(acc)
	c.mu.Unlock()
	return c, nil
}

func (p *Provider) projected(acc *Account) *identity.Identity {
	if acc == nil {
		return nil
	}
	return &identity.Identity{
		ID:            acc.ID,
		Email:         acc.Email,
		DisplayName:   acc.DisplayName,
		EmailVerified: acc.EmailVerified,
		Disabled:      acc.Disabled,
		CreatedAt:     acc.CreatedAt,
		UpdatedAt:     acc.UpdatedAt,
	}
}

func (p *Provider) storeErr(err error) error {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return identity.NewError(identity.CodeAccountNotFound, err)
	case errors.Is(err, shared.ErrDuplicateEmail):
		return identity.NewError(identity.CodeEmailInUse, err)
	default:
		return identity.NewError(identity.CodeNetworkFailure, err)
	}
}

// verifyCredentials resolves and checks an email/password pair.
func (p *Provider) verifyCredentials(ctx context.Context, email, password string) (*Account, error) {
	acc, err := p.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.Errf(identity.CodeAccountNotFound, "no account for %s", email)
		}
		return nil, p.storeErr(err)
	}
	if acc.Disabled {
		return nil, identity.Errf(identity.CodeAccountDisabled, "account %s disabled", acc.ID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, identity.Errf(identity.CodeWrongPassword, "password mismatch for %s", acc.ID)
	}
	return acc, nil
}

// register creates an unverified account.
func (p *Provider) register(ctx context.Context, email, password string) (*Account, error) {
	if len(password) < p.minPasswordLen {
		return nil, identity.Errf(identity.CodeWeakPassword, "password below %d characters", p.minPasswordLen)
	}
	hash, err := bcryptHash(password)
	if err != nil {
		return nil, err
	}
	acc, err := p.store.CreateAccount(ctx, email, hash)
	if err != nil {
		return nil, p.storeErr(err)
	}
	return acc, nil
}

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", identity.NewError(identity.CodeUnknown, err)
	}
	return string(hash), nil
}

func (p *Provider) actionLink(path, token string) string {
	return p.linkBase + path + "?token=" + url.QueryEscape(token)
}

// sendVerificationEmail issues a verify-email token and enqueues the mail.
func (p *Provider) sendVerificationEmail(ctx context.Context, acc *Account) error {
	token, err := p.tokens.Issue(ctx, ActionVerifyEmail, acc.ID, acc.Email)
	if err != nil {
		return err
	}
	link := p.actionLink("/v1/actions/verify-email", token)
	if err := p.mailer.EnqueueVerification(ctx, acc.Email, link); err != nil {
		return identity.NewError(identity.CodeNetworkFailure, err)
	}
	return nil
}

// SendVerificationEmailTo re-sends the verification link for an address,
// the resend path offered after an unverified login attempt.
func (p *Provider) SendVerificationEmailTo(ctx context.Context, email string) error {
	acc, err := p.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return p.storeErr(err)
	}
	if acc.EmailVerified {
		return identity.Errf(identity.CodeOperationNotAllowed, "account %s already verified", acc.ID)
	}
	return p.sendVerificationEmail(ctx, acc)
}

// SendPasswordResetEmail issues a reset token and enqueues the mail.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	acc, err := p.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return identity.Errf(identity.CodeAccountNotFound, "no account for %s", email)
		}
		return p.storeErr(err)
	}
	token, err := p.tokens.Issue(ctx, ActionResetPassword, acc.ID, acc.Email)
	if err != nil {
		return err
	}
	link := p.actionLink("/v1/actions/reset-password", token)
	if err := p.mailer.EnqueuePasswordReset(ctx, acc.Email, link); err != nil {
		return identity.NewError(identity.CodeNetworkFailure, err)
	}
	return nil
}

// requestEmailChange issues a change-email token for the proposed address
// and mails the confirmation link to it. The account email is untouched
// until the link is followed.
func (p *Provider) requestEmailChange(ctx context.Context, acc *Account, newEmail string) error {
	if existing, err := p.store.GetAccountByEmail(ctx, newEmail); err == nil && existing.ID != acc.ID {
		return identity.Errf(identity.CodeEmailConflict, "address %s registered to another account", newEmail)
	}
	token, err := p.tokens.Issue(ctx, ActionChangeEmail, acc.ID, newEmail)
	if err != nil {
		return err
	}
	link := p.actionLink("/v1/actions/confirm-email-change", token)
	if err := p.mailer.EnqueueEmailChange(ctx, newEmail, link); err != nil {
		return identity.NewError(identity.CodeNetworkFailure, err)
	}
	return nil
}

// ============================================================================
// EMAILED ACTION LINKS
// ============================================================================

// ApplyVerifyEmail marks the token's account verified and notifies its
// live clients.
func (p *Provider) ApplyVerifyEmail(ctx context.Context, token string) error {
	tok, err := p.tokens.Consume(ctx, ActionVerifyEmail, token)
	if err != nil {
		return err
	}
	if err := p.store.MarkEmailVerified(ctx, tok.AccountID); err != nil {
		return p.storeErr(err)
	}
	p.notifyAccount(tok.AccountID)
	return nil
}

// ApplyPasswordReset sets a new password for the token's account.
func (p *Provider) ApplyPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < p.minPasswordLen {
		return identity.Errf(identity.CodeWeakPassword, "password below %d characters", p.minPasswordLen)
	}
	tok, err := p.tokens.Consume(ctx, ActionResetPassword, token)
	if err != nil {
		return err
	}
	hash, err := bcryptHash(newPassword)
	if err != nil {
		return err
	}
	if err := p.store.UpdatePasswordHash(ctx, tok.AccountID, hash); err != nil {
		return p.storeErr(err)
	}
	return nil
}

// ApplyEmailChange moves the token's account to the confirmed new address
// and notifies its live clients, which is what ultimately clears a
// coordinator's pending-email marker.
func (p *Provider) ApplyEmailChange(ctx context.Context, token string) error {
	tok, err := p.tokens.Consume(ctx, ActionChangeEmail, token)
	if err != nil {
		return err
	}
	if err := p.store.UpdateEmail(ctx, tok.AccountID, tok.Email); err != nil {
		return p.storeErr(err)
	}
	p.notifyAccount(tok.AccountID)
	return nil
}

// ============================================================================
// NOTIFICATION HUB
// ============================================================================

// watchAccount registers fn to run whenever the account changes server-side.
func (p *Provider) watchAccount(accountID string, fn func()) (cancel func()) {
	p.mu.Lock()
	sub := p.nextSub
	p.nextSub++
	if p.watchers[accountID] == nil {
		p.watchers[accountID] = make(map[int]func())
	}
	p.watchers[accountID][sub] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		if subs, ok := p.watchers[accountID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(p.watchers, accountID)
			}
		}
		p.mu.Unlock()
	}
}

func (p *Provider) notifyAccount(accountID string) {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.watchers[accountID]))
	for _, fn := range p.watchers[accountID] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
