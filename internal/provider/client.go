package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/shared"
)

// Client is a session-scoped backend handle. It tracks one current account,
// mirrors server-side changes to that account through the provider's
// notification hub, and fans identity-change notifications out to its own
// subscribers in order.
type Client struct {
	p *Provider

	mu        sync.Mutex
	accountID string
	last      *identity.Identity
	subs      map[int]func(*identity.Identity)
	nextSub   int
	detach    func()
}

var _ identity.Backend = (*Client)(nil)

const hubFetchTimeout = 5 * time.Second

func newClient(p *Provider) *Client {
	return &Client{p: p, subs: make(map[int]func(*identity.Identity))}
}

// attach makes accountID current and wires the hub watcher. Callers then
// publish the initial snapshot themselves.
func (c *Client) attach(accountID string) {
	c.mu.Lock()
	if c.detach != nil {
		c.detach()
	}
	c.accountID = accountID
	c.detach = c.p.watchAccount(accountID, c.onAccountChanged)
	c.mu.Unlock()
}

// onAccountChanged runs on hub notifications: the account changed
// server-side (verification, confirmed email change, deletion elsewhere).
func (c *Client) onAccountChanged() {
	ctx, cancel := context.WithTimeout(context.Background(), hubFetchTimeout)
	defer cancel()

	c.mu.Lock()
	accountID := c.accountID
	c.mu.Unlock()
	if accountID == "" {
		return
	}

	acc, err := c.p.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			c.clearCurrent()
			c.publish(nil)
			return
		}
		c.p.logger.Warn("fetch account after change notification",
			slog.String("account_id", accountID), slog.Any("error", err))
		return
	}
	c.publish(c.p.projected(acc))
}

func (c *Client) clearCurrent() {
	c.mu.Lock()
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
	c.accountID = ""
	c.mu.Unlock()
}

// publish records the latest snapshot and notifies subscribers outside the
// lock.
func (c *Client) publish(id *identity.Identity) {
	c.mu.Lock()
	c.last = id.Clone()
	fns := make([]func(*identity.Identity), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(id.Clone())
	}
}

func (c *Client) currentAccount(ctx context.Context) (*Account, error) {
	c.mu.Lock()
	accountID := c.accountID
	c.mu.Unlock()
	if accountID == "" {
		return nil, identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	acc, err := c.p.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.Errf(identity.CodeSessionExpired, "account %s no longer exists", accountID)
		}
		return nil, c.p.storeErr(err)
	}
	return acc, nil
}

// SignIn verifies credentials and makes the account current. The identity
// is returned even when unverified; the coordinator gates it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	acc, err := c.p.verifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.attach(acc.ID)
	id := c.p.projected(acc)
	c.publish(id)
	return id.Clone(), nil
}

// SignUp creates an unverified account and makes it current.
func (c *Client) SignUp(ctx context.Context, email, password string) (*identity.Identity, error) {
	acc, err := c.p.register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.attach(acc.ID)
	id := c.p.projected(acc)
	c.publish(id)
	return id.Clone(), nil
}

// SignOut clears the current account. Safe when already signed out.
func (c *Client) SignOut(ctx context.Context) error {
	c.clearCurrent()
	c.publish(nil)
	return nil
}

// Reload fetches the freshest record for the current account.
func (c *Client) Reload(ctx context.Context) (*identity.Identity, error) {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return nil, err
	}
	id := c.p.projected(acc)
	c.mu.Lock()
	c.last = id.Clone()
	c.mu.Unlock()
	return id, nil
}

// UpdateDisplayName sets the current account's display name. No
// notification fires; profile edits are not sign-in state changes.
func (c *Client) UpdateDisplayName(ctx context.Context, name string) error {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return err
	}
	if err := c.p.store.UpdateDisplayName(ctx, acc.ID, name); err != nil {
		return c.p.storeErr(err)
	}
	return nil
}

// UpdatePassword replaces the current account's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return err
	}
	if len(newPassword) < c.p.minPasswordLen {
		return identity.Errf(identity.CodeWeakPassword, "password below %d characters", c.p.minPasswordLen)
	}
	hash, err := bcryptHash(newPassword)
	if err != nil {
		return err
	}
	if err := c.p.store.UpdatePasswordHash(ctx, acc.ID, hash); err != nil {
		return c.p.storeErr(err)
	}
	return nil
}

// Reauthenticate re-proves credentials for the current account.
func (c *Client) Reauthenticate(ctx context.Context, email, password string) error {
	acc, err := c.p.verifyCredentials(ctx, email, password)
	if err != nil {
		return err
	}
	c.mu.Lock()
	current := c.accountID
	c.mu.Unlock()
	if acc.ID != current {
		return identity.Errf(identity.CodeInvalidCredential, "credential does not match current account")
	}
	return nil
}

// DeleteIdentity permanently removes the current account.
func (c *Client) DeleteIdentity(ctx context.Context) error {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return err
	}
	if err := c.p.store.DeleteAccount(ctx, acc.ID); err != nil {
		return c.p.storeErr(err)
	}
	c.p.tokens.CancelPending(ctx, ActionChangeEmail, acc.ID)
	c.clearCurrent()
	c.publish(nil)
	c.p.notifyAccount(acc.ID)
	return nil
}

// SendVerificationEmail delivers a verification link to the current account.
func (c *Client) SendVerificationEmail(ctx context.Context) error {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return err
	}
	return c.p.sendVerificationEmail(ctx, acc)
}

// SendPasswordResetEmail delivers a reset link to the given address. No
// current account is required.
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.p.SendPasswordResetEmail(ctx, email)
}

// RequestEmailChange mails a confirmation link to the proposed address.
func (c *Client) RequestEmailChange(ctx context.Context, newEmail string) error {
	acc, err := c.currentAccount(ctx)
	if err != nil {
		return err
	}
	return c.p.requestEmailChange(ctx, acc, newEmail)
}

// Subscribe registers fn and fires it immediately with the last known state.
func (c *Client) Subscribe(fn func(*identity.Identity)) (cancel func()) {
	c.mu.Lock()
	sub := c.nextSub
	c.nextSub++
	c.subs[sub] = fn
	last := c.last.Clone()
	c.mu.Unlock()
	fn(last)
	return func() {
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
	}
}

// Close detaches the hub watcher without signing out.
func (c *Client) Close() {
	c.mu.Lock()
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
	c.mu.Unlock()
}
