package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pocketshop-app/identity/internal/identity"
)

// ActionKind discriminates the emailed action links.
type ActionKind string

const (
	// ActionVerifyEmail confirms ownership of a signup address.
	ActionVerifyEmail ActionKind = "verify-email"
	// ActionResetPassword authorizes a password reset.
	ActionResetPassword ActionKind = "reset-password"
	// ActionChangeEmail confirms ownership of a proposed new address.
	ActionChangeEmail ActionKind = "change-email"
)

// ActionToken is the single-use payload behind an emailed link.
type ActionToken struct {
	Token     string     `json:"token"`
	Kind      ActionKind `json:"kind"`
	AccountID string     `json:"account_id"`
	// Email is the address the action concerns: the proposed address for
	// change-email, the account address otherwise.
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore keeps single-use action tokens in Redis. Keys expire a grace
// window past the token TTL so a late click can be answered with an
// "expired" rather than an indistinguishable "invalid".
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

const tokenExpiryGrace = 24 * time.Hour

// NewTokenStore constructs a TokenStore with the given token lifetime.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl, now: time.Now}
}

func tokenKey(kind ActionKind, token string) string {
	return "action:" + string(kind) + ":" + token
}

func pendingKey(kind ActionKind, accountID string) string {
	return "action-pending:" + string(kind) + ":" + accountID
}

// Issue mints a token for the action. For change-email at most one live
// token per account is allowed; a second request fails with
// operation-not-allowed, matching the pending-change conflict the
// coordinator explains to the user.
func (ts *TokenStore) Issue(ctx context.Context, kind ActionKind, accountID, email string) (string, error) {
	if kind == ActionChangeEmail {
		exists, err := ts.client.Exists(ctx, pendingKey(kind, accountID)).Result()
		if err != nil {
			return "", identity.NewError(identity.CodeNetworkFailure, err)
		}
		if exists > 0 {
			return "", identity.Errf(identity.CodeOperationNotAllowed, "email change already pending for account %s", accountID)
		}
	}

	tok := ActionToken{
		Token:     uuid.NewString(),
		Kind:      kind,
		AccountID: accountID,
		Email:     email,
		ExpiresAt: ts.now().Add(ts.ttl),
	}
	payload, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}

	retention := ts.ttl + tokenExpiryGrace
	if err := ts.client.Set(ctx, tokenKey(kind, tok.Token), payload, retention).Err(); err != nil {
		return "", identity.NewError(identity.CodeNetworkFailure, err)
	}
	if kind == ActionChangeEmail {
		if err := ts.client.Set(ctx, pendingKey(kind, accountID), tok.Token, ts.ttl).Err(); err != nil {
			return "", identity.NewError(identity.CodeNetworkFailure, err)
		}
	}
	return tok.Token, nil
}

// Consume resolves and invalidates a token. A missing token is reported as
// invalid, one past its lifetime as expired; both are terminal.
func (ts *TokenStore) Consume(ctx context.Context, kind ActionKind, token string) (*ActionToken, error) {
	key := tokenKey(kind, token)
	payload, err := ts.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, identity.Errf(identity.CodeInvalidActionLink, "unknown %s token", kind)
		}
		return nil, identity.NewError(identity.CodeNetworkFailure, err)
	}

	var tok ActionToken
	if err := json.Unmarshal(payload, &tok); err != nil {
		return nil, identity.NewError(identity.CodeInvalidActionLink, err)
	}

	ts.clearPending(ctx, kind, tok.AccountID)

	if ts.now().After(tok.ExpiresAt) {
		return nil, identity.Errf(identity.CodeExpiredActionLink, "%s token expired at %s", kind, tok.ExpiresAt.Format(time.RFC3339))
	}
	return &tok, nil
}

// CancelPending drops the one-live-token marker so a new change-email
// request can be issued. The token itself stays unusable only once consumed;
// a still-live token remains valid, mirroring the client-side cancel that
// does not revoke the server-side change.
func (ts *TokenStore) CancelPending(ctx context.Context, kind ActionKind, accountID string) {
	ts.clearPending(ctx, kind, accountID)
}

func (ts *TokenStore) clearPending(ctx context.Context, kind ActionKind, accountID string) {
	if kind != ActionChangeEmail {
		return
	}
	_ = ts.client.Del(ctx, pendingKey(kind, accountID)).Err()
}
