package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager stores API sessions in Redis, keyed by bearer token. The
// mobile clients hold the token; the session carries the account binding and
// the pending-email marker between requests.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// Session holds per-request session data.
type Session struct {
	Token        string
	AccountID    string
	PendingEmail string
	manager      *SessionManager
	destroyed    bool
}

type sessionPayload struct {
	AccountID    string `json:"account_id"`
	PendingEmail string `json:"pending_email,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Issue creates a session bound to an account and persists it.
func (sm *SessionManager) Issue(ctx context.Context, accountID string) (*Session, error) {
	sess := &Session{
		Token:     uuid.NewString(),
		AccountID: accountID,
		manager:   sm,
	}
	if err := sm.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load resolves the request's bearer token. A request without a token
// yields (nil, nil); an unknown or expired token yields ErrSessionNotFound.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, nil
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	return &Session{
		Token:        token,
		AccountID:    stored.AccountID,
		PendingEmail: stored.PendingEmail,
		manager:      sm,
	}, nil
}

// Save persists the session state and refreshes its TTL.
func (sm *SessionManager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.destroyed {
		return nil
	}
	return sm.persist(ctx, sess)
}

// Destroy removes the session record.
func (sm *SessionManager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.destroyed = true
	if err := sm.client.Del(ctx, sm.redisKey(sess.Token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) persist(ctx context.Context, sess *Session) error {
	payload := sessionPayload{AccountID: sess.AccountID, PendingEmail: sess.PendingEmail}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return sm.client.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl).Err()
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
