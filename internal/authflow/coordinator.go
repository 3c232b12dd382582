// Package authflow implements the client-side authentication state machine
// and account-lifecycle coordinator. The Coordinator is the single source of
// truth for "who is signed in" and the sole issuer of identity-mutating
// operations against an identity.Backend.
package authflow

import (
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/pocketshop-app/identity/internal/identity"
)

// State describes the coordinator's position in the account lifecycle.
type State int

const (
	// StateUnauthenticated means no trusted principal is current.
	StateUnauthenticated State = iota
	// StatePendingVerification means a credential exists server-side but
	// its email address has not been verified yet.
	StatePendingVerification
	// StateAuthenticated means a verified principal is current.
	StateAuthenticated
	// StatePendingEmailChange is the authenticated sub-state in which an
	// email change awaits confirmation via the emailed link.
	StatePendingEmailChange
)

func (s State) String() string {
	switch s {
	case StatePendingVerification:
		return "pending-verification"
	case StateAuthenticated:
		return "authenticated"
	case StatePendingEmailChange:
		return "pending-email-change"
	default:
		return "unauthenticated"
	}
}

// Session is the coordinator's view of authentication state. It is replaced
// wholesale on every transition and never mutated in place.
type Session struct {
	// Identity is the current verified principal, nil when unauthenticated.
	// An unverified identity is never exposed here.
	Identity *identity.Identity
	// Loading is true only until the startup observation completes.
	Loading bool
	// PendingEmailChange holds the new address awaiting link confirmation.
	PendingEmailChange string
	// PendingVerificationEmail marks a freshly created, still unverified
	// credential so the PendingVerification state survives the post-signup
	// sign-out.
	PendingVerificationEmail string
	// Version increases by one on every replacement. Replacements computed
	// against a stale version are discarded.
	Version uint64
}

// State derives the lifecycle state from the session record.
func (s Session) State() State {
	switch {
	case s.Identity == nil && s.PendingVerificationEmail != "":
		return StatePendingVerification
	case s.Identity == nil:
		return StateUnauthenticated
	case s.PendingEmailChange != "":
		return StatePendingEmailChange
	default:
		return StateAuthenticated
	}
}

// Config carries optional coordinator dependencies.
type Config struct {
	Logger   *slog.Logger
	Catalog  *identity.Catalog
	Language language.Tag
}

// Coordinator owns the session record and mediates every account-lifecycle
// operation. All backend calls within one operation are sequential; the
// identity-change subscription is the only ambient writer and replacements
// are serialized through one mutex.
type Coordinator struct {
	backend identity.Backend
	logger  *slog.Logger
	catalog *identity.Catalog
	lang    language.Tag

	mu        sync.Mutex
	session   Session
	watchers  map[int]func(Session)
	nextWatch int

	unsubscribe func()
}

// New constructs a Coordinator and begins the startup observation: the
// backend subscription fires immediately with the restored sign-in state,
// which clears Session.Loading. Call Close at teardown.
func New(backend identity.Backend, cfg Config) *Coordinator {
	return Resume(backend, cfg, "")
}

// Resume is New with a previously tracked pending email change, so a
// consumer persisting the marker across restarts can seed it back.
func Resume(backend identity.Backend, cfg Config, pendingEmail string) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = identity.NewCatalog()
	}
	lang := cfg.Language
	if lang == (language.Tag{}) {
		lang = language.English
	}
	c := &Coordinator{
		backend:  backend,
		logger:   logger,
		catalog:  catalog,
		lang:     lang,
		session:  Session{Loading: true, PendingEmailChange: pendingEmail},
		watchers: make(map[int]func(Session)),
	}
	c.unsubscribe = backend.Subscribe(c.onIdentityChanged)
	return c
}

// Close detaches the identity-change subscription.
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Session returns the current session record.
func (c *Coordinator) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Watch registers fn to run on every session replacement and returns a
// cancel function. fn must not call back into the coordinator.
func (c *Coordinator) Watch(fn func(Session)) (cancel func()) {
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

// SetPendingEmailChange sets or clears the client-side pending email marker.
// Clearing it cancels the tracking only; it does not revoke a pending
// server-side change.
func (c *Coordinator) SetPendingEmailChange(email string) {
	c.replace(func(s *Session) {
		s.PendingEmailChange = email
	})
}

// onIdentityChanged applies a backend identity-change notification. An
// unverified identity is gated to nil so it is never exposed as an active
// session. Reconciliation of a pending email change also happens here, so a
// confirmation observed through the push path clears the marker without a
// poll tick.
func (c *Coordinator) onIdentityChanged(id *identity.Identity) {
	c.replace(func(s *Session) {
		s.Loading = false
		if id != nil && id.EmailVerified {
			s.Identity = id.Clone()
			s.PendingVerificationEmail = ""
			if s.PendingEmailChange != "" && strings.EqualFold(id.Email, s.PendingEmailChange) {
				s.PendingEmailChange = ""
			}
		} else {
			s.Identity = nil
		}
	})
}

// replace swaps the session record under the mutex and notifies watchers
// with the new value after the lock is released.
func (c *Coordinator) replace(mutate func(*Session)) Session {
	c.mu.Lock()
	next := c.session
	mutate(&next)
	next.Version = c.session.Version + 1
	c.session = next
	fns := make([]func(Session), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
	return next
}

// replaceIfCurrent applies the replacement only when no other writer has
// advanced the session since the caller's snapshot. An operation that
// awaited the backend uses this to discard its replacement when a
// subscription callback interleaved with the await.
func (c *Coordinator) replaceIfCurrent(version uint64, mutate func(*Session)) (Session, bool) {
	c.mu.Lock()
	if c.session.Version != version {
		cur := c.session
		c.mu.Unlock()
		return cur, false
	}
	next := c.session
	mutate(&next)
	next.Version = c.session.Version + 1
	c.session = next
	fns := make([]func(Session), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
	return next, true
}

// messageFor maps a backend error to its user-facing message.
func (c *Coordinator) messageFor(err error) string {
	return c.catalog.Message(c.lang, identity.CodeOf(err))
}
