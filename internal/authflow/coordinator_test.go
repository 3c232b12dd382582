package authflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketshop-app/identity/internal/identity"
)

// ============================================================================
// FAKE BACKEND
// ============================================================================

type fakeAccount struct {
	id       string
	email    string
	password string
	name     string
	verified bool
}

type fakeBackend struct {
	mu          sync.Mutex
	accounts    map[string]*fakeAccount // keyed by lowercase email
	current     *fakeAccount
	pending     map[string]string // account id -> requested new email
	subscribers map[int]func(*identity.Identity)
	nextSub     int
	nextID      int

	calls []string

	// Error injection
	signInErr  error
	signUpErr  error
	nameErr    error
	reloadErr  error
	verifyErr  error
	resetErr   error
	reauthErr  error
	passErr    error
	deleteErr  error
	changeErr  error
	signOutErr error

	// reloadHook runs inside Reload before the snapshot is taken, letting
	// tests interleave notifications with an in-flight operation.
	reloadHook func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts:    make(map[string]*fakeAccount),
		pending:     make(map[string]string),
		subscribers: make(map[int]func(*identity.Identity)),
		nextID:      1,
	}
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBackend) callsMade() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) snapshot(acc *fakeAccount) *identity.Identity {
	if acc == nil {
		return nil
	}
	return &identity.Identity{
		ID:            acc.id,
		Email:         acc.email,
		DisplayName:   acc.name,
		EmailVerified: acc.verified,
	}
}

func (b *fakeBackend) notify() {
	b.mu.Lock()
	id := b.snapshot(b.current)
	fns := make([]func(*identity.Identity), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (b *fakeBackend) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	b.record("signIn")
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	b.mu.Lock()
	acc, ok := b.accounts[strings.ToLower(email)]
	if !ok {
		b.mu.Unlock()
		return nil, identity.Errf(identity.CodeAccountNotFound, "no account for %s", email)
	}
	if acc.password != password {
		b.mu.Unlock()
		return nil, identity.Errf(identity.CodeWrongPassword, "password mismatch")
	}
	b.current = acc
	id := b.snapshot(acc)
	b.mu.Unlock()
	b.notify()
	return id, nil
}

func (b *fakeBackend) SignUp(ctx context.Context, email, password string) (*identity.Identity, error) {
	b.record("signUp")
	if b.signUpErr != nil {
		return nil, b.signUpErr
	}
	b.mu.Lock()
	key := strings.ToLower(email)
	if _, exists := b.accounts[key]; exists {
		b.mu.Unlock()
		return nil, identity.Errf(identity.CodeEmailInUse, "email taken")
	}
	acc := &fakeAccount{id: string(rune('a' + b.nextID)), email: email, password: password}
	b.nextID++
	b.accounts[key] = acc
	b.current = acc
	id := b.snapshot(acc)
	b.mu.Unlock()
	b.notify()
	return id, nil
}

func (b *fakeBackend) SignOut(ctx context.Context) error {
	b.record("signOut")
	if b.signOutErr != nil {
		return b.signOutErr
	}
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	b.notify()
	return nil
}

func (b *fakeBackend) Reload(ctx context.Context) (*identity.Identity, error) {
	b.record("reload")
	if b.reloadHook != nil {
		b.reloadHook()
	}
	if b.reloadErr != nil {
		return nil, b.reloadErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	return b.snapshot(b.current), nil
}

func (b *fakeBackend) UpdateDisplayName(ctx context.Context, name string) error {
	b.record("updateDisplayName")
	if b.nameErr != nil {
		return b.nameErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	b.current.name = name
	return nil
}

func (b *fakeBackend) UpdatePassword(ctx context.Context, newPassword string) error {
	b.record("updatePassword")
	if b.passErr != nil {
		return b.passErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	b.current.password = newPassword
	return nil
}

func (b *fakeBackend) Reauthenticate(ctx context.Context, email, password string) error {
	b.record("reauthenticate")
	if b.reauthErr != nil {
		return b.reauthErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || !strings.EqualFold(b.current.email, email) {
		return identity.Errf(identity.CodeInvalidCredential, "credential mismatch")
	}
	if b.current.password != password {
		return identity.Errf(identity.CodeWrongPassword, "password mismatch")
	}
	return nil
}

func (b *fakeBackend) DeleteIdentity(ctx context.Context) error {
	b.record("deleteIdentity")
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	delete(b.accounts, strings.ToLower(b.current.email))
	b.current = nil
	b.mu.Unlock()
	b.notify()
	return nil
}

func (b *fakeBackend) SendVerificationEmail(ctx context.Context) error {
	b.record("sendVerificationEmail")
	return b.verifyErr
}

func (b *fakeBackend) SendPasswordResetEmail(ctx context.Context, email string) error {
	b.record("sendPasswordResetEmail")
	if b.resetErr != nil {
		return b.resetErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[strings.ToLower(email)]; !ok {
		return identity.Errf(identity.CodeAccountNotFound, "no account for %s", email)
	}
	return nil
}

func (b *fakeBackend) RequestEmailChange(ctx context.Context, newEmail string) error {
	b.record("requestEmailChange")
	if b.changeErr != nil {
		return b.changeErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return identity.Errf(identity.CodeSessionExpired, "no current account")
	}
	if _, exists := b.pending[b.current.id]; exists {
		return identity.Errf(identity.CodeOperationNotAllowed, "change already pending")
	}
	b.pending[b.current.id] = newEmail
	return nil
}

func (b *fakeBackend) Subscribe(fn func(*identity.Identity)) func() {
	b.mu.Lock()
	sub := b.nextSub
	b.nextSub++
	b.subscribers[sub] = fn
	id := b.snapshot(b.current)
	b.mu.Unlock()
	fn(id)
	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}
}

// markVerified simulates the account owner clicking the emailed link.
func (b *fakeBackend) markVerified(email string, push bool) {
	b.mu.Lock()
	if acc, ok := b.accounts[strings.ToLower(email)]; ok {
		acc.verified = true
	}
	b.mu.Unlock()
	if push {
		b.notify()
	}
}

// confirmEmailChange applies the pending change for the current account.
// push controls whether subscribers hear about it or the change is only
// observable by polling.
func (b *fakeBackend) confirmEmailChange(push bool) {
	b.mu.Lock()
	if b.current != nil {
		if newEmail, ok := b.pending[b.current.id]; ok {
			delete(b.accounts, strings.ToLower(b.current.email))
			b.current.email = newEmail
			b.accounts[strings.ToLower(newEmail)] = b.current
			delete(b.pending, b.current.id)
		}
	}
	b.mu.Unlock()
	if push {
		b.notify()
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	co := New(backend, Config{})
	t.Cleanup(co.Close)
	return co, backend
}

func signedUpAndVerified(t *testing.T, co *Coordinator, backend *fakeBackend, email, password, name string) {
	t.Helper()
	res := co.Signup(context.Background(), email, password, password, name)
	require.True(t, res.Success, "signup: %s", res.Error)
	backend.markVerified(email, false)
	res = co.Login(context.Background(), email, password)
	require.True(t, res.Success, "login: %s", res.Error)
	backend.calls = nil
}

// ============================================================================
// TESTS
// ============================================================================

func TestStartupObservation(t *testing.T) {
	backend := newFakeBackend()
	backend.accounts["ann@example.com"] = &fakeAccount{id: "a", email: "ann@example.com", password: "secret1", name: "Ann", verified: true}
	backend.current = backend.accounts["ann@example.com"]

	co := New(backend, Config{})
	defer co.Close()

	sess := co.Session()
	assert.False(t, sess.Loading)
	require.NotNil(t, sess.Identity)
	assert.Equal(t, "ann@example.com", sess.Identity.Email)
	assert.Equal(t, StateAuthenticated, sess.State())
}

func TestStartupObservationGatesUnverified(t *testing.T) {
	backend := newFakeBackend()
	backend.accounts["ann@example.com"] = &fakeAccount{id: "a", email: "ann@example.com", password: "secret1"}
	backend.current = backend.accounts["ann@example.com"]

	co := New(backend, Config{})
	defer co.Close()

	sess := co.Session()
	assert.False(t, sess.Loading)
	assert.Nil(t, sess.Identity)
	assert.Equal(t, StateUnauthenticated, sess.State())
}

func TestLoginValidationSkipsBackend(t *testing.T) {
	co, backend := newTestCoordinator(t)
	backend.calls = nil

	for _, tc := range []struct{ email, password string }{
		{"", "secret1"},
		{"a@b.com", ""},
		{"", ""},
	} {
		res := co.Login(context.Background(), tc.email, tc.password)
		require.False(t, res.Success)
		assert.Equal(t, msgMissingCredentials, res.Error)
	}
	assert.Empty(t, backend.callsMade())
}

func TestLoginWrongPassword(t *testing.T) {
	co, backend := newTestCoordinator(t)
	backend.accounts["a@b.com"] = &fakeAccount{id: "a", email: "a@b.com", password: "secret1", verified: true}

	res := co.Login(context.Background(), "a@b.com", "nope")
	require.False(t, res.Success)
	assert.Equal(t, "Incorrect password. Please try again.", res.Error)
	assert.Equal(t, StateUnauthenticated, co.Session().State())
}

func TestSignupLoginScenario(t *testing.T) {
	co, backend := newTestCoordinator(t)
	ctx := context.Background()

	res := co.Signup(ctx, "a@b.com", "secret1", "secret1", "Ann")
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.True(t, res.Data.NeedsVerification)
	assert.Equal(t, msgSignupSuccess, res.Data.Message)
	assert.Equal(t, StatePendingVerification, co.Session().State())
	assert.Nil(t, co.Session().Identity)
	assert.Equal(t,
		[]string{"signUp", "updateDisplayName", "reload", "sendVerificationEmail", "signOut"},
		backend.callsMade())

	// Login before verification forces a sign-out and signals the caller.
	res = co.Login(ctx, "a@b.com", "secret1")
	require.False(t, res.Success)
	assert.Equal(t, msgVerificationRequired, res.Error)
	require.NotNil(t, res.Data)
	assert.True(t, res.Data.NeedsVerification)
	require.NotNil(t, res.Data.User, "identity returned so the caller can resend")
	assert.Equal(t, StateUnauthenticated, co.Session().State())

	backend.markVerified("a@b.com", false)

	res = co.Login(ctx, "a@b.com", "secret1")
	require.True(t, res.Success, res.Error)
	sess := co.Session()
	assert.Equal(t, StateAuthenticated, sess.State())
	require.NotNil(t, sess.Identity)
	assert.Equal(t, "Ann", sess.Identity.DisplayName)
}

func TestSignupValidationSkipsBackend(t *testing.T) {
	co, backend := newTestCoordinator(t)
	backend.calls = nil
	ctx := context.Background()

	res := co.Signup(ctx, "a@b.com", "secret1", "secret1", "   ")
	assert.Equal(t, msgMissingFields, res.Error)

	res = co.Signup(ctx, "a@b.com", "secret1", "secret2", "Ann")
	assert.Equal(t, msgPasswordMismatch, res.Error)

	res = co.Signup(ctx, "a@b.com", "abc", "abc", "Ann")
	assert.Equal(t, msgPasswordTooShort, res.Error)

	assert.Empty(t, backend.callsMade())
}

func TestSignupPartialFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("display name", func(t *testing.T) {
		co, backend := newTestCoordinator(t)
		backend.nameErr = identity.Errf(identity.CodeNetworkFailure, "boom")
		res := co.Signup(ctx, "a@b.com", "secret1", "secret1", "Ann")
		require.False(t, res.Success)
		assert.Equal(t, msgSignupNameFailed, res.Error)
		assert.Contains(t, backend.callsMade(), "signUp", "account exists despite the secondary failure")
	})

	t.Run("verification email", func(t *testing.T) {
		co, backend := newTestCoordinator(t)
		backend.verifyErr = identity.Errf(identity.CodeNetworkFailure, "boom")
		res := co.Signup(ctx, "a@b.com", "secret1", "secret1", "Ann")
		require.False(t, res.Success)
		assert.Equal(t, msgSignupVerificationFailed, res.Error)
	})

	t.Run("email already registered", func(t *testing.T) {
		co, backend := newTestCoordinator(t)
		backend.accounts["a@b.com"] = &fakeAccount{id: "a", email: "a@b.com", password: "other66"}
		res := co.Signup(ctx, "a@b.com", "secret1", "secret1", "Ann")
		require.False(t, res.Success)
		assert.Equal(t, "An account with this email already exists.", res.Error)
	})
}

func TestLogoutIdempotent(t *testing.T) {
	co, _ := newTestCoordinator(t)

	res := co.Logout(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, StateUnauthenticated, co.Session().State())
}

func TestLogoutClearsSession(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.Logout(context.Background())
	require.True(t, res.Success)
	assert.Nil(t, co.Session().Identity)
	assert.Equal(t, StateUnauthenticated, co.Session().State())
}

func TestSendVerificationEmailRequiresSession(t *testing.T) {
	co, _ := newTestCoordinator(t)

	res := co.SendVerificationEmail(context.Background())
	require.False(t, res.Success)
	assert.Equal(t, msgNoUserLoggedIn, res.Error)
}

func TestResetPassword(t *testing.T) {
	co, backend := newTestCoordinator(t)
	backend.accounts["a@b.com"] = &fakeAccount{id: "a", email: "a@b.com", password: "secret1", verified: true}
	backend.calls = nil
	ctx := context.Background()

	res := co.ResetPassword(ctx, "")
	assert.Equal(t, msgMissingResetEmail, res.Error)

	res = co.ResetPassword(ctx, "not-an-email")
	assert.Equal(t, msgInvalidEmailFormat, res.Error)
	assert.Empty(t, backend.callsMade())

	res = co.ResetPassword(ctx, "a@b.com")
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.Contains(t, res.Data.Message, "a@b.com")

	res = co.ResetPassword(ctx, "ghost@b.com")
	require.False(t, res.Success)
	assert.Equal(t, "No account found with this email address.", res.Error)
}

func TestUpdateDisplayName(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	before := co.Session().Version

	res := co.UpdateDisplayName(context.Background(), "  ")
	assert.Equal(t, msgInvalidName, res.Error)

	res = co.UpdateDisplayName(context.Background(), "  Annika ")
	require.True(t, res.Success, res.Error)
	sess := co.Session()
	assert.Equal(t, "Annika", sess.Identity.DisplayName)
	assert.Greater(t, sess.Version, before, "identity replaced to force downstream re-render")
}

func TestChangeEmailSameEmailCaseInsensitive(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "same@x.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "Same@X.com", "secret1")
	require.False(t, res.Success)
	assert.Equal(t, msgSameEmail, res.Error)
	assert.Empty(t, backend.callsMade())
}

func TestChangeEmailWrongPassword(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "new@b.com", "wrongpw")
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "a@b.com", "wrong-password rewrite names the current address")
	assert.NotContains(t, backend.callsMade(), "requestEmailChange")
}

func TestChangeEmailPendingConflict(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)

	res = co.ChangeEmail(context.Background(), "other@b.com", "secret1")
	require.False(t, res.Success)
	assert.Equal(t, msgPendingChangeConflict, res.Error)
}

func TestChangeEmailAndPollReconciliation(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")
	ctx := context.Background()

	res := co.ChangeEmail(ctx, "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.Equal(t, "new@b.com", res.Data.PendingEmail)
	assert.Equal(t, "new@b.com", co.Session().PendingEmailChange)
	assert.Equal(t, StatePendingEmailChange, co.Session().State())
	assert.Equal(t, []string{"reauthenticate", "requestEmailChange"}, backend.callsMade())

	// Not confirmed yet: refresh reports plain success.
	res = co.RefreshUserData(ctx)
	require.True(t, res.Success)
	assert.True(t, res.Data == nil || !res.Data.EmailUpdated)
	assert.Equal(t, "new@b.com", co.Session().PendingEmailChange)

	// Confirmation only observable by polling.
	backend.confirmEmailChange(false)

	res = co.RefreshUserData(ctx)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.True(t, res.Data.EmailUpdated)
	sess := co.Session()
	assert.Empty(t, sess.PendingEmailChange)
	assert.Equal(t, "new@b.com", sess.Identity.Email)
	assert.Equal(t, StateAuthenticated, sess.State())
}

func TestChangeEmailPushReconciliation(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)

	// Confirmation arrives on the push path: the subscription callback
	// reconciles without a single poll.
	backend.confirmEmailChange(true)

	sess := co.Session()
	assert.Empty(t, sess.PendingEmailChange)
	assert.Equal(t, "new@b.com", sess.Identity.Email)
}

func TestCancelPendingEmailChange(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)

	co.SetPendingEmailChange("")
	sess := co.Session()
	assert.Empty(t, sess.PendingEmailChange)
	assert.Equal(t, StateAuthenticated, sess.State())
	assert.Equal(t, "a@b.com", sess.Identity.Email, "cancel only clears client-side tracking")
}

func TestRefreshDiscardsStaleReplacement(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangeEmail(context.Background(), "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)

	// A push notification lands while the reload is in flight. The refresh
	// must not clobber the newer state; reconciliation still reports done.
	backend.reloadHook = func() {
		backend.reloadHook = nil
		backend.confirmEmailChange(true)
	}

	result := co.RefreshUserData(context.Background())
	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.Data)
	assert.True(t, result.Data.EmailUpdated)
	assert.Empty(t, co.Session().PendingEmailChange)
	assert.Equal(t, "new@b.com", co.Session().Identity.Email)
}

func TestRefreshRequiresSession(t *testing.T) {
	co, _ := newTestCoordinator(t)

	res := co.RefreshUserData(context.Background())
	require.False(t, res.Success)
	assert.Equal(t, msgNoUserLoggedIn, res.Error)
}

func TestChangePasswordValidation(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")
	ctx := context.Background()

	res := co.ChangePassword(ctx, "new1", "new2", "old1")
	require.False(t, res.Success)
	assert.Equal(t, msgNewPasswordMismatch, res.Error)
	assert.Empty(t, backend.callsMade())

	res = co.ChangePassword(ctx, "new", "new", "secret1")
	assert.Equal(t, msgNewPasswordTooShort, res.Error)
	assert.Empty(t, backend.callsMade())
}

func TestChangePasswordReauthGate(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	res := co.ChangePassword(context.Background(), "newpass1", "newpass1", "wrongpw")
	require.False(t, res.Success)
	assert.NotContains(t, backend.callsMade(), "updatePassword", "mutation never issued when reauth fails")

	backend.calls = nil
	res = co.ChangePassword(context.Background(), "newpass1", "newpass1", "secret1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, msgPasswordUpdated, res.Data.Message)
	assert.Equal(t, []string{"reauthenticate", "updatePassword"}, backend.callsMade())
}

func TestDeleteAccount(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")
	ctx := context.Background()

	res := co.DeleteAccount(ctx, "")
	require.False(t, res.Success)
	assert.Equal(t, msgPasswordRequired, res.Error)
	assert.Empty(t, backend.callsMade())

	res = co.DeleteAccount(ctx, "wrongpw")
	require.False(t, res.Success)
	assert.NotContains(t, backend.callsMade(), "deleteIdentity")

	res = co.DeleteAccount(ctx, "secret1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, msgAccountDeleted, res.Data.Message)
	assert.Equal(t, StateUnauthenticated, co.Session().State())
	assert.Nil(t, co.Session().Identity)
}

func TestWatchNotifiesOnReplacement(t *testing.T) {
	co, backend := newTestCoordinator(t)

	var got []State
	cancel := co.Watch(func(s Session) {
		got = append(got, s.State())
	})
	defer cancel()

	backend.accounts["a@b.com"] = &fakeAccount{id: "a", email: "a@b.com", password: "secret1", verified: true}
	res := co.Login(context.Background(), "a@b.com", "secret1")
	require.True(t, res.Success, res.Error)

	require.NotEmpty(t, got)
	assert.Equal(t, StateAuthenticated, got[len(got)-1])

	cancel()
	seen := len(got)
	require.True(t, co.Logout(context.Background()).Success)
	assert.Len(t, got, seen, "cancelled watcher hears nothing further")
}
