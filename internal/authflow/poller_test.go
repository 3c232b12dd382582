package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingChangeFixture(t *testing.T) (*Coordinator, *fakeBackend) {
	t.Helper()
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")
	res := co.ChangeEmail(context.Background(), "new@b.com", "secret1")
	require.True(t, res.Success, res.Error)
	return co, backend
}

func TestReconcilerStopsWhenConfirmed(t *testing.T) {
	co, backend := pendingChangeFixture(t)
	backend.confirmEmailChange(false)

	r := NewReconciler(co, ReconcilerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	assert.Empty(t, co.Session().PendingEmailChange)
}

func TestReconcilerStopsOnPushConfirmation(t *testing.T) {
	co, backend := pendingChangeFixture(t)

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()

	// No tick will ever fire; the watch wake-up must end the loop.
	time.Sleep(10 * time.Millisecond)
	backend.confirmEmailChange(true)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not observe push confirmation")
	}
}

func TestReconcilerStopsOnCancel(t *testing.T) {
	co, _ := pendingChangeFixture(t)

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	co.SetPendingEmailChange("")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not observe cancellation")
	}
}

func TestReconcilerAttemptCap(t *testing.T) {
	co, _ := pendingChangeFixture(t)

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Millisecond, MaxAttempts: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := r.Run(ctx)
	require.ErrorIs(t, err, ErrReconcileExhausted)
	assert.Equal(t, "new@b.com", co.Session().PendingEmailChange, "cap exhaustion leaves the marker for the consumer to decide")
}

func TestReconcilerContextCancellation(t *testing.T) {
	co, _ := pendingChangeFixture(t)

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler ignored context cancellation")
	}
}

func TestReconcilerNoPendingChange(t *testing.T) {
	co, backend := newTestCoordinator(t)
	signedUpAndVerified(t, co, backend, "a@b.com", "secret1", "Ann")

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Hour})
	require.NoError(t, r.Run(context.Background()))
}

func TestReconcilerSingleRun(t *testing.T) {
	co, _ := pendingChangeFixture(t)

	r := NewReconciler(co, ReconcilerConfig{Interval: time.Hour})

	go func() { _ = r.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	require.ErrorIs(t, r.Run(context.Background()), ErrReconcilerRunning)
	co.SetPendingEmailChange("")
}
