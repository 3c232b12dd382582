package authflow

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Reconciler polls RefreshUserData while an email change is pending, as a
// fallback for confirmations the push subscription did not observe. The
// subscription remains the primary reconciliation path; the poller exists
// for backends whose notifications can be missed across process restarts.
type Reconciler struct {
	co          *Coordinator
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
	running     atomic.Bool
}

// ReconcilerConfig tunes the polling loop.
type ReconcilerConfig struct {
	// Interval between polls. Defaults to 5 seconds.
	Interval time.Duration
	// MaxAttempts caps the number of polls before giving up. Zero means
	// unbounded. Defaults to 60 (five minutes at the default interval).
	MaxAttempts int
	Logger      *slog.Logger
}

// ErrReconcileExhausted reports that MaxAttempts polls elapsed without the
// pending email change being confirmed.
var ErrReconcileExhausted = errors.New("authflow: email change reconciliation attempts exhausted")

// ErrReconcilerRunning reports a second concurrent Run on the same Reconciler.
var ErrReconcilerRunning = errors.New("authflow: reconciler already running")

const defaultPollInterval = 5 * time.Second
const defaultMaxAttempts = 60

// NewReconciler constructs a Reconciler for the coordinator.
func NewReconciler(co *Coordinator, cfg ReconcilerConfig) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{co: co, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Run polls until the pending email change is confirmed or cancelled. It
// returns nil when the marker cleared (confirmation observed on either the
// poll or the push path, or explicit cancellation), ctx.Err() on context
// cancellation, and ErrReconcileExhausted when the attempt cap is reached.
// Ticks never overlap: each poll completes before the next is considered.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrReconcilerRunning
	}
	defer r.running.Store(false)

	cleared := make(chan struct{}, 1)
	cancel := r.co.Watch(func(s Session) {
		if s.PendingEmailChange == "" {
			select {
			case cleared <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		if r.co.Session().PendingEmailChange == "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleared:
			return nil
		case <-ticker.C:
			res := r.co.RefreshUserData(ctx)
			if !res.Success {
				r.logger.Warn("email change poll", slog.String("error", res.Error))
			}
			if res.Success && res.Data != nil && res.Data.EmailUpdated {
				return nil
			}
			attempts++
			if r.maxAttempts > 0 && attempts >= r.maxAttempts {
				return ErrReconcileExhausted
			}
		}
	}
}
