// Package poll provides a bounded-retry polling primitive for waiting on
// external state to converge. Polling rather than event subscription: the
// external control plane is eventually consistent and offers no practical
// push notification, so a bounded poll with a fixed interval keeps behavior
// predictable and testable.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Check and Query
// =============================================================================

// Check budgets a readiness wait. Ephemeral; exists only for one wait.
type Check struct {
	// Description names the condition being waited on, for logs and errors.
	Description string
	// Interval is the sleep between attempts.
	Interval time.Duration
	// MaxAttempts bounds the number of query invocations.
	MaxAttempts int
}

// Query observes external state once. It returns the observed state for
// diagnostics and whether the expected condition is met. A query error is
// treated as "not ready" and consumes an attempt; transient infrastructure
// hiccups must not abort the wait.
type Query func(ctx context.Context) (state string, ready bool, err error)

// =============================================================================
// Timeout Error
// =============================================================================

// TimeoutError reports an exhausted poll budget. It carries the last observed
// state and the attempt count for diagnosis, and is distinguishable from a
// hard collaborator error via errors.As.
type TimeoutError struct {
	Description string
	Attempts    int
	LastState   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %d attempts (last state: %s)",
		e.Description, e.Attempts, e.LastState)
}

// =============================================================================
// Poller
// =============================================================================

// Poller evaluates a query until it reports ready or the budget is exhausted.
type Poller struct {
	check  Check
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New validates the check and creates a poller. A zero MaxAttempts or a
// non-positive Interval is a configuration error.
func New(check Check, logger *slog.Logger) (*Poller, error) {
	if check.MaxAttempts < 1 {
		return nil, domain.NewConfigurationError("poll.max_attempts", "must be at least 1")
	}
	if check.Interval <= 0 {
		return nil, domain.NewConfigurationError("poll.interval", "must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		check:  check,
		logger: logger.With("component", "poller", "check", check.Description),
		sleep:  sleepContext,
	}, nil
}

// Wait polls until the query reports ready, the budget is exhausted, or the
// context is canceled. Success returns immediately with no extra sleep.
// Cancellation is observed only between attempts, never mid-query.
func (p *Poller) Wait(ctx context.Context, query Query) error {
	var lastState string

	for attempt := 1; attempt <= p.check.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, ready, err := query(ctx)
		if err != nil {
			// Absorbed as "not ready yet"; surfaced only if it persists
			// to exhaustion via the timeout's last state.
			lastState = fmt.Sprintf("query failed: %v", err)
			p.logger.Debug("query failed, counting as not ready",
				"attempt", attempt, "max_attempts", p.check.MaxAttempts, "error", err)
		} else {
			lastState = state
			if ready {
				p.logger.Debug("condition met", "attempt", attempt, "state", state)
				return nil
			}
			p.logger.Debug("not ready, waiting",
				"attempt", attempt, "max_attempts", p.check.MaxAttempts, "state", state)
		}

		if attempt == p.check.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.check.Interval); err != nil {
			return err
		}
	}

	return &TimeoutError{
		Description: p.check.Description,
		Attempts:    p.check.MaxAttempts,
		LastState:   lastState,
	}
}

// sleepContext sleeps for d unless the context is canceled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
