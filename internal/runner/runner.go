// Package runner drives whole booking sessions and retries them until the work
// is done or the time budget runs out.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/booking"
	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/page"
)

// ErrTimeBudgetExceeded is returned when sessions kept failing until the
// configured time budget was spent.
var ErrTimeBudgetExceeded = errors.New("time budget exceeded")

const sessionCloseTimeout = 30 * time.Second

// SessionFactory opens a fresh browser session. Each call must return an
// independent client; the runner closes it when the session ends.
type SessionFactory interface {
	NewSession(ctx context.Context) (page.Client, error)
}

// Summary describes one run across all of its sessions. Planned is what the
// last session to reach the date options resolved; each outcome carries the
// session that produced it.
type Summary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Sessions   int               `json:"sessions"`
	Planned    []string          `json:"planned"`
	Outcomes   []booking.Outcome `json:"outcomes"`
	Error      string            `json:"error,omitempty"`
}

// Booked returns the outcomes that ended in a confirmed booking.
func (s Summary) Booked() []booking.Outcome {
	var out []booking.Outcome
	for _, o := range s.Outcomes {
		if o.Result == booking.Booked {
			out = append(out, o)
		}
	}
	return out
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRand sets the source used to pick among equivalent slots.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithRunID sets the identifier reported in the summary.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// Runner executes the booking workflow one session at a time.
type Runner struct {
	cfg     config.Interface
	factory SessionFactory
	logger  *zap.Logger
	now     func() time.Time
	rng     *rand.Rand
	runID   string
}

// New creates a Runner. Unless overridden, the slot choice is seeded from
// booking.seed, or from the clock when that is zero.
func New(cfg config.Interface, factory SessionFactory, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		factory: factory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.New().String()
	}
	if r.rng == nil {
		seed := cfg.Booking().Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		r.rng = rand.New(rand.NewSource(seed))
	}
	r.logger = logger.Named("runner").With(zap.String("run_id", r.runID))
	return r
}

// Run loads the plan and runs sessions until one completes. A failed session
// is torn down and, while the time budget allows, retried retry.delay after it
// failed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()
	summary := Summary{RunID: r.runID, StartedAt: start}
	finish := func(err error) (Summary, error) {
		summary.FinishedAt = r.now()
		if err != nil {
			summary.Error = err.Error()
		}
		return summary, err
	}

	plan, err := LoadPlan(r.cfg.Booking())
	if err != nil {
		return finish(err)
	}
	r.logger.Info("Run started.",
		zap.Int("desired_dates", plan.Desired.Len()),
		zap.Int("exclusions", plan.Exclusions.Len()),
		zap.Stringer("cutoff", plan.Cutoff),
		zap.Ints("floors", r.cfg.Booking().Floors),
	)

	retry := r.cfg.Retry()
	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		summary.Sessions++
		err := r.runSession(ctx, plan, &summary)
		if err == nil {
			r.logger.Info("Run complete.",
				zap.Int("sessions", summary.Sessions),
				zap.Int("booked", len(summary.Booked())),
				zap.Duration("elapsed", r.now().Sub(start)),
			)
			return finish(nil)
		}
		if ctx.Err() != nil {
			return finish(ctx.Err())
		}

		elapsed := r.now().Sub(start)
		r.logger.Error("Session failed.",
			zap.Int("session", summary.Sessions),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		if elapsed >= retry.TimeBudget {
			r.logger.Error("Giving up; time budget exhausted.",
				zap.Duration("time_budget", retry.TimeBudget),
				zap.Int("sessions", summary.Sessions),
			)
			return finish(fmt.Errorf("%w after %d sessions: %v", ErrTimeBudgetExceeded, summary.Sessions, err))
		}
		r.logger.Info("Retrying session.", zap.Duration("delay", retry.Delay))
		// The delay runs from the failure, however long the failed session took.
		if err := sleep(ctx, retry.Delay); err != nil {
			return finish(err)
		}
	}
}

// runSession opens a client, runs the workflow and always closes the client.
// A panic inside the workflow is converted to an error.
func (r *Runner) runSession(ctx context.Context, plan Plan, summary *Summary) (err error) {
	client, err := r.factory.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if cerr := client.Close(closeCtx); cerr != nil {
			r.logger.Warn("Failed to close browser session.", zap.Error(cerr))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Session panicked.", zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("session panicked: %v", p)
		}
	}()

	w := &workflow{
		cfg:     r.cfg,
		client:  client,
		plan:    plan,
		now:     r.now,
		rng:     r.rng,
		logger:  r.logger,
		summary: summary,
	}
	return w.run(ctx)
}
