package runner

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/parkbook/internal/booking"
	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/ledger"
	"github.com/xkilldash9x/parkbook/internal/page"
	"github.com/xkilldash9x/parkbook/internal/resolver"
)

// workflow is the state of a single browser session.
type workflow struct {
	cfg     config.Interface
	client  page.Client
	plan    Plan
	now     func() time.Time
	rng     *rand.Rand
	logger  *zap.Logger
	summary *Summary
}

func (w *workflow) run(ctx context.Context) error {
	if err := w.enterBookingPanel(ctx); err != nil {
		return err
	}

	sel := w.cfg.Site().Selectors
	reader := ledger.NewReader(w.client, sel.BookingsTable, w.cfg.Browser().LedgerTimeout, w.logger)

	wanted, err := w.resolve(ctx, reader)
	if err != nil {
		return err
	}
	w.summary.Planned = wanted
	if len(wanted) == 0 {
		w.logger.Info("Nothing to book.")
		return nil
	}
	w.logger.Info("Dates to book.", zap.Strings("dates", wanted))

	engine := booking.NewEngine(w.cfg, w.client, reader, w.rng, w.logger)
	// All dates go through one floor before the next floor is tried.
	for _, floor := range w.cfg.Booking().Floors {
		bookings, err := reader.Read(ctx)
		if err != nil {
			return fmt.Errorf("failed to read bookings before floor %d: %w", floor, err)
		}
		for _, option := range wanted {
			d, err := resolver.ParseOption(option)
			if err != nil {
				return err
			}
			if ledger.Contains(bookings, d) {
				continue
			}
			out, err := engine.AttemptBooking(ctx, option, floor)
			if err != nil {
				return err
			}
			out.Session = w.summary.Sessions
			w.summary.Outcomes = append(w.summary.Outcomes, out)
		}
	}
	return nil
}

// enterBookingPanel gets from the landing page to the frame holding the
// bookings table and the search form.
func (w *workflow) enterBookingPanel(ctx context.Context) error {
	site := w.cfg.Site()
	sel := site.Selectors

	if err := w.client.Navigate(ctx, site.URL); err != nil {
		return err
	}
	if sel.LoginRedirect != "" {
		if err := w.clickIfPresent(ctx, sel.LoginRedirect); err != nil {
			return err
		}
	}
	if err := w.client.SwitchToFrame(ctx, sel.NavigationFrame); err != nil {
		return err
	}
	if err := w.client.Click(ctx, sel.PersonalSpaces); err != nil {
		return fmt.Errorf("failed to open personal spaces: %w", err)
	}
	w.client.SwitchToTop()
	return w.client.SwitchToFrame(ctx, sel.MainFrame)
}

// clickIfPresent clicks selector when it shows up in time. Not showing up is fine.
func (w *workflow) clickIfPresent(ctx context.Context, selector string) error {
	el, err := w.client.WaitVisible(ctx, selector, w.cfg.Browser().WaitTimeout)
	if err != nil {
		if page.IsTimeout(err) {
			w.logger.Debug("Optional element absent.", zap.String("selector", selector))
			return nil
		}
		return err
	}
	return w.client.ClickElement(ctx, el)
}

// resolve reads the ledger and the offered dates and works out what to book. The
// site sometimes lists no dates on first load, so an empty answer is retried.
func (w *workflow) resolve(ctx context.Context, reader *ledger.Reader) ([]string, error) {
	bk := w.cfg.Booking()
	limit := rate.Inf
	if bk.ResolveRetryDelay > 0 {
		limit = rate.Every(bk.ResolveRetryDelay)
	}
	// Reads of the date options start at least resolve_retry_delay apart.
	poll := rate.NewLimiter(limit, 1)
	for try := 0; ; try++ {
		if err := poll.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to read date options: %w", err)
		}
		bookings, err := reader.Read(ctx)
		if err != nil {
			return nil, err
		}
		offered, err := w.offeredOptions(ctx)
		if err != nil {
			return nil, err
		}

		wanted := resolver.Resolve(offered, resolver.Request{
			Desired:    w.plan.Desired,
			Weekdays:   w.plan.Weekdays,
			Existing:   ledger.Dates(bookings),
			Exclusions: w.plan.Exclusions,
			Now:        w.now().In(w.plan.Location),
			Cutoff:     w.plan.Cutoff,
		})
		if len(wanted) > 0 || try >= bk.ResolveRetries {
			return wanted, nil
		}

		w.logger.Debug("No dates resolved; checking again.",
			zap.Int("offered", len(offered)),
			zap.Int("existing", len(bookings)),
			zap.Int("try", try+1),
		)
	}
}

func (w *workflow) offeredOptions(ctx context.Context) ([]string, error) {
	sel := w.cfg.Site().Selectors.DateSelect
	if _, err := w.client.WaitVisible(ctx, sel, w.cfg.Browser().WaitTimeout); err != nil {
		return nil, fmt.Errorf("date selector not available: %w", err)
	}
	options, err := w.client.FindAll(ctx, sel+" option")
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(options))
	for _, o := range options {
		text, err := w.client.Text(ctx, o)
		if err != nil {
			return nil, err
		}
		labels = append(labels, strings.TrimSpace(text))
	}
	return labels, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
