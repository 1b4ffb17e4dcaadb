// Package booking searches for car-park slots, books one, and confirms the
// booking against a fresh read of the ledger.
package booking

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/ledger"
	"github.com/xkilldash9x/parkbook/internal/page"
	"github.com/xkilldash9x/parkbook/internal/resolver"
)

// LedgerReader reads the user's current car-park bookings from the page.
type LedgerReader interface {
	Read(ctx context.Context) ([]ledger.Booking, error)
}

// Engine drives one search-select-book-verify cycle per call. It is not safe
// for concurrent use; a session books one slot at a time.
type Engine struct {
	client      page.Client
	ledger      LedgerReader
	selectors   config.SelectorsConfig
	waitTimeout time.Duration
	keywords    []string
	maxAttempts int
	rng         *rand.Rand
	logger      *zap.Logger
}

// NewEngine builds an Engine. rng decides which unrestricted slot is taken; pass a
// seeded source for reproducible runs.
func NewEngine(cfg config.Interface, client page.Client, reader LedgerReader, rng *rand.Rand, logger *zap.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	maxAttempts := cfg.Booking().MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Engine{
		client:      client,
		ledger:      reader,
		selectors:   cfg.Site().Selectors,
		waitTimeout: cfg.Browser().WaitTimeout,
		keywords:    cfg.Booking().RestrictedKeywords,
		maxAttempts: maxAttempts,
		rng:         rng,
		logger:      logger.Named("engine"),
	}
}

// AttemptBooking tries to book option (a date label as the site offers it) on
// floor. Business outcomes come back in the Outcome; the error is reserved for
// page failures, which end the session.
func (e *Engine) AttemptBooking(ctx context.Context, option string, floor int) (Outcome, error) {
	d, err := resolver.ParseOption(option)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Option: option, Date: d, Floor: floor}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		out.Attempts = attempt
		out.Slot = ""

		if err := e.search(ctx, option, floor); err != nil {
			return out, fmt.Errorf("search for %s on floor %d failed: %w", option, floor, err)
		}

		candidates, message, err := e.enumerate(ctx)
		if err != nil {
			return out, fmt.Errorf("reading results for %s on floor %d failed: %w", option, floor, err)
		}
		if len(candidates) == 0 {
			out.Result = NoSlotsAvailable
			out.Message = message
			e.report(out)
			return out, nil
		}

		allowed := Unrestricted(candidates)
		if len(allowed) == 0 {
			out.Result = OnlyRestrictedSlotsAvailable
			out.Slot = candidates[0].Label
			e.report(out)
			return out, nil
		}

		choice := allowed[e.rng.Intn(len(allowed))]
		out.Slot = choice.Label
		if err := e.client.ClickElement(ctx, choice.Handle); err != nil {
			return out, fmt.Errorf("clicking book for %q failed: %w", choice.Label, err)
		}

		bookings, err := e.ledger.Read(ctx)
		if err != nil {
			return out, fmt.Errorf("verifying booking for %s failed: %w", option, err)
		}
		if ledger.Contains(bookings, d) {
			out.Result = Booked
			e.report(out)
			return out, nil
		}

		e.logger.Warn("Booking not found in ledger; searching again.",
			zap.String("date", option),
			zap.Int("floor", floor),
			zap.String("slot", choice.Label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
		)
	}

	out.Result = VerificationFailed
	e.report(out)
	return out, nil
}

// search fills the form for a full-day booking and submits it.
func (e *Engine) search(ctx context.Context, option string, floor int) error {
	s := e.selectors
	if _, err := e.client.WaitVisible(ctx, s.DateSelect, e.waitTimeout); err != nil {
		return err
	}
	if err := e.client.SelectByVisibleText(ctx, s.DateSelect, option); err != nil {
		return err
	}
	for _, box := range []string{s.AMCheckbox, s.PMCheckbox} {
		if err := e.ensureChecked(ctx, box); err != nil {
			return err
		}
	}
	if err := e.client.SelectByValue(ctx, s.FloorSelect, strconv.Itoa(floor)); err != nil {
		return err
	}
	return e.client.Click(ctx, s.SearchButton)
}

func (e *Engine) ensureChecked(ctx context.Context, selector string) error {
	checked, err := e.client.IsChecked(ctx, selector)
	if err != nil {
		return err
	}
	if checked {
		return nil
	}
	return e.client.Click(ctx, selector)
}

// enumerate reads the result rows. When no row has a Book control the first
// cell holds the site's explanation, which is returned as the message.
func (e *Engine) enumerate(ctx context.Context) ([]Candidate, string, error) {
	s := e.selectors
	results, err := e.client.WaitVisible(ctx, s.ResultsTable, e.waitTimeout)
	if err != nil {
		return nil, "", err
	}
	rows, err := e.client.FindAllIn(ctx, results, "tr")
	if err != nil {
		return nil, "", err
	}

	var candidates []Candidate
	for _, row := range rows {
		buttons, err := e.client.FindAllIn(ctx, row, s.BookButton)
		if err != nil {
			return nil, "", err
		}
		if len(buttons) == 0 {
			continue
		}
		label, err := e.rowLabel(ctx, row)
		if err != nil {
			return nil, "", err
		}
		candidates = append(candidates, Candidate{
			Label:      label,
			Restricted: IsRestricted(label, e.keywords),
			Handle:     buttons[0],
		})
	}
	if len(candidates) > 0 {
		return candidates, "", nil
	}

	cells, err := e.client.FindAllIn(ctx, results, "td")
	if err != nil {
		return nil, "", err
	}
	if len(cells) == 0 {
		return nil, "", nil
	}
	message, err := e.client.Text(ctx, cells[0])
	if err != nil {
		return nil, "", err
	}
	return nil, strings.TrimSpace(message), nil
}

// rowLabel returns the slot name, which the site puts in the second cell.
func (e *Engine) rowLabel(ctx context.Context, row page.Element) (string, error) {
	tds, err := e.client.FindAllIn(ctx, row, "td")
	if err != nil {
		return "", err
	}
	if len(tds) == 0 {
		return "", nil
	}
	cell := tds[0]
	if len(tds) > 1 {
		cell = tds[1]
	}
	text, err := e.client.Text(ctx, cell)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) report(out Outcome) {
	fields := []zap.Field{
		zap.String("date", out.Option),
		zap.Int("floor", out.Floor),
		zap.Stringer("result", out.Result),
		zap.Int("attempts", out.Attempts),
	}
	if out.Slot != "" {
		fields = append(fields, zap.String("slot", out.Slot))
	}
	if out.Message != "" {
		fields = append(fields, zap.String("message", out.Message))
	}

	switch out.Result {
	case Booked:
		e.logger.Info("Car park booked.", fields...)
	case NoSlotsAvailable:
		e.logger.Warn("No car park spaces available.", fields...)
	case OnlyRestrictedSlotsAvailable:
		e.logger.Warn("Only restricted car park spaces available.", fields...)
	default:
		e.logger.Warn("Booking could not be confirmed.", fields...)
	}
}
