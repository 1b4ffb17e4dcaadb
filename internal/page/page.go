// Package page defines the narrow browser capability set the booking logic drives.
// The production implementation lives in internal/browser; tests script it with fakes.
package page

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned (wrapped) by any bounded wait that expires before the
// expected page state appears. Callers treat it as recoverable.
var ErrTimeout = errors.New("page: timed out waiting for element")

// ErrNotFound is returned when a selector that is expected to resolve immediately
// matches nothing in the current frame.
var ErrNotFound = errors.New("page: element not found")

// Element is an opaque handle to a node in the current document. A handle is only
// valid until the document it came from is replaced (navigation, search submit).
type Element interface {
	// NodeID identifies the node within the driver. Fakes may use any stable value.
	NodeID() int64
}

// Client is the set of page operations the core requires. All selectors are CSS
// selectors evaluated relative to the current frame.
type Client interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// SwitchToFrame makes the iframe matched by selector (in the top document) the
	// root for subsequent queries. SwitchToTop resets to the top document.
	SwitchToFrame(ctx context.Context, selector string) error
	SwitchToTop()

	SelectByVisibleText(ctx context.Context, selector, text string) error
	SelectByValue(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickElement(ctx context.Context, el Element) error
	IsChecked(ctx context.Context, selector string) (bool, error)

	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindAllIn(ctx context.Context, parent Element, selector string) ([]Element, error)
	OuterHTML(ctx context.Context, el Element) (string, error)
	Text(ctx context.Context, el Element) (string, error)

	Close(ctx context.Context) error
}

// IsTimeout reports whether err is (or wraps) ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
