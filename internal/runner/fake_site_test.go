package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/page"
	"github.com/xkilldash9x/parkbook/internal/resolver"
)

type fakeElement struct {
	id    int64
	kind  string
	label string
}

func (e *fakeElement) NodeID() int64 { return e.id }

// fakeSite is an in-memory booking site. Clicking Book on a slot records a car
// park booking for the selected date unless dropBookings is set.
type fakeSite struct {
	mu  sync.Mutex
	sel config.SelectorsConfig

	offered      []string
	emptyOffers  int
	bookings     []civil.Date
	slots        map[string][]string
	dropBookings bool
	loginButton  bool

	failNavigate  int
	panicNavigate int

	date    string
	floor   string
	checked map[string]bool
	nextID  int64

	events []string
	opened int
	closed int
}

func newFakeSite(sel config.SelectorsConfig) *fakeSite {
	return &fakeSite{
		sel:     sel,
		slots:   make(map[string][]string),
		checked: make(map[string]bool),
	}
}

func (f *fakeSite) el(kind, label string) *fakeElement {
	f.nextID++
	return &fakeElement{id: f.nextID, kind: kind, label: label}
}

func (f *fakeSite) record(format string, args ...interface{}) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeSite) Events(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// NewSession implements SessionFactory.
func (f *fakeSite) NewSession(ctx context.Context) (page.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	f.checked = make(map[string]bool)
	return &fakeClient{site: f}, nil
}

type fakeClient struct {
	site *fakeSite
}

func (c *fakeClient) Navigate(ctx context.Context, url string) error {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate:%s", url)
	if f.panicNavigate > 0 {
		f.panicNavigate--
		panic("renderer crashed")
	}
	if f.failNavigate > 0 {
		f.failNavigate--
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	return nil
}

func (c *fakeClient) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (page.Element, error) {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	switch selector {
	case f.sel.LoginRedirect:
		if !f.loginButton {
			return nil, fmt.Errorf("%w: %q after %s", page.ErrTimeout, selector, timeout)
		}
		return f.el("login", ""), nil
	case f.sel.BookingsTable:
		return f.el("bookings", ""), nil
	case f.sel.ResultsTable:
		return f.el("results", ""), nil
	default:
		return f.el(selector, ""), nil
	}
}

func (c *fakeClient) SwitchToFrame(ctx context.Context, selector string) error {
	c.site.mu.Lock()
	defer c.site.mu.Unlock()
	c.site.record("frame:%s", selector)
	return nil
}

func (c *fakeClient) SwitchToTop() {}

func (c *fakeClient) SelectByVisibleText(ctx context.Context, selector, text string) error {
	c.site.mu.Lock()
	defer c.site.mu.Unlock()
	c.site.date = text
	return nil
}

func (c *fakeClient) SelectByValue(ctx context.Context, selector, value string) error {
	c.site.mu.Lock()
	defer c.site.mu.Unlock()
	c.site.floor = value
	return nil
}

func (c *fakeClient) Click(ctx context.Context, selector string) error {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	switch selector {
	case f.sel.AMCheckbox, f.sel.PMCheckbox:
		f.checked[selector] = !f.checked[selector]
	case f.sel.SearchButton:
		if !f.checked[f.sel.AMCheckbox] || !f.checked[f.sel.PMCheckbox] {
			return errors.New("search submitted without a full day selected")
		}
		f.record("search:%s@%s", f.date, f.floor)
	default:
		f.record("click:%s", selector)
	}
	return nil
}

func (c *fakeClient) ClickElement(ctx context.Context, el page.Element) error {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	e := el.(*fakeElement)
	switch e.kind {
	case "login":
		f.record("click:login")
	case "book":
		f.record("book:%s@%s:%s", f.date, f.floor, e.label)
		if !f.dropBookings {
			d, err := resolver.ParseOption(f.date)
			if err != nil {
				return err
			}
			f.bookings = append(f.bookings, d)
		}
	default:
		return fmt.Errorf("element %q is not clickable", e.kind)
	}
	return nil
}

func (c *fakeClient) IsChecked(ctx context.Context, selector string) (bool, error) {
	c.site.mu.Lock()
	defer c.site.mu.Unlock()
	return c.site.checked[selector], nil
}

func (c *fakeClient) FindAll(ctx context.Context, selector string) ([]page.Element, error) {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector != f.sel.DateSelect+" option" {
		return nil, nil
	}
	if f.emptyOffers > 0 {
		f.emptyOffers--
		return nil, nil
	}
	out := []page.Element{f.el("option", "Select a date")}
	for _, label := range f.offered {
		out = append(out, f.el("option", label))
	}
	return out, nil
}

func (c *fakeClient) FindAllIn(ctx context.Context, parent page.Element, selector string) ([]page.Element, error) {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	p := parent.(*fakeElement)
	switch {
	case p.kind == "results" && selector == "tr":
		labels := f.slots[f.floor]
		if len(labels) == 0 {
			return []page.Element{f.el("message-row", "")}, nil
		}
		var rows []page.Element
		for _, l := range labels {
			rows = append(rows, f.el("row", l))
		}
		return rows, nil
	case p.kind == "results" && selector == "td":
		return []page.Element{f.el("td", "No spaces available on floor "+f.floor)}, nil
	case p.kind == "row" && selector == f.sel.BookButton:
		return []page.Element{f.el("book", p.label)}, nil
	case p.kind == "row" && selector == "td":
		return []page.Element{f.el("td", "#"), f.el("td", p.label)}, nil
	}
	return nil, nil
}

func (c *fakeClient) OuterHTML(ctx context.Context, el page.Element) (string, error) {
	f := c.site
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ledger")
	if len(f.bookings) == 0 {
		return `<table><tr><td>You have no bookings.</td></tr></table>`, nil
	}
	var b strings.Builder
	b.WriteString(`<table><tr><th>Floor</th><th>From</th></tr>`)
	for _, d := range f.bookings {
		fmt.Fprintf(&b, `<tr><td>Car Park</td><td>%02d/%02d/%d AM</td></tr>`, d.Day, int(d.Month), d.Year)
	}
	b.WriteString(`</table>`)
	return b.String(), nil
}

func (c *fakeClient) Text(ctx context.Context, el page.Element) (string, error) {
	return el.(*fakeElement).label, nil
}

func (c *fakeClient) Close(ctx context.Context) error {
	c.site.mu.Lock()
	defer c.site.mu.Unlock()
	c.site.closed++
	return nil
}

// failingFactory fails the first n session launches before delegating.
type failingFactory struct {
	n    int
	next SessionFactory
}

func (f *failingFactory) NewSession(ctx context.Context) (page.Client, error) {
	if f.n > 0 {
		f.n--
		return nil, errors.New("chrome failed to start")
	}
	return f.next.NewSession(ctx)
}

// slowFailingFactory hangs for hang and then fails on its first n launches,
// the way a launch that times out waiting for the page does.
type slowFailingFactory struct {
	n        int
	hang     time.Duration
	next     SessionFactory
	starts   []time.Time
	failures []time.Time
}

func (f *slowFailingFactory) NewSession(ctx context.Context) (page.Client, error) {
	f.starts = append(f.starts, time.Now())
	if f.n > 0 {
		f.n--
		time.Sleep(f.hang)
		f.failures = append(f.failures, time.Now())
		return nil, errors.New("timed out waiting for the booking frame")
	}
	return f.next.NewSession(ctx)
}
