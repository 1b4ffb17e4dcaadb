// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/page"
)

const (
	jsText      = `function() { return (this.innerText || this.textContent || "").trim(); }`
	jsIsChecked = `function() { return !!this.checked; }`
	jsClick     = `function() { this.scrollIntoView({block: "center"}); this.click(); }`

	// jsSelect picks the first option whose visible text (byText) or value matches
	// and fires the change event the page listens for.
	jsSelect = `function(want, byText) {
		want = want.trim();
		for (const o of this.options) {
			const got = byText ? o.text.trim() : o.value;
			if (got === want) {
				this.value = o.value;
				o.selected = true;
				this.dispatchEvent(new Event("change", {bubbles: true}));
				return this.value === o.value;
			}
		}
		return false;
	}`
)

// Element is a DOM node handle from a Session.
type Element struct {
	node *cdp.Node
}

func (e *Element) NodeID() int64 { return int64(e.node.NodeID) }

// Session is one Chrome instance driven through the DevTools protocol. It
// implements page.Client. Queries run against the top document, or against the
// iframe chosen with SwitchToFrame.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	// frame is the selector of the active iframe; empty means the top document.
	// It is resolved on every query because a form post replaces the frame's document.
	frame string

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ page.Client = (*Session)(nil)

// NewSession wraps an allocated chromedp context. cancel releases the browser.
func NewSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// runActions executes chromedp actions bounded by both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// scope returns the query option that roots a lookup in the active frame.
func (s *Session) scope(ctx context.Context) ([]chromedp.QueryOption, error) {
	if s.frame == "" {
		return nil, nil
	}
	var frames []*cdp.Node
	if err := chromedp.Nodes(s.frame, &frames, chromedp.ByQuery).Do(ctx); err != nil {
		return nil, fmt.Errorf("frame %q unavailable: %w", s.frame, err)
	}
	return []chromedp.QueryOption{chromedp.FromNode(frames[0])}, nil
}

func (s *Session) query(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		scope, err := s.scope(c)
		if err != nil {
			return err
		}
		return chromedp.Nodes(selector, &nodes, append(opts, scope...)...).Do(c)
	}))
	return nodes, err
}

// first waits up to timeout for selector and returns the first match.
func (s *Session) first(ctx context.Context, selector string, timeout time.Duration, opts ...chromedp.QueryOption) (*cdp.Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nodes, err := s.query(waitCtx, selector, append([]chromedp.QueryOption{chromedp.ByQuery}, opts...)...)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %q after %s", page.ErrTimeout, selector, timeout)
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %q", page.ErrNotFound, selector)
	}
	return nodes[0], nil
}

// callOn runs fn with this bound to node.
func (s *Session) callOn(ctx context.Context, node *cdp.Node, fn string, res interface{}, args ...interface{}) error {
	return s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(c)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(c) }()

		return chromedp.CallFunctionOn(fn, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(c)
	}))
}

func unwrap(el page.Element) (*cdp.Node, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.node == nil {
		return nil, fmt.Errorf("element %T does not belong to a browser session", el)
	}
	return e.node, nil
}

func wrap(nodes []*cdp.Node) []page.Element {
	out := make([]page.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{node: n})
	}
	return out
}

// Navigate loads url in the top document.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.frame = ""
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: navigation to %s", page.ErrTimeout, url)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (page.Element, error) {
	node, err := s.first(ctx, selector, timeout, chromedp.NodeVisible)
	if err != nil {
		return nil, err
	}
	return &Element{node: node}, nil
}

// SwitchToFrame waits for the iframe in the top document and makes it the query root.
func (s *Session) SwitchToFrame(ctx context.Context, selector string) error {
	s.frame = ""
	if _, err := s.first(ctx, selector, s.cfg.WaitTimeout, chromedp.NodeVisible); err != nil {
		return fmt.Errorf("failed to switch to frame %q: %w", selector, err)
	}
	s.frame = selector
	return nil
}

func (s *Session) SwitchToTop() {
	s.frame = ""
}

func (s *Session) selectOption(ctx context.Context, selector, want string, byText bool) error {
	node, err := s.first(ctx, selector, s.cfg.WaitTimeout)
	if err != nil {
		return err
	}
	var ok bool
	if err := s.callOn(ctx, node, jsSelect, &ok, want, byText); err != nil {
		return fmt.Errorf("failed to select %q in %q: %w", want, selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: option %q in %q", page.ErrNotFound, want, selector)
	}
	return nil
}

func (s *Session) SelectByVisibleText(ctx context.Context, selector, text string) error {
	return s.selectOption(ctx, selector, text, true)
}

func (s *Session) SelectByValue(ctx context.Context, selector, value string) error {
	return s.selectOption(ctx, selector, value, false)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	node, err := s.first(ctx, selector, s.cfg.WaitTimeout, chromedp.NodeVisible)
	if err != nil {
		return err
	}
	return s.callOn(ctx, node, jsClick, nil)
}

func (s *Session) ClickElement(ctx context.Context, el page.Element) error {
	node, err := unwrap(el)
	if err != nil {
		return err
	}
	return s.callOn(ctx, node, jsClick, nil)
}

func (s *Session) IsChecked(ctx context.Context, selector string) (bool, error) {
	node, err := s.first(ctx, selector, s.cfg.WaitTimeout)
	if err != nil {
		return false, err
	}
	var checked bool
	if err := s.callOn(ctx, node, jsIsChecked, &checked); err != nil {
		return false, fmt.Errorf("failed to read %q: %w", selector, err)
	}
	return checked, nil
}

// FindAll returns every current match without waiting.
func (s *Session) FindAll(ctx context.Context, selector string) ([]page.Element, error) {
	nodes, err := s.query(ctx, selector, chromedp.ByQueryAll, chromedp.AtLeast(0))
	if err != nil {
		return nil, err
	}
	return wrap(nodes), nil
}

// FindAllIn returns every current match below parent without waiting.
func (s *Session) FindAllIn(ctx context.Context, parent page.Element, selector string) ([]page.Element, error) {
	root, err := unwrap(parent)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err = s.runActions(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(root)))
	if err != nil {
		return nil, err
	}
	return wrap(nodes), nil
}

func (s *Session) OuterHTML(ctx context.Context, el page.Element) (string, error) {
	node, err := unwrap(el)
	if err != nil {
		return "", err
	}
	var html string
	err = s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(c)
		return err
	}))
	return html, err
}

func (s *Session) Text(ctx context.Context, el page.Element) (string, error) {
	node, err := unwrap(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := s.callOn(ctx, node, jsText, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	var closeErr error
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(s.ctx)
	}()
	select {
	case closeErr = <-done:
	case <-ctx.Done():
		closeErr = ctx.Err()
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	if closeErr != nil && !errors.Is(closeErr, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", closeErr)
	}
	return nil
}
