// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/page"
)

const shutdownGracePeriod = 15 * time.Second

// Manager launches one Chrome process per session. A signed-in profile directory
// can only be opened by one browser at a time, so sessions never share a process.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewManager creates a browser manager. No browser is started until NewSession.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser_manager"),
		sessions: make(map[string]*Session),
	}
}

// NewSession starts Chrome and returns a page client for its first tab. The
// browser lives until the session is closed or ctx is canceled.
func (m *Manager) NewSession(ctx context.Context) (page.Client, error) {
	opts, err := DefaultAllocatorOptions(m.cfg)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run launches the process and attaches to the initial tab.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m.wg.Add(1)
	var session *Session
	session = NewSession(browserCtx, cancel, m.cfg, m.logger, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	})

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("Browser session started.",
		zap.String("session_id", session.ID()),
		zap.Bool("headless", m.cfg.Headless),
	)
	return session, nil
}

// Active returns the number of sessions that have not been closed.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every open session and waits for them, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	if len(sessionsToClose) == 0 {
		return nil
	}
	m.logger.Info("Shutting down browser sessions.", zap.Int("count", len(sessionsToClose)))

	closeCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()

	for _, s := range sessionsToClose {
		go func(s *Session) {
			if err := s.Close(closeCtx); err != nil {
				m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All browser sessions closed.")
		return nil
	case <-closeCtx.Done():
		return fmt.Errorf("timed out waiting for browser sessions to close: %w", closeCtx.Err())
	}
}
