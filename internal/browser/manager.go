package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/vigilops/vigil/internal/executor"
)

// Config holds browser execution settings computed once at startup.
type Config struct {
	ExecutablePath string
	AllowAnyExec   bool
	AllowList      []string
}

// Manager owns the lifecycle of the process-wide shared browser instance used
// by browser checks. The instance is launched lazily on first need, reused
// across checks while connected, and relaunched transparently when found
// disconnected. No other component may hold a long-lived reference to the
// handle; checks work through short-lived per-check contexts.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser

	// dial is swapped out in tests; nil means a real CDP connect.
	dial func(endpoint string) (playwright.Browser, error)
}

// NewManager creates a browser resource manager
func NewManager(cfg Config) *Manager {
	if cfg.AllowList == nil {
		cfg.AllowList = DefaultAllowList()
	}
	return &Manager{cfg: cfg}
}

// Acquire returns the shared browser, launching or relaunching it as needed.
// Callers must not close the returned handle; they open per-check contexts on
// it and close those.
func (m *Manager) Acquire(ctx context.Context) (playwright.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if m.browser.IsConnected() {
			return m.browser, nil
		}
		// Liveness check before reuse: the process died or the connection
		// dropped. Tear down and relaunch transparently.
		slog.Warn("Shared browser disconnected, relaunching")
		_ = m.browser.Close()
		m.browser = nil
	}

	browser, err := m.launch()
	if err != nil {
		return nil, err
	}

	m.browser = browser
	return m.browser, nil
}

// Connect opens a connection to a caller-specified remote browser endpoint for
// a single check. Unlike the shared instance, the caller owns the returned
// browser and must close it when the check finishes.
func (m *Manager) Connect(ctx context.Context, endpoint string) (playwright.Browser, error) {
	// Only driver startup needs the lock. The dial itself runs unlocked so a
	// slow remote endpoint cannot block shared-browser acquisition.
	m.mu.Lock()
	err := m.ensureDriver()
	pw := m.pw
	dial := m.dial
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if dial == nil {
		dial = func(ep string) (playwright.Browser, error) {
			return pw.Chromium.ConnectOverCDP(ep)
		}
	}

	browser, err := dial(endpoint)
	if err != nil {
		return nil, executor.Transientf("failed to connect to remote browser: %w", err)
	}

	slog.Debug("Connected to remote browser", "endpoint", endpoint)
	return browser, nil
}

// Shutdown tears down the shared browser and the engine driver.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			slog.Error("Failed to close shared browser", "error", err)
		}
		m.browser = nil
	}

	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop browser driver: %w", err)
		}
		m.pw = nil
	}

	slog.Info("Shared browser released")
	return nil
}

// launch validates the executable path and starts a new shared instance.
// Callers hold m.mu.
func (m *Manager) launch() (playwright.Browser, error) {
	if err := ValidateExecutablePath(m.cfg.ExecutablePath, m.cfg.AllowAnyExec, m.cfg.AllowList); err != nil {
		return nil, executor.Configf("browser executable rejected: %w", err)
	}
	if m.cfg.ExecutablePath != "" {
		if _, err := os.Stat(m.cfg.ExecutablePath); err != nil {
			return nil, executor.Configf("browser executable not found: %w", err)
		}
	}

	if err := m.ensureDriver(); err != nil {
		return nil, err
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		// Hardware-accelerated capture keeps video recording from starving the
		// checks sharing this process.
		Args: []string{
			"--enable-gpu",
			"--use-gl=egl",
			"--autoplay-policy=no-user-gesture-required",
		},
	}
	if m.cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(m.cfg.ExecutablePath)
	}

	browser, err := m.pw.Chromium.Launch(opts)
	if err != nil {
		return nil, executor.Transientf("failed to launch browser: %w", err)
	}

	slog.Info("Shared browser launched", "executable", m.cfg.ExecutablePath)
	return browser, nil
}

// ensureDriver starts the engine driver once. Callers hold m.mu.
func (m *Manager) ensureDriver() error {
	if m.pw != nil {
		return nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return executor.Transientf("failed to start browser driver: %w", err)
	}
	m.pw = pw
	return nil
}
