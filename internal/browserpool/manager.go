// Package browserpool owns a single headless browser process and vends
// per-request isolated browser contexts (C1 of the reader service). It
// enforces the pool's admission bound and the destroy-on-release
// discipline: contexts are single-use and never handed back to another
// request.
package browserpool

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/reader/internal/errs"
)

// StealthLevel controls the browser automation mode.
type StealthLevel int

const (
	LevelHTTP     StealthLevel = 0 // rod headless, plain page without stealth
	LevelHeadless StealthLevel = 1 // rod headless + stealth
	LevelHeadful  StealthLevel = 2 // rod headful + Xvfb
)

const (
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
	viewportW     = 1920
	viewportH     = 1080
	navTimeout    = 30 * time.Second
	memoryLimit   = 1 << 30 // 1GiB JS heap, triggers recycle
	recycleAfter  = 4 * time.Hour
	monitorPeriod = 30 * time.Second
)

// Config configures the Manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance. Empty
	// launches a local Chrome via go-rod's launcher.
	RemoteURL string

	// ResourceBlocking lists resource types to block on every acquired page
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Stealth     StealthLevel
	XvfbDisplay string // default ":99", used only when Stealth == LevelHeadful

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// poolState is the pool's coarse health, distinct from per-context state.
type poolState int

const (
	stateReady poolState = iota
	stateCrippled
)

// Manager is C1: it owns the one underlying browser process and admits
// callers into a bounded set of concurrent BrowserContexts.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
	state   poolState

	sem chan struct{} // admission semaphore, buffered to max
	max int
}

// NewManager builds a Manager whose admission bound is
// max = 1 + floor(freeMemGiB), min 1, per the pool sizing rule evaluated
// once at startup.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	max := 1 + freeMemGiB()
	if max < 1 {
		max = 1
	}
	return &Manager{
		cfg: cfg,
		max: max,
		sem: make(chan struct{}, max),
	}
}

// Start launches (or connects to) Chrome and begins the memory/lifetime
// monitor. Launch failure is fatal to the pool and is returned to the
// caller, per spec: "launch failure is fatal to the pool".
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browserpool: manager is closed")
	}

	b, err := m.launch(ctx)
	if err != nil {
		return err
	}
	m.browser = b
	m.startAt = time.Now()
	m.state = stateReady

	go m.monitorLoop(ctx)
	return nil
}

// Max returns the pool's admission bound.
func (m *Manager) Max() int { return m.max }

// BrowserContext is a single-use, isolated page handed to one request by
// Acquire. It must be released exactly once via Release; it is never
// reused across requests.
type BrowserContext struct {
	Page    *rod.Page
	mgr     *Manager
	invalid bool
}

// Acquire blocks until an admission slot is free, then creates a fresh
// isolated browser context and a configured page inside it: fixed
// user-agent and 1920x1080 viewport. The readability script and the
// reportSnapshot binding are not installed here; InstallReadability adds
// them. If the pool is crippled, Acquire first relaunches the browser.
func (m *Manager) Acquire(ctx context.Context) (*BrowserContext, error) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	bc, err := m.acquireOne(ctx)
	if err != nil {
		<-m.sem
		return nil, err
	}
	return bc, nil
}

func (m *Manager) acquireOne(ctx context.Context) (*BrowserContext, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browserpool: manager is closed")
	}
	if m.state == stateCrippled {
		m.cfg.Logger.Info("browserpool: relaunching after disconnect")
		if err := m.relaunchLocked(ctx); err != nil {
			m.mu.Unlock()
			// The pool was already crippled (first failure); a relaunch
			// attempt also failing is the second consecutive failure,
			// which spec.md §7 says surfaces UpstreamBrowserFailure.
			return nil, errs.Wrap(errs.UpstreamBrowserFailure, "relaunch after disconnect", err)
		}
	}
	b := m.browser
	m.mu.Unlock()

	incognito, err := b.Incognito()
	if err != nil {
		m.markCrippled()
		return nil, fmt.Errorf("browserpool: new incognito context: %w", err)
	}

	var page *rod.Page
	if m.cfg.Stealth >= LevelHeadless {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("browserpool: create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: viewportW, Height: viewportH, DeviceScaleFactor: 1,
	}); err != nil {
		m.cfg.Logger.Warn("browserpool: set viewport failed", "error", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		m.cfg.Logger.Warn("browserpool: set user agent failed", "error", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browserpool: resource blocking failed", "error", err)
		}
	}

	return &BrowserContext{Page: page, mgr: m}, nil
}

// Release destroys bc. Contexts are never validated back into the pool:
// the standing discipline is destroy-on-release.
func (bc *BrowserContext) Release(ctx context.Context) {
	if bc.Page != nil {
		_ = bc.Page.Close()
	}
	<-bc.mgr.sem
}

// markCrippled flags the pool unhealthy after an observed disconnect; the
// next Acquire relaunches the browser before proceeding.
func (m *Manager) markCrippled() {
	m.mu.Lock()
	m.state = stateCrippled
	m.mu.Unlock()
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Stealth == LevelHeadful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browserpool: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browserpool: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()
		if m.cfg.Stealth == LevelHeadful {
			l = l.Headless(false).Env("DISPLAY", m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browserpool: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browserpool: launched local chrome", "url", wsURL, "stealth", m.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browserpool: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browserpool: ignore cert errors failed", "error", err)
	}

	return b, nil
}

func (m *Manager) relaunchLocked(ctx context.Context) error {
	_ = m.cleanup()
	b, err := m.launch(ctx)
	if err != nil {
		return err
	}
	m.browser = b
	m.startAt = time.Now()
	m.state = stateReady
	return nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(monitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			startAt := m.startAt
			b := m.browser
			m.mu.Unlock()
			if b == nil {
				continue
			}

			if time.Since(startAt) > recycleAfter {
				log.Info("browserpool: recycle interval reached")
				m.mu.Lock()
				_ = m.relaunchLocked(ctx)
				m.mu.Unlock()
				continue
			}

			used, err := getJSHeapUsage(b)
			if err != nil {
				log.Debug("browserpool: heap check failed, marking crippled", "error", err)
				m.markCrippled()
				continue
			}
			if used > memoryLimit {
				log.Info("browserpool: memory limit exceeded", "used", used, "limit", memoryLimit)
				m.mu.Lock()
				_ = m.relaunchLocked(ctx)
				m.mu.Unlock()
			}
		}
	}
}

// getJSHeapUsage queries Chrome's JS heap via the first open page as a
// proxy for overall process memory pressure.
func getJSHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("browserpool: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}

// freeMemGiB returns the whole-GiB count of currently free system memory,
// used once at startup to size the pool: max = 1 + floor(freeMemGiB).
func freeMemGiB() int {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 1
	}
	free := uint64(info.Freeram) * uint64(info.Unit)
	return int(free / (1 << 30))
}
