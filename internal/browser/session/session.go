// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/cdpdom"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// DefaultNavigationTimeout caps the wait for a page load.
const DefaultNavigationTimeout = 15 * time.Second

// Session owns one Chrome tab: the allocator behind it, the document the
// engine drives, and the tab's main-world realm.
type Session struct {
	id         string
	logger     *zap.Logger
	navTimeout time.Duration

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once

	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error

	doc   *cdpdom.Document
	realm *cdpdom.MainWorld
}

// AllocatorOptions translates the browser config into chromedp allocator
// options for a locally launched Chrome.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	for _, arg := range cfg.Args {
		// chromedp adds the leading dashes itself.
		key, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !hasValue {
			opts = append(opts, chromedp.Flag(key, true))
			continue
		}
		opts = append(opts, chromedp.Flag(key, value))
	}
	return opts
}

// New launches Chrome, or attaches to browser.remote_url when set, and opens
// a tab.
func New(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bcfg := cfg.Browser()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if bcfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, bcfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, AllocatorOptions(bcfg)...)
	}

	log := logger.Named("session")
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	startup := []chromedp.Action{}
	if w, h := bcfg.Viewport["width"], bcfg.Viewport["height"]; bcfg.RemoteURL != "" && w > 0 && h > 0 {
		startup = append(startup, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	if err := chromedp.Run(tabCtx, startup...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	s := newSession(cfg, logger, nil)
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	s.allocCancel = allocCancel
	s.runActionsFunc = s.RunActions

	log.Info("Browser tab ready.",
		zap.String("session_id", s.id),
		zap.Bool("remote", bcfg.RemoteURL != ""),
		zap.Bool("headless", bcfg.Headless),
	)
	return s, nil
}

// newSession wires the document and realm to run through runActions. New
// replaces the runner with RunActions once the tab exists.
func newSession(cfg config.Interface, logger *zap.Logger, runActions func(ctx context.Context, actions ...chromedp.Action) error) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	navTimeout := cfg.Browser().NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	s := &Session{
		id:             uuid.NewString(),
		logger:         logger.Named("session"),
		navTimeout:     navTimeout,
		runActionsFunc: runActions,
	}
	exec := &cdpExecutor{
		logger: s.logger,
		runActionsFunc: func(ctx context.Context, actions ...chromedp.Action) error {
			return s.runActionsFunc(ctx, actions...)
		},
	}
	s.doc = cdpdom.New(exec, cdpdom.WithWorldName(cfg.Engine().WorldName), cdpdom.WithLogger(logger))
	s.realm = cdpdom.NewMainWorld(exec)
	return s
}

func (s *Session) ID() string { return s.id }

// Document returns the tab's document for the engine.
func (s *Session) Document() *cdpdom.Document { return s.doc }

// Realm returns the tab's main world.
func (s *Session) Realm() *cdpdom.MainWorld { return s.realm }

// RunActions runs actions against the tab, bounded by ctx as well as by the
// tab's own lifetime.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event. A load that outlasts the
// navigation timeout is logged and treated as done; the page is usable
// before every subresource arrives.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	start := time.Now()
	err := s.runActionsFunc(navCtx, chromedp.Navigate(url))
	if err == nil {
		s.logger.Debug("Navigation complete.", zap.String("url", url), zap.Duration("took", time.Since(start)))
		return nil
	}
	if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("Page load timed out, continuing.", zap.String("url", url), zap.Duration("timeout", s.navTimeout))
		return nil
	}
	return fmt.Errorf("navigation to %s failed: %w", url, err)
}

// Close closes the tab and, for a launched browser, the browser itself.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.tabCtx != nil {
			if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug("Error closing tab.", zap.Error(err))
			}
		}
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Info("Session closed.", zap.String("session_id", s.id))
	})
}
