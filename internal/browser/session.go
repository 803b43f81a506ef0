// Package browser owns the shared Chrome session used by the production
// providers. One session is acquired per phase and must be released on every
// exit path; the providers borrow its context for their page flows.
package browser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *zap.SugaredLogger
}

type Options struct {
	ShowBrowser bool
	Log         *zap.SugaredLogger
}

// NewSession launches a Chrome instance and opens one tab. The caller must
// Close the session regardless of per-item outcomes.
func NewSession(parent context.Context, opts Options) (*Session, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.ShowBrowser),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1200, 1200),
		chromedp.Flag("lang", "en-US,en;q=0.9"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Run with no actions forces the browser to start now, so a missing
	// binary fails the phase before any title is touched.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	log.Infow("browser session started", "headless", !opts.ShowBrowser)

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		log:         log,
	}, nil
}

// Context returns the tab context chromedp actions run against.
func (s *Session) Context() context.Context {
	return s.ctx
}

// AllowDownloads points the browser's native download handling at dir.
func (s *Session) AllowDownloads(dir string) error {
	err := chromedp.Run(s.ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return fmt.Errorf("configure download directory %s: %w", dir, err)
	}
	s.log.Infow("download directory configured", "dir", dir)
	return nil
}

// CloseExtraTabs closes every page target except the session's own tab.
// The conversion service pops ad tabs on its buttons; left alone they pile
// up over a long batch. Best effort: a tab that refuses to close is logged
// and skipped.
func (s *Session) CloseExtraTabs() {
	infos, err := chromedp.Targets(s.ctx)
	if err != nil {
		s.log.Warnw("list browser targets", "err", err)
		return
	}

	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	bctx := cdp.WithExecutor(s.ctx, c.Browser)
	for _, id := range extraTabIDs(infos, c.Target.TargetID) {
		if err := target.CloseTarget(id).Do(bctx); err != nil {
			s.log.Warnw("close popup tab", "target", id, "err", err)
			continue
		}
		s.log.Debugw("popup tab closed", "target", id)
	}
}

// extraTabIDs picks the page targets that are not the working tab.
func extraTabIDs(infos []*target.Info, own target.ID) []target.ID {
	var ids []target.ID
	for _, info := range infos {
		if info.Type != "page" || info.TargetID == own {
			continue
		}
		ids = append(ids, info.TargetID)
	}
	return ids
}

func (s *Session) Close() {
	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	s.log.Infow("browser session closed")
}

// LocateBinary reports the Chrome/Chromium binary the session would launch,
// for preflight checks.
func LocateBinary() (string, bool) {
	candidates := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
		"headless-shell",
		"chrome",
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}
