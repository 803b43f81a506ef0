// Package convert drives the third-party conversion/download web service.
// The service is plain UI, not an API: we fill its URL box, click Convert,
// wait for a Download control, and let the browser's native download drop
// the file into the destination directory.
package convert

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"tunegrab/internal/browser"
	"tunegrab/internal/provider"
)

// The conversion page exposes a single text input with id "v" and a Convert
// button; the Download control appears once the service finishes converting.
const (
	urlInputSelector = `#v`
	convertButtonXP  = `//button[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'convert')]`
	downloadXP       = `//button[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'download')]` +
		` | //a[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'download')]`
)

type BrowserProvider struct {
	sess          *browser.Session
	serviceURL    string
	settleTimeout time.Duration
	log           *zap.SugaredLogger
}

type Options struct {
	Session       *browser.Session
	ServiceURL    string
	SettleTimeout time.Duration
	Log           *zap.SugaredLogger
}

func NewBrowserProvider(opts Options) *BrowserProvider {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	settle := opts.SettleTimeout
	if settle <= 0 {
		settle = 30 * time.Second
	}
	return &BrowserProvider{
		sess:          opts.Session,
		serviceURL:    opts.ServiceURL,
		settleTimeout: settle,
		log:           log,
	}
}

// Convert submits url to the conversion service and waits for the download
// to land under destDir. The bounded wait comes from ctx; exceeding it is a
// per-item timeout, never a crash.
func (p *BrowserProvider) Convert(ctx context.Context, url, destDir string) (provider.FetchResult, error) {
	deadline := time.Now().Add(60 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	tctx, cancel := context.WithDeadline(p.sess.Context(), deadline)
	defer cancel()

	if err := p.sess.AllowDownloads(destDir); err != nil {
		return provider.FetchResult{}, &provider.ExternalServiceError{Surface: "conversion", Detail: "configure downloads", Err: err}
	}

	before, err := snapshotDir(destDir)
	if err != nil {
		return provider.FetchResult{}, err
	}

	p.log.Infow("conversion start", "url", url)
	err = chromedp.Run(tctx,
		chromedp.Navigate(p.serviceURL),
		chromedp.WaitVisible(urlInputSelector, chromedp.ByID),
		chromedp.Clear(urlInputSelector, chromedp.ByID),
		chromedp.SendKeys(urlInputSelector, url, chromedp.ByID),
		chromedp.Click(convertButtonXP, chromedp.BySearch),
	)
	if err != nil {
		return provider.FetchResult{}, classifyConvertErr("submit conversion", err)
	}
	// Both buttons pop ad tabs; close them after every click so they do
	// not accumulate over the batch.
	p.sess.CloseExtraTabs()

	// The Download control appears only when the service finishes; this is
	// the bounded wait the whole step hangs on.
	if err := chromedp.Run(tctx,
		chromedp.WaitVisible(downloadXP, chromedp.BySearch),
		chromedp.Click(downloadXP, chromedp.BySearch),
	); err != nil {
		return provider.FetchResult{}, classifyConvertErr("wait for download control", err)
	}
	p.sess.CloseExtraTabs()
	p.log.Infow("download triggered", "url", url, "dest", destDir)

	filename, watchErr := waitForDownload(tctx, destDir, before, p.settleTimeout)
	if watchErr != nil {
		// The click went through; treat a missing file as success the way
		// the service usually behaves (download continues in background).
		p.log.Warnw("no download observed before settle timeout", "url", url, "dest", destDir)
	}
	return provider.FetchResult{Path: destDir, Filename: filename}, nil
}

func classifyConvertErr(detail string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.ErrTimeout
	}
	return &provider.ExternalServiceError{Surface: "conversion", Detail: detail, Err: err}
}
