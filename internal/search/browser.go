package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"tunegrab/internal/browser"
	"tunegrab/internal/provider"
)

const defaultSearchTimeout = 15 * time.Second

var consentHosts = []string{"consent.youtube.com", "consent.google.com"}

// BrowserProvider resolves titles by loading the results page in the shared
// browser session and taking the first organic video link, the way a person
// would. Promoted items and shelves never match the video renderer selector.
type BrowserProvider struct {
	sess *browser.Session
	log  *zap.SugaredLogger
}

func NewBrowserProvider(sess *browser.Session, log *zap.SugaredLogger) *BrowserProvider {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &BrowserProvider{sess: sess, log: log}
}

func (p *BrowserProvider) Search(ctx context.Context, title string) (provider.SearchResult, error) {
	deadline := time.Now().Add(defaultSearchTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	tctx, cancel := context.WithDeadline(p.sess.Context(), deadline)
	defer cancel()

	resultsURL := ResultsURL(title)
	p.log.Debugw("search navigate", "title", title, "url", resultsURL)
	if err := chromedp.Run(tctx, chromedp.Navigate(resultsURL)); err != nil {
		return provider.SearchResult{}, classifySearchErr("load results page", err)
	}

	p.maybeAcceptConsent(tctx)

	var nodes []*cdp.Node
	err := chromedp.Run(tctx,
		chromedp.WaitReady("ytd-item-section-renderer", chromedp.ByQuery),
		chromedp.Nodes("ytd-video-renderer a#video-title", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return provider.SearchResult{}, classifySearchErr("wait for results", err)
	}

	for _, node := range nodes {
		href := strings.TrimSpace(node.AttributeValue("href"))
		if href == "" || !strings.Contains(href, "/watch") {
			continue
		}
		if strings.HasPrefix(href, "/") {
			href = "https://www.youtube.com" + href
		}
		id, ok := ExtractVideoID(href)
		if !ok {
			continue
		}
		p.log.Infow("search hit", "title", title, "video_id", id)
		return provider.SearchResult{
			Title:    title,
			URL:      WatchURL(id),
			SourceID: id,
		}, nil
	}

	p.log.Infow("search produced no usable result", "title", title)
	return provider.SearchResult{}, provider.ErrNotFound
}

// maybeAcceptConsent clicks through the regional consent interstitial when
// YouTube redirects there instead of the results page. Best effort: a miss
// just means the results wait below times out.
func (p *BrowserProvider) maybeAcceptConsent(ctx context.Context) {
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return
	}
	onConsent := false
	for _, host := range consentHosts {
		if strings.Contains(loc, host) {
			onConsent = true
			break
		}
	}
	if !onConsent {
		return
	}

	p.log.Debugw("consent page detected", "url", loc)
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = chromedp.Run(cctx,
		chromedp.Click(`//button[contains(., 'Accept all') or contains(., 'I agree')]`, chromedp.BySearch),
	)
}

func classifySearchErr(detail string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.ErrTimeout
	}
	return &provider.ExternalServiceError{Surface: "search", Detail: detail, Err: err}
}
