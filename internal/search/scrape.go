package search

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"
	"resty.dev/v3"

	"tunegrab/internal/provider"
)

const scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// The results page embeds its data as ytInitialData; the first organic video
// shows up as the first videoRenderer entry.
var reVideoRenderer = regexp.MustCompile(`"videoRenderer":\{"videoId":"([0-9A-Za-z_-]{11})"`)

// ScrapeProvider resolves titles with a plain HTTPS fetch of the results
// page, no browser needed. Lighter and faster than the browser engine, at
// the cost of breaking whenever the embedded payload shape changes.
type ScrapeProvider struct {
	client *resty.Client
	log    *zap.SugaredLogger
}

func NewScrapeProvider(log *zap.SugaredLogger) *ScrapeProvider {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := resty.New().
		SetHeader("User-Agent", scrapeUserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	return &ScrapeProvider{client: client, log: log}
}

func (p *ScrapeProvider) Close() error {
	return p.client.Close()
}

func (p *ScrapeProvider) Search(ctx context.Context, title string) (provider.SearchResult, error) {
	resultsURL := ResultsURL(title)
	p.log.Debugw("scrape results page", "title", title, "url", resultsURL)

	res, err := p.client.R().
		SetContext(ctx).
		Get(resultsURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return provider.SearchResult{}, provider.ErrTimeout
		}
		return provider.SearchResult{}, &provider.ExternalServiceError{Surface: "search", Detail: "fetch results page", Err: err}
	}
	if res.StatusCode() != 200 {
		return provider.SearchResult{}, &provider.ExternalServiceError{
			Surface: "search",
			Detail:  "results page returned status " + res.Status(),
		}
	}

	m := reVideoRenderer.FindStringSubmatch(res.String())
	if m == nil {
		p.log.Infow("scrape produced no usable result", "title", title)
		return provider.SearchResult{}, provider.ErrNotFound
	}

	id := m[1]
	p.log.Infow("scrape hit", "title", title, "video_id", id)
	return provider.SearchResult{
		Title:    title,
		URL:      WatchURL(id),
		SourceID: id,
	}, nil
}
