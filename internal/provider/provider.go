// Package provider defines the capability interfaces the Resolver and the
// Fetcher depend on, plus the shared failure taxonomy. Production
// implementations drive a real browser or scrape HTTP responses; tests use
// deterministic stubs.
package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the search surface answered but yielded no usable
	// result for the query.
	ErrNotFound = errors.New("no usable search result")

	// ErrTimeout means a bounded wait on the external surface elapsed.
	ErrTimeout = errors.New("bounded wait exceeded")
)

// ExternalServiceError reports an unexpected page state from the search or
// conversion surface. Both are automated UIs, not APIs, so their markup can
// change underneath us; callers treat this as a per-item failure, never a
// batch abort.
type ExternalServiceError struct {
	Surface string
	Detail  string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Surface, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Surface, e.Detail)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// SearchResult is the first usable hit for a title query.
type SearchResult struct {
	Title    string
	URL      string
	SourceID string
}

// FetchResult describes a completed conversion/download.
type FetchResult struct {
	// Path is the directory the file landed in.
	Path string
	// Filename is the downloaded file name when it could be observed.
	Filename string
}

// SearchProvider maps a title string to a canonical source URL and id.
type SearchProvider interface {
	Search(ctx context.Context, title string) (SearchResult, error)
}

// ConversionProvider turns a resolved source URL into a file on disk under
// destDir.
type ConversionProvider interface {
	Convert(ctx context.Context, url, destDir string) (FetchResult, error)
}
