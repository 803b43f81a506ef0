// Package resolver implements the first pipeline phase: map each title line
// of the input list to a source URL and id, appending deduplicated records
// to the store.
package resolver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tunegrab/internal/config"
	"tunegrab/internal/model"
	"tunegrab/internal/progress"
	"tunegrab/internal/provider"
	"tunegrab/internal/store"
)

type Options struct {
	InputPath string
	Store     *store.Store
	Search    provider.SearchProvider
	Settings  config.Settings
	// RetryTimeouts re-attempts titles whose record is stuck in timeout.
	// Off by default: a timeout row blocks re-search until removed by hand
	// or explicitly retried.
	RetryTimeouts bool
	Progress      bool
	Log           *zap.SugaredLogger
}

type Result struct {
	Titles     int           `json:"titles"`
	Searched   int           `json:"searched"`
	NewRecords int           `json:"new_records"`
	Duplicates int           `json:"duplicates"`
	Timeouts   int           `json:"timeouts"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"-"`
	ElapsedStr string        `json:"elapsed"`
}

// Run resolves every unresolved title in the input list. Per-title failures
// are recorded as timeout rows and never abort the batch; only input/store
// IO problems are fatal.
func Run(ctx context.Context, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	titles, err := readTitles(opts.InputPath)
	if err != nil {
		return Result{}, err
	}

	lock, err := opts.Store.AcquireLock()
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	records, err := opts.Store.Load()
	if err != nil {
		return Result{}, err
	}

	res := Result{Titles: len(titles)}
	if len(titles) == 0 {
		res.ElapsedStr = "0s"
		return res, nil
	}

	tracker := progress.NewTracker(opts.Progress, len(titles))
	tracker.Start()
	started := time.Now()

	for i, title := range titles {
		tracker.SetLabel(title)

		existing := store.FindByTitle(records, title)
		if existing != nil {
			retry := opts.RetryTimeouts && existing.Status == model.StatusTimeout && existing.SourceID == ""
			if !retry {
				res.Skipped++
				log.Debugw("resolve skip", "title", title, "status", existing.Status)
				tracker.ItemDone(false, true, false)
				continue
			}
		}

		res.Searched++
		searchCtx, cancel := context.WithTimeout(ctx, opts.Settings.SearchTimeout())
		hit, searchErr := opts.Search.Search(searchCtx, title)
		cancel()

		if searchErr != nil {
			log.Warnw("resolve failed", "title", title, "err", searchErr)
			if existing != nil {
				existing.LastError = searchErr.Error()
			} else {
				rec := model.TuneRecord{Title: title}
				if err := model.TransitionStatus(&rec, model.StatusTimeout, searchErr.Error()); err != nil {
					tracker.Stop("")
					return res, err
				}
				records = append(records, rec)
			}
			if err := opts.Store.Save(records); err != nil {
				tracker.Stop("")
				return res, err
			}
			res.Timeouts++
			tracker.ItemDone(false, false, true)
			pause(ctx, opts.Settings.Pause(), i, len(titles))
			continue
		}

		if dup := store.FindBySourceID(records, hit.SourceID); dup != nil {
			log.Infow("duplicate detected", "title", title, "existing_title", dup.Title, "source_id", hit.SourceID)
			if existing != nil && existing.SourceID == "" {
				// Retried timeout row that resolved to an id we already
				// track: the row stays as-is, the dup wins.
				existing.LastError = fmt.Sprintf("resolves to existing source_id %s (%q)", hit.SourceID, dup.Title)
				if err := opts.Store.Save(records); err != nil {
					tracker.Stop("")
					return res, err
				}
			}
			res.Duplicates++
			tracker.ItemDone(false, true, false)
			pause(ctx, opts.Settings.Pause(), i, len(titles))
			continue
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if existing != nil && existing.SourceID == "" {
			existing.SourceID = hit.SourceID
			existing.URL = hit.URL
			existing.ResolvedAt = now
			if err := model.TransitionStatus(existing, model.StatusPending, ""); err != nil {
				tracker.Stop("")
				return res, err
			}
		} else {
			rec := model.TuneRecord{
				Title:      title,
				SourceID:   hit.SourceID,
				URL:        hit.URL,
				ResolvedAt: now,
			}
			if err := model.TransitionStatus(&rec, model.StatusPending, ""); err != nil {
				tracker.Stop("")
				return res, err
			}
			records = append(records, rec)
		}
		if err := opts.Store.Save(records); err != nil {
			tracker.Stop("")
			return res, err
		}
		log.Infow("resolved", "title", title, "source_id", hit.SourceID, "url", hit.URL)
		res.NewRecords++
		tracker.ItemDone(true, false, false)

		pause(ctx, opts.Settings.Pause(), i, len(titles))
	}

	res.Elapsed = time.Since(started)
	res.ElapsedStr = res.Elapsed.Round(time.Second).String()
	tracker.Stop(fmt.Sprintf("resolve: %d/%d searched, %d new, %d duplicates, %d timeouts, %d skipped",
		res.Searched, res.Titles, res.NewRecords, res.Duplicates, res.Timeouts, res.Skipped))
	return res, nil
}

// readTitles loads the input list: one title per line, trimmed, blanks
// dropped. A missing file is fatal to the phase.
func readTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input list %s: %w", path, err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input list %s: %w", path, err)
	}
	return titles, nil
}

// pause throttles between consecutive searches, skipping the tail item.
func pause(ctx context.Context, d time.Duration, i, total int) {
	if d <= 0 || i == total-1 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
