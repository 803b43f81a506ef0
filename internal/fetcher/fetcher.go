// Package fetcher implements the second pipeline phase: turn every resolved
// record that is not yet done into a downloaded audio file, updating the
// store after each attempt.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tunegrab/internal/config"
	"tunegrab/internal/model"
	"tunegrab/internal/progress"
	"tunegrab/internal/provider"
	"tunegrab/internal/store"
)

type Options struct {
	DestDir  string
	Store    *store.Store
	Convert  provider.ConversionProvider
	Settings config.Settings
	Progress bool
	Log      *zap.SugaredLogger
}

type Result struct {
	Candidates int           `json:"candidates"`
	Done       int           `json:"done"`
	Failures   int           `json:"failures"`
	Elapsed    time.Duration `json:"-"`
	ElapsedStr string        `json:"elapsed"`
}

// Run attempts every record that is not done yet. Anything but done is
// eligible again on the next run: unlike the Resolver's title-presence gate,
// fetch timeouts are retried simply by re-running the phase.
func Run(ctx context.Context, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := store.Mkdir(opts.DestDir); err != nil {
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

	var eligible []int
	for i := range records {
		// Rows the Resolver timed out on carry no URL and stay with the
		// Resolver; everything resolved and not done is fetched.
		if model.Retryable(records[i].Status) && records[i].URL != "" {
			eligible = append(eligible, i)
		}
	}

	res := Result{Candidates: len(eligible)}
	if len(eligible) == 0 {
		res.ElapsedStr = "0s"
		return res, nil
	}

	tracker := progress.NewTracker(opts.Progress, len(eligible))
	tracker.Start()
	started := time.Now()

	for n, i := range eligible {
		rec := &records[i]
		tracker.SetLabel(rec.Title)
		log.Infow("fetch start", "title", rec.Title, "source_id", rec.SourceID)

		convertCtx, cancel := context.WithTimeout(ctx, opts.Settings.ConvertTimeout())
		fetched, convErr := opts.Convert.Convert(convertCtx, rec.URL, opts.DestDir)
		cancel()

		// A transition refusal (hand-edited status the table does not
		// know) is a per-item failure like any other: record it and keep
		// going, never abort the batch.
		if convErr != nil {
			log.Warnw("fetch failed", "title", rec.Title, "source_id", rec.SourceID, "err", convErr)
			if err := model.TransitionStatus(rec, model.StatusTimeout, convErr.Error()); err != nil {
				rec.LastError = err.Error()
			}
			res.Failures++
			tracker.ItemDone(false, false, true)
		} else if err := model.TransitionStatus(rec, model.StatusDone, ""); err != nil {
			log.Warnw("fetch bookkeeping failed", "title", rec.Title, "source_id", rec.SourceID, "err", err)
			rec.LastError = err.Error()
			res.Failures++
			tracker.ItemDone(false, false, true)
		} else {
			rec.Destination = fetched.Path
			rec.FetchedAt = time.Now().UTC().Format(time.RFC3339)
			log.Infow("fetch done", "title", rec.Title, "source_id", rec.SourceID, "file", fetched.Filename)
			res.Done++
			tracker.ItemDone(true, false, false)
		}

		if err := opts.Store.Save(records); err != nil {
			tracker.Stop("")
			return res, err
		}

		pause(ctx, opts.Settings.Pause(), n, len(eligible))
	}

	res.Elapsed = time.Since(started)
	res.ElapsedStr = res.Elapsed.Round(time.Second).String()
	tracker.Stop(fmt.Sprintf("fetch: %d/%d done, %d failures", res.Done, res.Candidates, res.Failures))
	return res, nil
}

func pause(ctx context.Context, d time.Duration, i, total int) {
	if d <= 0 || i == total-1 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
