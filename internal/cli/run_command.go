package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"tunegrab/internal/fetcher"
	"tunegrab/internal/logging"
	"tunegrab/internal/resolver"
	"tunegrab/internal/store"
)

type pipelineResult struct {
	Resolve resolver.Result `json:"resolve"`
	Fetch   fetcher.Result  `json:"fetch"`
}

// runPipeline is the launcher: resolve then fetch against the same store.
// Per-item failures in the first phase never block the second; the exit
// code reflects whether either phase reported any.
func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var pf phaseFlags
	registerPhaseFlags(fs, &pf)
	retryTimeouts := fs.Bool("retry-timeouts", false, "re-attempt titles whose search previously timed out")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("run takes two arguments: the input list path and the destination directory")
	}
	inputPath := fs.Arg(0)
	destDir := fs.Arg(1)

	settings, err := pf.settings()
	if err != nil {
		return err
	}
	if err := store.Mkdir(destDir); err != nil {
		return err
	}
	log := logging.New(settings.LogPath, settings.LogLevel)
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	st := store.New(pf.storePath)
	progressEnabled := pf.progress && !pf.jsonOut

	if !pf.jsonOut {
		fmt.Printf("run: resolving %s\n", inputPath)
	}
	searcher, releaseSearch, err := buildSearchProvider(ctx, settings, log)
	if err != nil {
		return err
	}
	defer releaseSearch()
	resolveRes, resolveErr := resolver.Run(ctx, resolver.Options{
		InputPath:     inputPath,
		Store:         st,
		Search:        searcher,
		Settings:      settings,
		RetryTimeouts: *retryTimeouts,
		Progress:      progressEnabled,
		Log:           log,
	})
	// Free the search engine's session before the fetch phase opens its
	// own; the deferred call is the safety net on panic or early return.
	releaseSearch()
	if resolveErr != nil {
		return resolveErr
	}

	if !pf.jsonOut {
		fmt.Printf("run: fetching into %s\n", destDir)
	}
	converter, releaseConvert, err := buildConversionProvider(ctx, settings, log)
	if err != nil {
		return err
	}
	defer releaseConvert()
	fetchRes, fetchErr := fetcher.Run(ctx, fetcher.Options{
		DestDir:  destDir,
		Store:    st,
		Convert:  converter,
		Settings: settings,
		Progress: progressEnabled,
		Log:      log,
	})
	releaseConvert()
	if fetchErr != nil {
		return fetchErr
	}

	if pf.jsonOut {
		if err := printJSON(pipelineResult{Resolve: resolveRes, Fetch: fetchRes}); err != nil {
			return err
		}
	} else {
		fmt.Printf("resolve: %d new, %d duplicates, %d timeouts, %d skipped (of %d titles)\n",
			resolveRes.NewRecords, resolveRes.Duplicates, resolveRes.Timeouts, resolveRes.Skipped, resolveRes.Titles)
		fmt.Printf("fetch: %d done, %d failures (of %d candidates)\n",
			fetchRes.Done, fetchRes.Failures, fetchRes.Candidates)
	}

	if resolveRes.Timeouts > 0 || fetchRes.Failures > 0 {
		return failure{msg: fmt.Sprintf("run finished with failures: %d resolve timeouts, %d fetch failures",
			resolveRes.Timeouts, fetchRes.Failures)}
	}
	return nil
}
