package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tunegrab/internal/browser"
	"tunegrab/internal/config"
	"tunegrab/internal/logging"
	"tunegrab/internal/provider"
	"tunegrab/internal/resolver"
	"tunegrab/internal/search"
	"tunegrab/internal/store"
)

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	var pf phaseFlags
	registerPhaseFlags(fs, &pf)
	retryTimeouts := fs.Bool("retry-timeouts", false, "re-attempt titles whose search previously timed out")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("resolve takes exactly one argument: the input list path")
	}
	inputPath := fs.Arg(0)

	settings, err := pf.settings()
	if err != nil {
		return err
	}
	log := logging.New(settings.LogPath, settings.LogLevel)
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	searcher, release, err := buildSearchProvider(ctx, settings, log)
	if err != nil {
		return err
	}
	defer release()

	res, err := resolver.Run(ctx, resolver.Options{
		InputPath:     inputPath,
		Store:         store.New(pf.storePath),
		Search:        searcher,
		Settings:      settings,
		RetryTimeouts: *retryTimeouts,
		Progress:      pf.progress && !pf.jsonOut,
		Log:           log,
	})
	if err != nil {
		return err
	}

	if pf.jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		fmt.Printf("titles: %d\n", res.Titles)
		fmt.Printf("searched: %d\n", res.Searched)
		fmt.Printf("new_records: %d\n", res.NewRecords)
		fmt.Printf("duplicates: %d\n", res.Duplicates)
		fmt.Printf("timeouts: %d\n", res.Timeouts)
		fmt.Printf("skipped: %d\n", res.Skipped)
		fmt.Printf("elapsed: %s\n", res.ElapsedStr)
	}

	if res.Timeouts > 0 {
		return failure{msg: fmt.Sprintf("%d of %d searched titles did not resolve", res.Timeouts, res.Searched)}
	}
	return nil
}

// buildSearchProvider wires the configured engine. The release func tears
// down whatever session or client the engine holds; it is safe to call more
// than once, so callers can both defer it and release eagerly.
func buildSearchProvider(ctx context.Context, settings config.Settings, log *zap.SugaredLogger) (provider.SearchProvider, func(), error) {
	switch settings.Engine {
	case config.EngineScrape:
		sp := search.NewScrapeProvider(log)
		return sp, sync.OnceFunc(func() { _ = sp.Close() }), nil
	default:
		sess, err := browser.NewSession(ctx, browser.Options{
			ShowBrowser: settings.ShowBrowser,
			Log:         log,
		})
		if err != nil {
			return nil, nil, err
		}
		return search.NewBrowserProvider(sess, log), sync.OnceFunc(sess.Close), nil
	}
}
