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
	"tunegrab/internal/convert"
	"tunegrab/internal/fetcher"
	"tunegrab/internal/logging"
	"tunegrab/internal/provider"
	"tunegrab/internal/store"
)

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var pf phaseFlags
	registerPhaseFlags(fs, &pf)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("fetch takes exactly one argument: the destination directory")
	}
	destDir := fs.Arg(0)

	settings, err := pf.settings()
	if err != nil {
		return err
	}
	log := logging.New(settings.LogPath, settings.LogLevel)
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()
	converter, release, err := buildConversionProvider(ctx, settings, log)
	if err != nil {
		return err
	}
	defer release()

	res, err := fetcher.Run(ctx, fetcher.Options{
		DestDir:  destDir,
		Store:    store.New(pf.storePath),
		Convert:  converter,
		Settings: settings,
		Progress: pf.progress && !pf.jsonOut,
		Log:      log,
	})
	if err != nil {
		return err
	}

	if pf.jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		fmt.Printf("candidates: %d\n", res.Candidates)
		fmt.Printf("done: %d\n", res.Done)
		fmt.Printf("failures: %d\n", res.Failures)
		fmt.Printf("elapsed: %s\n", res.ElapsedStr)
	}

	if res.Failures > 0 {
		return failure{msg: fmt.Sprintf("%d of %d fetches failed", res.Failures, res.Candidates)}
	}
	return nil
}

func buildConversionProvider(ctx context.Context, settings config.Settings, log *zap.SugaredLogger) (provider.ConversionProvider, func(), error) {
	sess, err := browser.NewSession(ctx, browser.Options{
		ShowBrowser: settings.ShowBrowser,
		Log:         log,
	})
	if err != nil {
		return nil, nil, err
	}
	cp := convert.NewBrowserProvider(convert.Options{
		Session:       sess,
		ServiceURL:    settings.ConversionURL,
		SettleTimeout: settings.SettleTimeout(),
		Log:           log,
	})
	return cp, sync.OnceFunc(sess.Close), nil
}
