package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tunegrab/internal/config"
	"tunegrab/internal/model"
	"tunegrab/internal/store"
)

func TestRun_UnknownCommand(t *testing.T) {
	err := Run([]string{"bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	if err := Run(nil); err != nil {
		t.Fatalf("bare invocation must not fail: %v", err)
	}
}

func TestStatusCommand_ReadsStore(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "tunes.json")
	records := []model.TuneRecord{
		{Title: "Song A", SourceID: "aaaaaaaaaaa", Status: model.StatusDone, Group: "jazz"},
		{Title: "Song B", SourceID: "bbbbbbbbbbb", Status: model.StatusPending},
		{Title: "Song C", Status: model.StatusTimeout},
	}
	if err := store.New(storePath).Save(records); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := Run([]string{"status", "--store", storePath}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if err := Run([]string{"status", "--store", storePath, "--json"}); err != nil {
		t.Fatalf("status --json failed: %v", err)
	}
}

func TestResolveCommand_RequiresInputArg(t *testing.T) {
	err := Run([]string{"resolve"})
	if err == nil || !strings.Contains(err.Error(), "exactly one argument") {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestFetchCommand_RequiresDestArg(t *testing.T) {
	err := Run([]string{"fetch"})
	if err == nil || !strings.Contains(err.Error(), "exactly one argument") {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestRunCommand_RequiresBothArgs(t *testing.T) {
	err := Run([]string{"run", "only-one-arg"})
	if err == nil || !strings.Contains(err.Error(), "two arguments") {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestPhaseFlags_SettingsPrecedence(t *testing.T) {
	pf := phaseFlags{
		configPath:    filepath.Join(t.TempDir(), "missing.json"),
		engine:        "scrape",
		searchTimeout: 99,
		pauseSec:      -1,
	}
	settings, err := pf.settings()
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if settings.Engine != config.EngineScrape {
		t.Fatalf("flag engine must win, got %q", settings.Engine)
	}
	if settings.SearchTimeoutSeconds != 99 {
		t.Fatalf("flag timeout must win, got %d", settings.SearchTimeoutSeconds)
	}
	if settings.PauseSeconds != config.DefaultPauseSeconds {
		t.Fatalf("-1 pause means keep settings value, got %v", settings.PauseSeconds)
	}
}

func TestBuildSearchProvider_ReleaseIsIdempotent(t *testing.T) {
	settings := config.Defaults()
	settings.Engine = config.EngineScrape

	searcher, release, err := buildSearchProvider(context.Background(), settings, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("buildSearchProvider failed: %v", err)
	}
	if searcher == nil {
		t.Fatalf("expected a provider")
	}

	// The pipeline both defers release and calls it eagerly between
	// phases; a double call must be safe.
	release()
	release()
}

func TestFailureError(t *testing.T) {
	var err error = failure{msg: "2 of 5 fetches failed"}
	if err.Error() != "2 of 5 fetches failed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
