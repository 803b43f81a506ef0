package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tunegrab/internal/config"
	"tunegrab/internal/model"
	"tunegrab/internal/provider"
	"tunegrab/internal/store"
)

type stubSearch struct {
	results map[string]provider.SearchResult
	errs    map[string]error
	calls   []string
}

func (s *stubSearch) Search(_ context.Context, title string) (provider.SearchResult, error) {
	s.calls = append(s.calls, title)
	if err, ok := s.errs[title]; ok {
		return provider.SearchResult{}, err
	}
	if res, ok := s.results[title]; ok {
		return res, nil
	}
	return provider.SearchResult{}, provider.ErrNotFound
}

func hit(title, id string) provider.SearchResult {
	return provider.SearchResult{
		Title:    title,
		SourceID: id,
		URL:      "https://www.youtube.com/watch?v=" + id,
	}
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.PauseSeconds = 0
	s.SearchTimeoutSeconds = 5
	return s
}

func writeInput(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write input list: %v", err)
	}
	return path
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "tunes.json"))
}

func TestRun_EmptyInputIsNoop(t *testing.T) {
	st := newTestStore(t)
	search := &stubSearch{}

	res, err := Run(context.Background(), Options{
		InputPath: writeInput(t, "\n  \n"),
		Store:     st,
		Search:    search,
		Settings:  testSettings(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Titles != 0 || res.Searched != 0 {
		t.Fatalf("expected no work, got %+v", res)
	}
	if len(search.calls) != 0 {
		t.Fatalf("search must not be called, got %v", search.calls)
	}
}

func TestRun_MissingInputIsFatal(t *testing.T) {
	_, err := Run(context.Background(), Options{
		InputPath: filepath.Join(t.TempDir(), "nope.txt"),
		Store:     newTestStore(t),
		Search:    &stubSearch{},
		Settings:  testSettings(),
	})
	if err == nil {
		t.Fatalf("expected missing input list to be fatal")
	}
}

func TestRun_ResolvesAndRecordsTimeouts(t *testing.T) {
	st := newTestStore(t)
	search := &stubSearch{
		results: map[string]provider.SearchResult{"Song A": hit("Song A", "aaaaaaaaaaa")},
		errs:    map[string]error{"Song B": provider.ErrTimeout},
	}

	res, err := Run(context.Background(), Options{
		InputPath: writeInput(t, "Song A\nSong B\n"),
		Store:     st,
		Search:    search,
		Settings:  testSettings(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.NewRecords != 1 || res.Timeouts != 1 || res.Searched != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	records, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	a := store.FindByTitle(records, "Song A")
	if a == nil || a.Status != model.StatusPending || a.SourceID != "aaaaaaaaaaa" || a.ResolvedAt == "" {
		t.Fatalf("resolved record mangled: %+v", a)
	}

	b := store.FindByTitle(records, "Song B")
	if b == nil || b.Status != model.StatusTimeout || b.SourceID != "" || b.URL != "" {
		t.Fatalf("timeout record mangled: %+v", b)
	}
	if b.LastError == "" {
		t.Fatalf("expected last error on timeout row")
	}
}

func TestRun_SecondRunSkipsKnownTitles(t *testing.T) {
	st := newTestStore(t)
	input := writeInput(t, "Song A\nSong B\n")
	search := &stubSearch{
		results: map[string]provider.SearchResult{"Song A": hit("Song A", "aaaaaaaaaaa")},
		errs:    map[string]error{"Song B": provider.ErrTimeout},
	}
	opts := Options{InputPath: input, Store: st, Search: search, Settings: testSettings()}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	search.calls = nil

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res.Skipped != 2 || res.Searched != 0 {
		t.Fatalf("expected both titles skipped, got %+v", res)
	}
	if len(search.calls) != 0 {
		t.Fatalf("search must not run for known titles, got %v", search.calls)
	}
}

func TestRun_RetryTimeoutsReattemptsOnlyUnresolvedRows(t *testing.T) {
	st := newTestStore(t)
	input := writeInput(t, "Song A\nSong B\n")
	search := &stubSearch{
		results: map[string]provider.SearchResult{"Song A": hit("Song A", "aaaaaaaaaaa")},
		errs:    map[string]error{"Song B": provider.ErrTimeout},
	}
	opts := Options{InputPath: input, Store: st, Search: search, Settings: testSettings()}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The flaky search recovers for the retry.
	delete(search.errs, "Song B")
	search.results["Song B"] = hit("Song B", "bbbbbbbbbbb")
	search.calls = nil

	opts.RetryTimeouts = true
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if res.Searched != 1 || res.NewRecords != 1 || res.Skipped != 1 {
		t.Fatalf("expected one retried title, got %+v", res)
	}
	if len(search.calls) != 1 || search.calls[0] != "Song B" {
		t.Fatalf("expected only Song B searched, got %v", search.calls)
	}

	records, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b := store.FindByTitle(records, "Song B")
	if b == nil || b.Status != model.StatusPending || b.SourceID != "bbbbbbbbbbb" {
		t.Fatalf("retried row not filled in: %+v", b)
	}
	if len(records) != 2 {
		t.Fatalf("retry must fill the row, not append, got %d records", len(records))
	}
}

func TestRun_DeduplicatesBySourceID(t *testing.T) {
	st := newTestStore(t)
	// Two differently spelled titles resolving to the same video.
	search := &stubSearch{
		results: map[string]provider.SearchResult{
			"Song A":         hit("Song A", "aaaaaaaaaaa"),
			"Song A (remix)": hit("Song A (remix)", "aaaaaaaaaaa"),
		},
	}

	res, err := Run(context.Background(), Options{
		InputPath: writeInput(t, "Song A\nSong A (remix)\n"),
		Store:     st,
		Search:    search,
		Settings:  testSettings(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.NewRecords != 1 || res.Duplicates != 1 {
		t.Fatalf("expected dedup by source id, got %+v", res)
	}

	records, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected single record, got %d", len(records))
	}
}

func TestRun_DuplicateInputLinesSearchedOnce(t *testing.T) {
	st := newTestStore(t)
	search := &stubSearch{
		results: map[string]provider.SearchResult{"Song A": hit("Song A", "aaaaaaaaaaa")},
	}

	res, err := Run(context.Background(), Options{
		InputPath: writeInput(t, "Song A\nSong A\nSong A\n"),
		Store:     st,
		Search:    search,
		Settings:  testSettings(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.NewRecords != 1 || res.Skipped != 2 {
		t.Fatalf("expected repeated lines skipped, got %+v", res)
	}
	if len(search.calls) != 1 {
		t.Fatalf("expected one search call, got %v", search.calls)
	}
}
