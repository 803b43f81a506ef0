package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunegrab/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "tunes.json"))
}

func TestLoad_MissingFileYieldsEmptyTable(t *testing.T) {
	st := testStore(t)
	records, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty table, got %d records", len(records))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := testStore(t)
	in := []model.TuneRecord{
		{Title: "Song A", SourceID: "aaaaaaaaaaa", URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Status: model.StatusPending},
		{Title: "Song B", Status: model.StatusTimeout, LastError: "bounded wait exceeded"},
	}
	if err := st.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].SourceID != "aaaaaaaaaaa" || out[0].Status != model.StatusPending {
		t.Fatalf("first record mangled: %+v", out[0])
	}
	if out[1].Status != model.StatusTimeout || out[1].LastError == "" {
		t.Fatalf("timeout record mangled: %+v", out[1])
	}
}

func TestLoad_AcceptsBareArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunes.json")
	legacy := `[
		{"title": "Song A", "source_id": "aaaaaaaaaaa", "url": "u", "status": "done"}
	]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy store: %v", err)
	}

	records, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 || records[0].Status != model.StatusDone {
		t.Fatalf("legacy array not parsed: %+v", records)
	}
}

func TestLoad_MapsLegacyDoneField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunes.json")
	legacy := `[
		{"title": "Song A", "url": "a", "done": false},
		{"title": "Song B", "url": "b", "done": true},
		{"title": "Song C", "url": "c", "done": "timeout"},
		{"title": "Song D", "url": "d"}
	]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy store: %v", err)
	}

	records, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{model.StatusPending, model.StatusDone, model.StatusTimeout, model.StatusPending}
	for i, status := range want {
		if records[i].Status != status {
			t.Fatalf("record %d: expected status %q, got %q", i, status, records[i].Status)
		}
	}
	for i := range records {
		if _, ok := records[i].Extra["done"]; ok {
			t.Fatalf("record %d: done key must be consumed, got %v", i, records[i].Extra)
		}
	}
}

func TestLoad_LegacyDoneKeepsOtherExtras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunes.json")
	legacy := `[{"title": "Song A", "url": "a", "done": true, "download_path": "/music"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy store: %v", err)
	}

	records, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if records[0].Status != model.StatusDone {
		t.Fatalf("expected done, got %q", records[0].Status)
	}
	if string(records[0].Extra["download_path"]) != `"/music"` {
		t.Fatalf("expected download_path preserved, got %v", records[0].Extra)
	}
}

func TestSaveLoad_PreservesTopLevelExtras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunes.json")
	doc := `{
		"schema_version": 1,
		"comment": "hand-maintained, do not reorder",
		"records": [
			{"title": "Song A", "source_id": "aaaaaaaaaaa", "url": "u", "status": "pending"}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}

	st := New(path)
	records, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := st.Save(records); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	if !strings.Contains(string(data), `"comment"`) {
		t.Fatalf("expected hand-added top-level key preserved, got:\n%s", data)
	}

	again, err := New(path).Load()
	if err != nil {
		t.Fatalf("re-Load failed: %v", err)
	}
	if len(again) != 1 || again[0].SourceID != "aaaaaaaaaaa" {
		t.Fatalf("records mangled by extras: %+v", again)
	}
}

func TestSave_CanonicalDocumentShape(t *testing.T) {
	st := testStore(t)
	if err := st.Save([]model.TuneRecord{{Title: "Song A", SourceID: "aaaaaaaaaaa", Status: model.StatusPending}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	for _, fragment := range []string{`"schema_version"`, `"updated_at"`, `"records"`} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %s in store file, got:\n%s", fragment, data)
		}
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	st := testStore(t)
	if err := st.Save(nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(st.Path()))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tunegrab-tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFindBySourceIDAndTitle(t *testing.T) {
	records := []model.TuneRecord{
		{Title: "Song A", SourceID: "aaaaaaaaaaa", Status: model.StatusPending},
		{Title: "Song B", SourceID: "bbbbbbbbbbb", Status: model.StatusDone},
	}

	if rec := FindBySourceID(records, "bbbbbbbbbbb"); rec == nil || rec.Title != "Song B" {
		t.Fatalf("FindBySourceID failed: %+v", rec)
	}
	if rec := FindBySourceID(records, "ccccccccccc"); rec != nil {
		t.Fatalf("expected nil for unknown source id, got %+v", rec)
	}

	rec := FindByTitle(records, "Song A")
	if rec == nil || rec.SourceID != "aaaaaaaaaaa" {
		t.Fatalf("FindByTitle failed: %+v", rec)
	}

	// Returned pointers alias the slice so callers can mutate in place.
	rec.Status = model.StatusDone
	if records[0].Status != model.StatusDone {
		t.Fatalf("expected FindByTitle to return a pointer into the slice")
	}
}
