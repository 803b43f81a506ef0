package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tunegrab/internal/model"
)

const schemaVersion = 1

// DefaultPath is the store location relative to the working directory,
// matching the launcher contract: both phases share it.
const DefaultPath = "tunes.json"

// Store is the single persisted table of TuneRecord entries shared by the
// Resolver and the Fetcher. It is not safe for concurrent use; Lock
// serializes whole-phase access across processes.
type Store struct {
	path string

	// docExtra holds top-level keys hand-added next to schema_version and
	// records, captured on Load and re-emitted on Save.
	docExtra map[string]json.RawMessage
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the full table. A missing backing file yields an empty table,
// not an error. Both the canonical document shape and a bare top-level
// array (the original hand-maintained layout) are accepted.
func (s *Store) Load() ([]model.TuneRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.TuneRecord{}, nil
		}
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []model.TuneRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse store %s: %w", s.path, err)
		}
		normalizeLegacyStatuses(records)
		return records, nil
	}

	var doc model.StoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", s.path, err)
	}
	if doc.Records == nil {
		doc.Records = []model.TuneRecord{}
	}
	s.docExtra = doc.Extra
	normalizeLegacyStatuses(doc.Records)
	return doc.Records, nil
}

// normalizeLegacyStatuses fills the status field on rows that predate it.
// The original hand-maintained layout tracked outcome in a "done" key
// holding false, true, or "timeout"; that key is consumed here so the next
// save writes the canonical field instead.
func normalizeLegacyStatuses(records []model.TuneRecord) {
	for i := range records {
		rec := &records[i]
		if rec.Status != "" {
			continue
		}
		rec.Status = model.StatusPending
		if raw, ok := rec.Extra["done"]; ok {
			switch string(raw) {
			case "true":
				rec.Status = model.StatusDone
			case `"timeout"`:
				rec.Status = model.StatusTimeout
			}
			delete(rec.Extra, "done")
			if len(rec.Extra) == 0 {
				rec.Extra = nil
			}
		}
	}
}

// Save rewrites the whole table atomically (temp file + rename), so a crash
// mid-save never leaves a partially written record behind.
func (s *Store) Save(records []model.TuneRecord) error {
	doc := model.StoreDocument{
		SchemaVersion: schemaVersion,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Records:       records,
		Extra:         s.docExtra,
	}
	if doc.Records == nil {
		doc.Records = []model.TuneRecord{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store %s: %w", s.path, err)
	}
	data = append(data, '\n')
	return writeBytes(s.path, data)
}

func FindBySourceID(records []model.TuneRecord, sourceID string) *model.TuneRecord {
	for i := range records {
		if records[i].SourceID == sourceID {
			return &records[i]
		}
	}
	return nil
}

func FindByTitle(records []model.TuneRecord, title string) *model.TuneRecord {
	for i := range records {
		if records[i].Title == title {
			return &records[i]
		}
	}
	return nil
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func writeBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tunegrab-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
