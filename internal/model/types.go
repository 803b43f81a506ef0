package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TuneRecord is one row of the persisted tunes table: a unique
// title x source-id pair plus its fetch state. Extra holds any JSON
// fields hand-added to the store file so a rewrite never strips them.
type TuneRecord struct {
	Title       string `json:"title"`
	SourceID    string `json:"source_id"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	Group       string `json:"group,omitempty"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
	FetchedAt   string `json:"fetched_at,omitempty"`
	LastError   string `json:"last_error,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownRecordFields = map[string]bool{
	"title":       true,
	"source_id":   true,
	"url":         true,
	"status":      true,
	"destination": true,
	"group":       true,
	"resolved_at": true,
	"fetched_at":  true,
	"last_error":  true,
}

func (r *TuneRecord) UnmarshalJSON(data []byte) error {
	type plain TuneRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownRecordFields[key] {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*r = TuneRecord(p)
	r.Extra = raw
	return nil
}

func (r TuneRecord) MarshalJSON() ([]byte, error) {
	type plain TuneRecord
	data, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}

	// Re-append unknown fields inside the same object. Keys are emitted in
	// sorted order so repeated saves are byte-stable.
	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if knownRecordFields[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := data[:len(data)-1] // drop closing brace
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, r.Extra[key]...)
	}
	return append(out, '}'), nil
}

// StoreDocument is the canonical shape of the tunes store file. Extra holds
// top-level keys hand-added next to the known ones, preserved across
// rewrites like the per-record unknowns.
type StoreDocument struct {
	SchemaVersion int          `json:"schema_version"`
	UpdatedAt     string       `json:"updated_at,omitempty"`
	Records       []TuneRecord `json:"records"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownDocFields = map[string]bool{
	"schema_version": true,
	"updated_at":     true,
	"records":        true,
}

func (d *StoreDocument) UnmarshalJSON(data []byte) error {
	type plain StoreDocument
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownDocFields[key] {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*d = StoreDocument(p)
	d.Extra = raw
	return nil
}

func (d StoreDocument) MarshalJSON() ([]byte, error) {
	type plain StoreDocument
	data, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(d.Extra))
	for key := range d.Extra {
		if knownDocFields[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := data[:len(data)-1]
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, d.Extra[key]...)
	}
	return append(out, '}'), nil
}

func (r TuneRecord) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("record has empty title")
	}
	// Timeout rows from a failed search legitimately carry no source id yet.
	if r.SourceID == "" && r.Status != StatusTimeout {
		return fmt.Errorf("record %q has empty source_id", r.Title)
	}
	if !IsKnownStatus(r.Status) {
		return fmt.Errorf("record %q has unknown status %q", r.Title, r.Status)
	}
	return nil
}
