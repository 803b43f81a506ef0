// Package config holds the explicit runtime settings passed into each phase.
// Values come from documented defaults, overridden by an optional JSON
// settings file, overridden by command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const DefaultConfigPath = "tunegrab.json"

const (
	DefaultSearchTimeoutSeconds  = 15
	DefaultConvertTimeoutSeconds = 60
	DefaultSettleTimeoutSeconds  = 30
	DefaultPauseSeconds          = 0.8
	DefaultEngine                = EngineBrowser
	DefaultConversionURL         = "https://y2mate.nu/R2lu/"
	DefaultLogPath               = "logs/tunegrab.log"
	DefaultLogLevel              = "info"
)

const (
	EngineBrowser = "browser"
	EngineScrape  = "scrape"
)

// Settings is the explicit configuration structure for both phases. The
// zero value is not usable directly; go through Defaults or Read.
type Settings struct {
	// ShowBrowser disables headless mode for debugging flaky page flows.
	ShowBrowser bool `json:"show_browser,omitempty"`
	// SearchTimeoutSeconds bounds each per-title search wait.
	SearchTimeoutSeconds int `json:"search_timeout_seconds,omitempty"`
	// ConvertTimeoutSeconds bounds the wait for the conversion service to
	// offer a download.
	ConvertTimeoutSeconds int `json:"convert_timeout_seconds,omitempty"`
	// SettleTimeoutSeconds bounds the wait for a triggered download to
	// finish landing on disk.
	SettleTimeoutSeconds int `json:"settle_timeout_seconds,omitempty"`
	// PauseSeconds is the throttle between consecutive items, to avoid
	// tripping anti-automation defenses.
	PauseSeconds float64 `json:"pause_seconds,omitempty"`
	// Engine selects the search implementation: browser or scrape.
	Engine string `json:"engine,omitempty"`
	// ConversionURL is the conversion service entry page.
	ConversionURL string `json:"conversion_url,omitempty"`
	LogPath       string `json:"log_path,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
}

func Defaults() Settings {
	return Settings{
		SearchTimeoutSeconds:  DefaultSearchTimeoutSeconds,
		ConvertTimeoutSeconds: DefaultConvertTimeoutSeconds,
		SettleTimeoutSeconds:  DefaultSettleTimeoutSeconds,
		PauseSeconds:          DefaultPauseSeconds,
		Engine:                DefaultEngine,
		ConversionURL:         DefaultConversionURL,
		LogPath:               DefaultLogPath,
		LogLevel:              DefaultLogLevel,
	}
}

// Read loads settings from path. A missing file yields the defaults; any
// present field overrides its default.
func Read(path string) (Settings, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return Normalize(s), nil
}

func Normalize(raw Settings) Settings {
	norm := raw
	if norm.SearchTimeoutSeconds <= 0 {
		norm.SearchTimeoutSeconds = DefaultSearchTimeoutSeconds
	}
	if norm.ConvertTimeoutSeconds <= 0 {
		norm.ConvertTimeoutSeconds = DefaultConvertTimeoutSeconds
	}
	if norm.SettleTimeoutSeconds <= 0 {
		norm.SettleTimeoutSeconds = DefaultSettleTimeoutSeconds
	}
	if norm.PauseSeconds < 0 {
		norm.PauseSeconds = DefaultPauseSeconds
	}
	norm.Engine = normalizeEngine(norm.Engine)
	if strings.TrimSpace(norm.ConversionURL) == "" {
		norm.ConversionURL = DefaultConversionURL
	}
	if strings.TrimSpace(norm.LogPath) == "" {
		norm.LogPath = DefaultLogPath
	}
	if strings.TrimSpace(norm.LogLevel) == "" {
		norm.LogLevel = DefaultLogLevel
	}
	return norm
}

func normalizeEngine(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", EngineBrowser:
		return EngineBrowser
	case EngineScrape:
		return EngineScrape
	default:
		return DefaultEngine
	}
}

func (s Settings) SearchTimeout() time.Duration {
	return time.Duration(s.SearchTimeoutSeconds) * time.Second
}

func (s Settings) ConvertTimeout() time.Duration {
	return time.Duration(s.ConvertTimeoutSeconds) * time.Second
}

func (s Settings) SettleTimeout() time.Duration {
	return time.Duration(s.SettleTimeoutSeconds) * time.Second
}

func (s Settings) Pause() time.Duration {
	return time.Duration(s.PauseSeconds * float64(time.Second))
}
