package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tunegrab/internal/browser"
	"tunegrab/internal/config"
	"tunegrab/internal/store"
)

type doctorReport struct {
	BrowserFound   bool   `json:"browser_found"`
	BrowserPath    string `json:"browser_path,omitempty"`
	StorePath      string `json:"store_path"`
	StoreReadable  bool   `json:"store_readable"`
	StoreRecords   int    `json:"store_records"`
	InvalidRecords int    `json:"invalid_records,omitempty"`
	LogDirWritable bool   `json:"log_dir_writable"`
	ConfigPath     string `json:"config_path"`
	Engine         string `json:"engine"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	storePath := fs.String("store", "", "record store path (default tunes.json)")
	configPath := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.Read(*configPath)
	if err != nil {
		return err
	}

	report := doctorReport{
		ConfigPath: *configPath,
		Engine:     settings.Engine,
	}
	report.BrowserPath, report.BrowserFound = browser.LocateBinary()

	st := store.New(*storePath)
	report.StorePath = st.Path()
	if records, loadErr := st.Load(); loadErr == nil {
		report.StoreReadable = true
		report.StoreRecords = len(records)
		for _, rec := range records {
			if rec.Validate() != nil {
				report.InvalidRecords++
			}
		}
	}

	logDir := filepath.Dir(settings.LogPath)
	if mkErr := os.MkdirAll(logDir, 0o755); mkErr == nil {
		if probe, probeErr := os.CreateTemp(logDir, ".doctor-probe-*"); probeErr == nil {
			report.LogDirWritable = true
			_ = probe.Close()
			_ = os.Remove(probe.Name())
		}
	}

	if *jsonOut {
		return printJSON(report)
	}

	fmt.Printf("browser:  %s\n", checkmark(report.BrowserFound, report.BrowserPath, "not found (required for browser engine and fetch)"))
	fmt.Printf("store:    %s\n", checkmark(report.StoreReadable, fmt.Sprintf("%s (%d records)", report.StorePath, report.StoreRecords), report.StorePath+" unreadable"))
	if report.InvalidRecords > 0 {
		fmt.Printf("          %d record(s) failed validation; inspect with 'tunegrab manage'\n", report.InvalidRecords)
	}
	fmt.Printf("logs:     %s\n", checkmark(report.LogDirWritable, logDir, logDir+" not writable"))
	fmt.Printf("engine:   %s\n", report.Engine)

	if !report.BrowserFound && settings.Engine == config.EngineBrowser {
		return fmt.Errorf("no Chrome/Chromium binary on PATH")
	}
	return nil
}

func checkmark(ok bool, okMsg, badMsg string) string {
	if ok {
		return "ok " + okMsg
	}
	return "MISSING " + badMsg
}
