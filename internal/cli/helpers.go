package cli

import (
	"flag"
	"strings"

	"tunegrab/internal/config"
)

// phaseFlags are the knobs shared by resolve, fetch, and run. Flag values
// override the settings file, which overrides the documented defaults.
type phaseFlags struct {
	storePath      string
	configPath     string
	engine         string
	showBrowser    bool
	searchTimeout  int
	convertTimeout int
	pauseSec       float64
	progress       bool
	jsonOut        bool
}

func registerPhaseFlags(fs *flag.FlagSet, pf *phaseFlags) {
	fs.StringVar(&pf.storePath, "store", "", "record store path (default tunes.json)")
	fs.StringVar(&pf.configPath, "config", config.DefaultConfigPath, "settings file path")
	fs.StringVar(&pf.engine, "engine", "", "search engine: browser|scrape")
	fs.BoolVar(&pf.showBrowser, "show-browser", false, "run the browser with a visible window")
	fs.IntVar(&pf.searchTimeout, "timeout", 0, "per-title search timeout in seconds (0 = settings/default)")
	fs.IntVar(&pf.convertTimeout, "convert-timeout", 0, "per-record conversion timeout in seconds (0 = settings/default)")
	fs.Float64Var(&pf.pauseSec, "pause", -1, "pause between items in seconds (-1 = settings/default)")
	fs.BoolVar(&pf.progress, "progress", true, "show live progress renderer")
	fs.BoolVar(&pf.jsonOut, "json", false, "print JSON output")
}

func (pf phaseFlags) settings() (config.Settings, error) {
	settings, err := config.Read(pf.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if strings.TrimSpace(pf.engine) != "" {
		settings.Engine = pf.engine
	}
	if pf.showBrowser {
		settings.ShowBrowser = true
	}
	if pf.searchTimeout > 0 {
		settings.SearchTimeoutSeconds = pf.searchTimeout
	}
	if pf.convertTimeout > 0 {
		settings.ConvertTimeoutSeconds = pf.convertTimeout
	}
	if pf.pauseSec >= 0 {
		settings.PauseSeconds = pf.pauseSec
	}
	return config.Normalize(settings), nil
}
