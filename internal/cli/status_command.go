package cli

import (
	"flag"
	"fmt"
	"sort"

	"tunegrab/internal/model"
	"tunegrab/internal/store"
)

type statusReport struct {
	StorePath string         `json:"store_path"`
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByGroup   map[string]int `json:"by_group,omitempty"`
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	storePath := fs.String("store", "", "record store path (default tunes.json)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	st := store.New(*storePath)
	records, err := st.Load()
	if err != nil {
		return err
	}

	report := statusReport{
		StorePath: st.Path(),
		Total:     len(records),
		ByStatus:  map[string]int{},
		ByGroup:   map[string]int{},
	}
	for _, rec := range records {
		report.ByStatus[rec.Status]++
		if rec.Group != "" {
			report.ByGroup[rec.Group]++
		}
	}

	if *jsonOut {
		return printJSON(report)
	}

	fmt.Printf("store: %s\n", report.StorePath)
	fmt.Printf("records: %d\n", report.Total)
	for _, status := range []string{model.StatusPending, model.StatusDone, model.StatusFailed, model.StatusTimeout} {
		if n := report.ByStatus[status]; n > 0 {
			fmt.Printf("  %-8s %d\n", status, n)
		}
	}
	if len(report.ByGroup) > 0 {
		fmt.Println("groups:")
		groups := make([]string, 0, len(report.ByGroup))
		for g := range report.ByGroup {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		for _, g := range groups {
			fmt.Printf("  %-20s %d\n", g, report.ByGroup[g])
		}
	}
	return nil
}
