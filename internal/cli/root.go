package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "resolve":
		return runResolve(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "run":
		return runPipeline(args[1:])
	case "status":
		return runStatus(args[1:])
	case "manage":
		return runManage(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("tunegrab: list-driven audio track resolver and downloader")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  tunegrab run tracks.txt ./downloads")
	fmt.Println("  tunegrab status")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  resolve   search each title of the input list and record its source URL")
	fmt.Println("  fetch     download every resolved record that is not done yet")
	fmt.Println("  run       resolve then fetch in one go")
	fmt.Println("  status    status rollup of the record store")
	fmt.Println("  manage    interactive record browser (edit groups, prune rows)")
	fmt.Println("  doctor    dependency and filesystem preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Both phases share the record store (default tunes.json);")
	fmt.Println("    re-running a phase retries what the last run left behind")
}

// failure marks a phase that finished but reported per-item failures, so
// the process exits non-zero without drowning the summary in error text.
type failure struct {
	msg string
}

func (f failure) Error() string {
	return f.msg
}
