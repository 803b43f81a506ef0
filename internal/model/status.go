package model

import "fmt"

const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
		StatusTimeout: true, // search never produced a usable result
	},
	StatusPending: {
		StatusPending: true,
		StatusDone:    true,
		StatusFailed:  true,
		StatusTimeout: true,
	},
	StatusTimeout: {
		StatusTimeout: true,
		StatusPending: true, // explicit --retry-timeouts re-resolve
		StatusDone:    true,
		StatusFailed:  true,
	},
	StatusFailed: {
		StatusFailed:  true,
		StatusPending: true,
		StatusDone:    true,
		StatusTimeout: true,
	},
	// done is terminal: a downloaded tune is never re-fetched.
	StatusDone: {
		StatusDone: true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionStatus(rec *TuneRecord, toStatus string, lastError string) error {
	from := rec.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid record status transition: %q -> %q (source_id=%s title=%q)", from, toStatus, rec.SourceID, rec.Title)
	}
	rec.Status = toStatus
	rec.LastError = lastError
	return nil
}

// Retryable reports whether the Fetcher should attempt the record on this
// run. Anything not yet done is fair game; this is deliberately looser than
// the Resolver's title-presence gate.
func Retryable(status string) bool {
	return status != StatusDone
}
