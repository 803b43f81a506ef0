package progress

import (
	"testing"
	"time"
)

func TestEtaFrom(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		done    int
		total   int
		want    time.Duration
	}{
		{"nothing done yet", 5 * time.Second, 0, 10, 0},
		{"halfway", 10 * time.Second, 5, 10, 10 * time.Second},
		{"one left", 9 * time.Second, 9, 10, time.Second},
		{"all done", 10 * time.Second, 10, 10, 0},
		{"overshoot", 10 * time.Second, 12, 10, 0},
	}
	for _, tc := range cases {
		if got := etaFrom(tc.elapsed, tc.done, tc.total); got != tc.want {
			t.Fatalf("%s: etaFrom = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	cases := map[time.Duration]string{
		42 * time.Second:                   "0:42",
		3 * time.Minute:                    "3:00",
		90 * time.Minute:                   "1:30:00",
		time.Hour + 5*time.Second:          "1:00:05",
		2*time.Minute + 500*time.Second:    "10:20",
		time.Second + 499*time.Millisecond: "0:01",
	}
	for d, want := range cases {
		if got := formatETA(d); got != want {
			t.Fatalf("formatETA(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestTracker_CountsOutcomes(t *testing.T) {
	tr := NewTracker(false, 3)
	tr.Start()
	tr.ItemDone(true, false, false)
	tr.ItemDone(false, true, false)
	tr.ItemDone(false, false, true)
	tr.Stop("")

	if tr.done != 3 || tr.ok != 1 || tr.skipped != 1 || tr.failed != 1 {
		t.Fatalf("unexpected counters: done=%d ok=%d skipped=%d failed=%d", tr.done, tr.ok, tr.skipped, tr.failed)
	}
	if tr.ETA() != 0 {
		t.Fatalf("expected zero ETA after completion, got %v", tr.ETA())
	}
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	tr := NewTracker(false, 1)
	tr.Start()
	tr.Stop("")
	tr.Stop("") // second stop must not panic on a closed channel
}
