// Package progress renders a single-line batch indicator for the two pipeline
// phases: completed/total, outcome counters, and an ETA computed from the
// average per-item latency so far.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Tracker struct {
	enabled bool
	total   int

	mu      sync.Mutex
	done    int
	ok      int
	skipped int
	failed  int
	label   string
	started time.Time
	elapsed time.Duration

	stop chan struct{}
	once sync.Once
}

func NewTracker(enabled bool, total int) *Tracker {
	return &Tracker{
		enabled: enabled,
		total:   total,
		started: time.Now(),
		stop:    make(chan struct{}),
	}
}

func (t *Tracker) Start() {
	if !t.enabled {
		return
	}
	go func() {
		tick := time.NewTicker(700 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tick.C:
				fmt.Printf("\r\033[2K%s", t.render())
			}
		}
	}()
}

func (t *Tracker) Stop(final string) {
	if !t.enabled {
		t.once.Do(func() { close(t.stop) })
		return
	}
	t.once.Do(func() { close(t.stop) })
	fmt.Printf("\r\033[2K%s\n", final)
}

// SetLabel names the item currently being worked on.
func (t *Tracker) SetLabel(label string) {
	t.mu.Lock()
	t.label = label
	t.mu.Unlock()
}

// ItemDone records one finished item and its outcome bucket.
func (t *Tracker) ItemDone(ok, skipped, failed bool) {
	t.mu.Lock()
	t.done++
	if ok {
		t.ok++
	}
	if skipped {
		t.skipped++
	}
	if failed {
		t.failed++
	}
	t.elapsed = time.Since(t.started)
	t.mu.Unlock()
}

// ETA estimates the remaining duration from the average latency of the
// items completed so far. Zero until at least one item has finished.
func (t *Tracker) ETA() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return etaFrom(t.elapsed, t.done, t.total)
}

func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == 0 {
		return time.Since(t.started)
	}
	return t.elapsed
}

func (t *Tracker) render() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := []string{fmt.Sprintf("[%d/%d]", t.done, t.total)}
	if t.ok > 0 {
		parts = append(parts, fmt.Sprintf("ok:%d", t.ok))
	}
	if t.skipped > 0 {
		parts = append(parts, fmt.Sprintf("skip:%d", t.skipped))
	}
	if t.failed > 0 {
		parts = append(parts, fmt.Sprintf("fail:%d", t.failed))
	}
	if eta := etaFrom(time.Since(t.started), t.done, t.total); eta > 0 {
		parts = append(parts, "ETA "+formatETA(eta))
	}
	label := t.label
	if len(label) > 52 {
		label = label[:52] + "..."
	}
	if label != "" {
		parts = append(parts, "| "+label)
	}
	return strings.Join(parts, "  ")
}

func etaFrom(elapsed time.Duration, done, total int) time.Duration {
	if done <= 0 || total <= done {
		return 0
	}
	avg := elapsed / time.Duration(done)
	return avg * time.Duration(total-done)
}

func formatETA(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
