package convert

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"tunegrab/internal/provider"
)

// Browsers stage in-flight downloads under temporary names; a file only
// counts once it sheds the temp suffix.
var tempSuffixes = []string{".crdownload", ".tmp", ".part"}

func snapshotDir(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("read destination %s: %w", dir, err)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Name()] = true
	}
	return seen, nil
}

// waitForDownload polls dir until a new, fully written file shows up or the
// settle timeout elapses. Returns the file name when observed.
func waitForDownload(ctx context.Context, dir string, before map[string]bool, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				name := e.Name()
				if before[name] || e.IsDir() || isTempDownload(name) {
					continue
				}
				return name, nil
			}
		}

		if time.Now().After(deadline) {
			return "", provider.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return "", provider.ErrTimeout
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isTempDownload(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
