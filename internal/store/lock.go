package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const lockOwnerFile = "owner.json"

// Lock guards the store against concurrent phase invocations. The store has
// no row-level protection, so a phase holds the lock for its whole lifetime.
type Lock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func (s *Store) AcquireLock() (Lock, error) {
	lockDir := s.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockDir), 0o755); err != nil {
		return Lock{}, fmt.Errorf("create parent for %s: %w", lockDir, err)
	}
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, lockOwnerFile)
			var owner lockOwner
			if data, readErr := os.ReadFile(ownerPath); readErr == nil {
				if json.Unmarshal(data, &owner) == nil && owner.PID > 0 {
					return Lock{}, fmt.Errorf(
						"store is locked by another run: %s (pid=%d created_at=%s host=%s)",
						s.path, owner.PID, owner.CreatedAt, owner.Hostname,
					)
				}
			}
			return Lock{}, fmt.Errorf("store is locked by another run: %s", s.path)
		}
		return Lock{}, fmt.Errorf("acquire store lock for %s: %w", s.path, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	data, err := json.MarshalIndent(owner, "", "  ")
	if err != nil {
		_ = os.Remove(lockDir)
		return Lock{}, fmt.Errorf("marshal store lock owner: %w", err)
	}
	if err := os.WriteFile(filepath.Join(lockDir, lockOwnerFile), data, 0o644); err != nil {
		_ = os.Remove(lockDir)
		return Lock{}, fmt.Errorf("write store lock owner for %s: %w", s.path, err)
	}
	return Lock{lockDir: lockDir}, nil
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release store lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
