package syncstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists one JSON file per calendar day under a directory the app
// owns. A file that fails to parse is discarded and replaced with empty
// state: startup must never fail on a corrupted cache, and anything that
// was already pushed comes back through reconciliation. Unpushed progress
// in a corrupted file is gone; that is the accepted loss boundary.
type Store struct {
	dir string
}

type storedDay struct {
	Progress DayProgress `json:"progress"`
	Pending  []Op        `json:"pending"`
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("syncstate: store dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("syncstate: create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(day string) string {
	return filepath.Join(s.dir, day+".json")
}

// Load reads a day's persisted state. Missing or corrupted files load as
// empty.
func (s *Store) Load(day string) (DayProgress, []Op) {
	raw, err := os.ReadFile(s.path(day))
	if errors.Is(err, os.ErrNotExist) {
		return NewDayProgress(), nil
	}
	if err != nil {
		return NewDayProgress(), nil
	}
	var sd storedDay
	if err := json.Unmarshal(raw, &sd); err != nil {
		// Corrupted cache: reset rather than fail.
		_ = os.Remove(s.path(day))
		return NewDayProgress(), nil
	}
	if sd.Progress.Singles == nil {
		sd.Progress.Singles = make(StringSet)
	}
	if sd.Progress.Repeatables == nil {
		sd.Progress.Repeatables = make(map[string]int64)
	}
	return sd.Progress, sd.Pending
}

// Save writes a day's state atomically (temp file + rename).
func (s *Store) Save(day string, p DayProgress, pending []Op) error {
	raw, err := json.Marshal(storedDay{Progress: p, Pending: pending})
	if err != nil {
		return fmt.Errorf("syncstate: marshal day %s: %w", day, err)
	}
	tmp := s.path(day) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("syncstate: write day %s: %w", day, err)
	}
	if err := os.Rename(tmp, s.path(day)); err != nil {
		return fmt.Errorf("syncstate: rename day %s: %w", day, err)
	}
	return nil
}
