package optimizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultRecentRuns caps the telemetry kept on disk.
const DefaultRecentRuns = 50

// State is the persisted telemetry.
type State struct {
	Runs      []RunTelemetry `json:"runs"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode telemetry %s: %w", filePath, err)
	}
	return &state, nil
}

// SaveState writes the state file.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// Store accumulates run telemetry in a JSON file.
type Store struct {
	mu       sync.Mutex
	state    *State
	filePath string
	limit    int
}

// NewStore loads or initializes the telemetry file. limit <= 0 uses DefaultRecentRuns.
func NewStore(filePath string, limit int) (*Store, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentRuns
	}
	s := &Store{state: state, filePath: filePath, limit: limit}
	s.trim()
	return s, nil
}

// Append records a run and persists the state.
func (s *Store) Append(t RunTelemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Runs = append(s.state.Runs, t)
	s.trim()
	return SaveState(s.filePath, s.state)
}

// Runs returns a copy of the retained telemetry, oldest first.
func (s *Store) Runs() []RunTelemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunTelemetry(nil), s.state.Runs...)
}

func (s *Store) trim() {
	if len(s.state.Runs) > s.limit {
		s.state.Runs = s.state.Runs[len(s.state.Runs)-s.limit:]
	}
}
