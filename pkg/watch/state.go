package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

const stateFileName = "watch_state.json"

// SiteState contains the last run information for a site
type SiteState struct {
	LastRunTime    time.Time `json:"last_run_time"`
	LastRunSuccess bool      `json:"last_run_success"`
	URLCount       int       `json:"url_count"`
	Verdict        string    `json:"verdict,omitempty"`
	IndexingStatus string    `json:"indexing_status,omitempty"`
	RegistrySHA256 string    `json:"registry_sha256,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the watch scheduler
type WatchState struct {
	Sites     map[string]SiteState `json:"sites"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state: WatchState{
			Sites: make(map[string]SiteState),
		},
	}
}

// Load loads the state from disk. A missing file starts fresh.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.state = WatchState{Sites: make(map[string]SiteState)}
			return nil
		}
		return fmt.Errorf("%w: read state file: %w", utils.ErrFilesystem, err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("%w: state file %s: %w", utils.ErrParsing, m.statePath, err)
	}
	if m.state.Sites == nil {
		m.state.Sites = make(map[string]SiteState)
	}
	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: create state directory: %w", utils.ErrFilesystem, err)
	}
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: write state file: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// GetSiteState returns the state for a specific site
func (m *StateManager) GetSiteState(siteKey string) (SiteState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Sites[siteKey]
	return state, ok
}

// UpdateSiteState records a finished run. A zero LastRunTime is stamped with now.
func (m *StateManager) UpdateSiteState(siteKey string, state SiteState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.LastRunTime.IsZero() {
		state.LastRunTime = time.Now()
	}
	m.state.Sites[siteKey] = state
}

// ShouldRun reports whether a site is due: never run, interval elapsed, or its registry
// fingerprint differs from the one recorded at the last run. An empty fingerprint is ignored.
func (m *StateManager) ShouldRun(siteKey string, interval time.Duration, registrySHA256 string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Sites[siteKey]
	if !ok {
		return true
	}
	if registrySHA256 != "" && state.RegistrySHA256 != "" && registrySHA256 != state.RegistrySHA256 {
		return true
	}
	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns when the site should next run
func (m *StateManager) GetNextRunTime(siteKey string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Sites[siteKey]
	if !ok {
		return time.Now()
	}
	return state.LastRunTime.Add(interval)
}

// GetAllSiteStates returns a copy of all site states
func (m *StateManager) GetAllSiteStates() map[string]SiteState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]SiteState, len(m.state.Sites))
	for k, v := range m.state.Sites {
		result[k] = v
	}
	return result
}
