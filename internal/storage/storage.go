// Package storage lays out the on-disk state of earshot runs. Each run
// owns one directory holding its metadata, its event database, the
// collector socket, the shim farm, and any terminal capture.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"encoding/json"
)

// Run modes recorded in metadata.
const (
	ModeShim    = "shim"
	ModePassive = "passive"
)

// Files inside a run directory.
const (
	metadataFile = "metadata.json"
	eventsDBFile = "events.db"
	socketFile   = "collector.sock"
	shimDirName  = "shims"
	ttyLogFile   = "tty.json"
)

// validRunID matches safe run IDs (alphanumeric with hyphens and
// underscores).
var validRunID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Metadata holds information about a traced run.
type Metadata struct {
	Command    []string  `json:"command"`
	WorkingDir string    `json:"working_dir"`
	Mode       string    `json:"mode"`
	PTY        bool      `json:"pty,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	StoppedAt  time.Time `json:"stopped_at,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunStore manages storage for a single run.
type RunStore struct {
	dir   string
	runID string
}

// NewRunStore creates the run directory under baseDir and returns its
// store.
func NewRunStore(baseDir, runID string) (*RunStore, error) {
	if !validRunID.MatchString(runID) {
		return nil, fmt.Errorf("invalid run ID: %s", runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}
	return &RunStore{
		dir:   runDir,
		runID: runID,
	}, nil
}

// OpenRunStore returns the store of an existing run.
func OpenRunStore(baseDir, runID string) (*RunStore, error) {
	if !validRunID.MatchString(runID) {
		return nil, fmt.Errorf("invalid run ID: %s", runID)
	}
	runDir := filepath.Join(baseDir, runID)
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return &RunStore{
		dir:   runDir,
		runID: runID,
	}, nil
}

// RunID returns the run identifier.
func (s *RunStore) RunID() string {
	return s.runID
}

// Dir returns the directory path for this run's storage.
func (s *RunStore) Dir() string {
	return s.dir
}

// EventsDBPath returns the path of the run's event database.
func (s *RunStore) EventsDBPath() string {
	return filepath.Join(s.dir, eventsDBFile)
}

// SocketPath returns the path of the run's collector socket.
func (s *RunStore) SocketPath() string {
	return filepath.Join(s.dir, socketFile)
}

// ShimDir returns the directory holding the run's shim farm.
func (s *RunStore) ShimDir() string {
	return filepath.Join(s.dir, shimDirName)
}

// TTYLogPath returns the path of the run's terminal capture.
func (s *RunStore) TTYLogPath() string {
	return filepath.Join(s.dir, ttyLogFile)
}

// SaveMetadata writes the metadata using a write-rename so a crash
// mid-write never leaves a truncated file behind.
func (s *RunStore) SaveMetadata(m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	metadataPath := filepath.Join(s.dir, metadataFile)
	tmpPath := metadataPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmpPath, metadataPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the metadata from the run directory.
func (s *RunStore) LoadMetadata() (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// RunInfo pairs a run ID with its stored metadata.
type RunInfo struct {
	RunID string
	Meta  Metadata
}

// ListRuns returns all runs under baseDir, most recently started
// first. Directories without readable metadata are skipped.
func ListRuns(baseDir string) ([]RunInfo, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []RunInfo
	for _, entry := range entries {
		if !entry.IsDir() || !validRunID.MatchString(entry.Name()) {
			continue
		}
		store := &RunStore{dir: filepath.Join(baseDir, entry.Name()), runID: entry.Name()}
		meta, err := store.LoadMetadata()
		if err != nil {
			continue // Skip corrupted runs
		}
		runs = append(runs, RunInfo{RunID: entry.Name(), Meta: meta})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Meta.StartedAt.After(runs[j].Meta.StartedAt)
	})

	return runs, nil
}

// DefaultBaseDir returns the default base directory for run storage.
// This is ~/.earshot/runs.
func DefaultBaseDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return filepath.Join(".", ".earshot", "runs")
	}
	return filepath.Join(homeDir, ".earshot", "runs")
}
