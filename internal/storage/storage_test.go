package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRunStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRunStore(dir, "run_test123")
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}
	if s.RunID() != "run_test123" {
		t.Errorf("RunID = %q, want %q", s.RunID(), "run_test123")
	}

	// Check directory was created
	runDir := filepath.Join(dir, "run_test123")
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		t.Error("run directory was not created")
	}
}

func TestNewRunStoreRejectsUnsafeID(t *testing.T) {
	if _, err := NewRunStore(t.TempDir(), "../escape"); err == nil {
		t.Error("NewRunStore should reject path-traversal IDs")
	}
}

func TestRunStorePaths(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRunStore(dir, "run_paths")
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	runDir := filepath.Join(dir, "run_paths")
	if s.Dir() != runDir {
		t.Errorf("Dir = %q, want %q", s.Dir(), runDir)
	}
	if s.EventsDBPath() != filepath.Join(runDir, "events.db") {
		t.Errorf("EventsDBPath = %q", s.EventsDBPath())
	}
	if s.SocketPath() != filepath.Join(runDir, "collector.sock") {
		t.Errorf("SocketPath = %q", s.SocketPath())
	}
	if s.ShimDir() != filepath.Join(runDir, "shims") {
		t.Errorf("ShimDir = %q", s.ShimDir())
	}
	if s.TTYLogPath() != filepath.Join(runDir, "tty.json") {
		t.Errorf("TTYLogPath = %q", s.TTYLogPath())
	}
}

func TestRunStoreMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRunStore(dir, "run_meta")
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	exit := 0
	meta := Metadata{
		Command:    []string{"make", "-j4"},
		WorkingDir: "/home/user/project",
		Mode:       ModeShim,
		PTY:        true,
		StartedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		StoppedAt:  time.Date(2026, 5, 1, 12, 3, 0, 0, time.UTC),
		ExitCode:   &exit,
	}
	if err := s.SaveMetadata(meta); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}

	loaded, err := s.LoadMetadata()
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if len(loaded.Command) != 2 || loaded.Command[0] != "make" {
		t.Errorf("Command = %v, want [make -j4]", loaded.Command)
	}
	if loaded.WorkingDir != meta.WorkingDir {
		t.Errorf("WorkingDir = %q, want %q", loaded.WorkingDir, meta.WorkingDir)
	}
	if loaded.Mode != ModeShim {
		t.Errorf("Mode = %q, want %q", loaded.Mode, ModeShim)
	}
	if !loaded.PTY {
		t.Error("PTY = false, want true")
	}
	if !loaded.StartedAt.Equal(meta.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, meta.StartedAt)
	}
	if loaded.ExitCode == nil || *loaded.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", loaded.ExitCode)
	}

	// No leftover temp file from the write-rename
	if _, err := os.Stat(filepath.Join(s.Dir(), "metadata.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary metadata file should not remain")
	}
}

func TestOpenRunStore(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRunStore(dir, "run_exists"); err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	if _, err := OpenRunStore(dir, "run_exists"); err != nil {
		t.Errorf("OpenRunStore of existing run: %v", err)
	}
	if _, err := OpenRunStore(dir, "run_missing"); err == nil {
		t.Error("OpenRunStore should fail for a missing run")
	}
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()

	older, err := NewRunStore(dir, "run_older")
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}
	older.SaveMetadata(Metadata{Command: []string{"make"}, StartedAt: time.Now().Add(-time.Hour)})

	newer, err := NewRunStore(dir, "run_newer")
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}
	newer.SaveMetadata(Metadata{Command: []string{"ninja"}, StartedAt: time.Now()})

	// A directory without metadata is skipped
	if _, err := NewRunStore(dir, "run_corrupt"); err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	runs, err := ListRuns(dir)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run_newer" {
		t.Errorf("runs[0] = %q, want the most recent run first", runs[0].RunID)
	}
	if runs[1].RunID != "run_older" {
		t.Errorf("runs[1] = %q, want %q", runs[1].RunID, "run_older")
	}
}

func TestListRunsMissingBaseDir(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if runs != nil {
		t.Errorf("runs = %v, want none for a missing base dir", runs)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	baseDir := DefaultBaseDir()
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	expected := filepath.Join(homeDir, ".earshot", "runs")
	if baseDir != expected {
		t.Errorf("DefaultBaseDir = %q, want %q", baseDir, expected)
	}
}
