package run

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/session"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		status unix.WaitStatus
		want   int
	}{
		{"clean exit", unix.WaitStatus(0), 0},
		{"exit 2", unix.WaitStatus(2 << 8), 2},
		{"exit 77", unix.WaitStatus(77 << 8), 77},
		{"killed", unix.WaitStatus(9), 137},
		{"terminated", unix.WaitStatus(15), 143},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.status); got != tt.want {
				t.Errorf("exitCode(%#x) = %d, want %d", uint32(tt.status), got, tt.want)
			}
		})
	}
}

func TestTracedEnviron(t *testing.T) {
	base := []string{
		"HOME=/home/u",
		"PATH=/usr/local/bin:/usr/bin",
		"EARSHOT_DESTINATION=/stale/collector.sock",
		"EARSHOT_RELAY=/stale/relay",
		"TERM=xterm",
	}
	state := &session.State{
		Destination: "/run/er/collector.sock",
		Relay:       "/usr/libexec/earshot-relay",
		SearchPath:  "/usr/local/bin:/usr/bin",
	}

	env := tracedEnviron(base, "/run/er/shims:/usr/local/bin:/usr/bin", state)

	if !slices.Contains(env, "HOME=/home/u") || !slices.Contains(env, "TERM=xterm") {
		t.Errorf("unrelated variables lost: %v", env)
	}
	if !slices.Contains(env, "PATH=/run/er/shims:/usr/local/bin:/usr/bin") {
		t.Errorf("traced PATH missing: %v", env)
	}
	for _, kv := range env {
		if kv == "PATH=/usr/local/bin:/usr/bin" {
			t.Error("original PATH survived")
		}
		if strings.HasPrefix(kv, "EARSHOT_") && strings.Contains(kv, "stale") {
			t.Errorf("stale session variable survived: %s", kv)
		}
	}
	if !slices.Contains(env, "EARSHOT_DESTINATION=/run/er/collector.sock") {
		t.Errorf("session destination missing: %v", env)
	}
	if !slices.Contains(env, "EARSHOT_PATH=/usr/local/bin:/usr/bin") {
		t.Errorf("saved search path missing: %v", env)
	}
}

func TestResolveCommandKeepsPaths(t *testing.T) {
	for _, cmd := range []string{"/bin/sh", "./build.sh", "tools/gen"} {
		got, err := resolveCommand(cmd)
		if err != nil || got != cmd {
			t.Errorf("resolveCommand(%q) = %q, %v", cmd, got, err)
		}
	}
}

func TestResolveCommandSearchesPath(t *testing.T) {
	got, err := resolveCommand("sh")
	if err != nil {
		t.Fatalf("resolveCommand(sh): %v", err)
	}
	if !strings.Contains(got, "/") {
		t.Errorf("resolveCommand(sh) = %q, want an absolute path", got)
	}
}

func TestResolveCommandNotFound(t *testing.T) {
	if _, err := resolveCommand("no-such-tool-earshot-test"); err == nil {
		t.Error("resolveCommand should fail for an unknown command")
	}
}

func TestHelperPathOverride(t *testing.T) {
	got, err := helperPath("earshot-shim", "/opt/earshot/earshot-shim")
	if err != nil || got != "/opt/earshot/earshot-shim" {
		t.Errorf("helperPath = %q, %v", got, err)
	}

	rel, err := helperPath("earshot-shim", "bin/earshot-shim")
	if err != nil {
		t.Fatalf("helperPath: %v", err)
	}
	if !filepath.IsAbs(rel) {
		t.Errorf("helperPath kept a relative override: %q", rel)
	}
}

func TestHelperPathSearchesPath(t *testing.T) {
	dir := t.TempDir()
	shim := filepath.Join(dir, "earshot-shim")
	if err := os.WriteFile(shim, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	got, err := helperPath("earshot-shim", "")
	if err != nil {
		t.Fatalf("helperPath: %v", err)
	}
	if got != shim {
		t.Errorf("helperPath = %q, want %q", got, shim)
	}
}

func TestHelperPathNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, err := helperPath("earshot-relay", ""); err == nil {
		t.Error("helperPath should fail when the binary is nowhere")
	}
}
