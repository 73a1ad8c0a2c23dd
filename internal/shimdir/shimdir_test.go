package shimdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMaterialize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shims")
	shim := "/usr/libexec/earshot-shim"

	if err := Materialize(dir, []string{"cc", "gcc", "ld"}, shim); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	for _, name := range []string{"cc", "gcc", "ld"} {
		target, err := os.Readlink(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Readlink(%s): %v", name, err)
		}
		if target != shim {
			t.Errorf("%s -> %q, want %q", name, target, shim)
		}
	}
}

func TestMaterializeReplacesStaleLinks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shims")

	if err := Materialize(dir, []string{"cc"}, "/old/earshot-shim"); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := Materialize(dir, []string{"cc"}, "/new/earshot-shim"); err != nil {
		t.Fatalf("re-Materialize: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dir, "cc"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/new/earshot-shim" {
		t.Errorf("cc -> %q, want the replacement target", target)
	}
}

func TestMaterializeRejectsPathNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shims")
	if err := Materialize(dir, []string{"../cc"}, "/shim"); err == nil {
		t.Error("Materialize should reject command names containing separators")
	}
	if err := Materialize(dir, []string{""}, "/shim"); err == nil {
		t.Error("Materialize should reject empty command names")
	}
}

func TestPrependPath(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		path string
		want string
	}{
		{"normal", "/run/shims", "/usr/bin:/bin", "/run/shims:/usr/bin:/bin"},
		{"empty path", "/run/shims", "", "/run/shims"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrependPath(tt.dir, tt.path); got != tt.want {
				t.Errorf("PrependPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripDir(t *testing.T) {
	tests := []struct {
		name string
		path string
		dir  string
		want string
	}{
		{"front", "/run/shims:/usr/bin:/bin", "/run/shims", "/usr/bin:/bin"},
		{"middle", "/usr/bin:/run/shims:/bin", "/run/shims", "/usr/bin:/bin"},
		{"absent", "/usr/bin:/bin", "/run/shims", "/usr/bin:/bin"},
		{"repeated", "/run/shims:/usr/bin:/run/shims", "/run/shims", "/usr/bin"},
		{"empty", "", "/run/shims", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripDir(tt.path, tt.dir); got != tt.want {
				t.Errorf("StripDir = %q, want %q", got, tt.want)
			}
		})
	}
}
