// Package shimdir builds the shim farm: a directory of symlinks, one
// per intercepted command name, each pointing at the earshot-shim
// binary. Prepending the directory to PATH makes every plain `cc` or
// `ld` invocation land in the shim first.
package shimdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Materialize fills dir with one symlink per command, each pointing at
// shimPath. Existing links are replaced, so a farm can be rebuilt over
// a previous run's leftovers.
func Materialize(dir string, commands []string, shimPath string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating shim directory: %w", err)
	}
	for _, name := range commands {
		if name == "" || strings.ContainsRune(name, os.PathSeparator) {
			return fmt.Errorf("invalid command name: %q", name)
		}
		link := filepath.Join(dir, name)
		tmp := link + ".tmp"

		// Replace atomically: symlink to a temp name, rename over
		os.Remove(tmp)
		if err := os.Symlink(shimPath, tmp); err != nil {
			return fmt.Errorf("linking %s: %w", name, err)
		}
		if err := os.Rename(tmp, link); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("replacing %s: %w", name, err)
		}
	}
	return nil
}

// PrependPath places dir ahead of every entry in path.
func PrependPath(dir, path string) string {
	if path == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + path
}

// StripDir removes dir from path. The shim calls this on its own
// directory so that resolving the command it stands in for cannot loop
// back into the farm.
func StripDir(path, dir string) string {
	if path == "" {
		return ""
	}
	var kept []string
	for _, entry := range filepath.SplitList(path) {
		if entry == dir {
			continue
		}
		kept = append(kept, entry)
	}
	return strings.Join(kept, string(os.PathListSeparator))
}
