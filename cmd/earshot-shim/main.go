// Command earshot-shim is the front half of an interception. The shim
// farm materializes one symlink per intercepted tool name pointing
// here, so a build that invokes `cc` lands in this binary instead.
//
// The shim reads the supervising session from its environment, builds
// the search-path exec shape from its own argument vector, and
// dispatches it through the interception core: with a session the call
// is rerouted through the relay, without one it degrades to a plain
// pass-through of the tool it stands in for. Either way the shim's
// image is replaced on success, so it returns only on failure.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/intercept"
	"github.com/earshot-dev/earshot/internal/session"
)

// Shell-convention exit codes for a command that could not be run.
const (
	exitNotFound   = 127
	exitCannotExec = 126
)

func main() {
	err := run(os.Args)
	if err == nil {
		// A successful exec replaced the image; this is unreachable.
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "earshot-shim: %s: %v\n", filepath.Base(os.Args[0]), err)
	os.Exit(exitFor(err))
}

func run(args []string) error {
	name := filepath.Base(args[0])
	if name == "earshot-shim" {
		return fmt.Errorf("invoked directly; run it through a shim farm symlink")
	}

	st, err := session.FromEnviron()
	if err != nil {
		return err
	}

	var ser intercept.Serializable
	searchPath := os.Getenv("PATH")
	if st != nil {
		if ser, err = st.Serializer(); err != nil {
			return err
		}
		if st.SearchPath != "" {
			searchPath = st.SearchPath
		}
	} else {
		// No supervisor: resolving the name on the untouched PATH would
		// find this shim again, so drop every entry that leads back here.
		searchPath = stripSelf(searchPath, name)
	}

	file, err := unix.BytePtrFromString(name)
	if err != nil {
		return fmt.Errorf("command name: %w", err)
	}
	path, err := unix.BytePtrFromString(searchPath)
	if err != nil {
		return fmt.Errorf("search path: %w", err)
	}
	argv, err := intercept.NewVector(args)
	if err != nil {
		return fmt.Errorf("argument vector: %w", err)
	}

	lib := intercept.NewLibrary(intercept.DefaultResolver(), ser)
	return lib.ExecvP(file, path, argv)
}

// stripSelf removes the search-path entries under which name resolves
// back to this executable.
func stripSelf(path, name string) string {
	self, err := os.Executable()
	if err != nil {
		return path
	}
	selfInfo, err := os.Stat(self)
	if err != nil {
		return path
	}
	var kept []string
	for _, dir := range filepath.SplitList(path) {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && os.SameFile(info, selfInfo) {
			continue
		}
		kept = append(kept, dir)
	}
	return strings.Join(kept, string(os.PathListSeparator))
}

func exitFor(err error) int {
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOSYS) {
		return exitNotFound
	}
	return exitCannotExec
}
