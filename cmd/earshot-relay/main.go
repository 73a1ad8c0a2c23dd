// Command earshot-relay is the back half of an interception. A
// rerouted call replaces the intercepted tool's vector with one that
// starts at this binary, so the relay receives the session header and
// the original command line as its own arguments.
//
// It decodes that vector, reports one exec event to the run's
// collector, and chains to the real command by replacing its own
// image. The reported pid is the relay's own, which is also the final
// command's pid since exec does not change it. Reporting failures
// never fail the build; only the chain itself can, and then the relay
// exits the way a shell does for an unrunnable command.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/intercept"
	"github.com/earshot-dev/earshot/internal/report"
	"github.com/earshot-dev/earshot/internal/wire"
)

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
	fmt.Fprintf(os.Stderr, "earshot-relay: %v\n", err)
	code := exitCannotExec
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOSYS) {
		code = exitNotFound
	}
	os.Exit(code)
}

func run(args []string) error {
	req, err := wire.Decode(args)
	if err != nil {
		return fmt.Errorf("decoding vector: %w", err)
	}

	command := req.File
	if command == "" {
		command = req.Argv[0]
	}
	workdir, _ := os.Getwd()
	if err := report.Post(req.Destination, report.Event{
		Kind:       report.KindExec,
		PID:        os.Getpid(),
		PPID:       os.Getppid(),
		Command:    command,
		Args:       req.Argv,
		WorkingDir: workdir,
	}); err != nil && req.Verbose {
		fmt.Fprintf(os.Stderr, "earshot-relay: reporting %s: %v\n", command, err)
	}

	return chain(req)
}

// chain replaces the relay's image with the original command. Searched
// call shapes resolve their file against the decoded search path, the
// PATH the session saved before the shim farm was prepended; that is
// what keeps the resolution from landing in a shim again.
func chain(req *wire.Request) error {
	argv, err := intercept.NewVector(req.Argv)
	if err != nil {
		return fmt.Errorf("argument vector: %w", err)
	}
	lib := intercept.NewLibrary(intercept.DefaultResolver(), nil)

	if req.File != "" {
		file, err := unix.BytePtrFromString(req.File)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		searchPath := req.SearchPath
		if searchPath == "" {
			searchPath = os.Getenv("PATH")
		}
		path, err := unix.BytePtrFromString(searchPath)
		if err != nil {
			return fmt.Errorf("search path: %w", err)
		}
		return lib.ExecvP(file, path, argv)
	}

	// Path shapes encode no file; argv[0] carries the command. Relative
	// names still go through the search so `sh -c` style vectors work.
	if filepath.IsAbs(req.Argv[0]) {
		path, err := unix.BytePtrFromString(req.Argv[0])
		if err != nil {
			return fmt.Errorf("command path: %w", err)
		}
		envp, err := intercept.NewVector(os.Environ())
		if err != nil {
			return fmt.Errorf("environment vector: %w", err)
		}
		return lib.Execve(path, argv, envp)
	}

	file, err := unix.BytePtrFromString(req.Argv[0])
	if err != nil {
		return fmt.Errorf("command: %w", err)
	}
	searchPath := req.SearchPath
	if searchPath == "" {
		searchPath = os.Getenv("PATH")
	}
	path, err := unix.BytePtrFromString(searchPath)
	if err != nil {
		return fmt.Errorf("search path: %w", err)
	}
	return lib.ExecvP(file, path, argv)
}
