package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/earshot-dev/earshot/internal/intercept"
	"github.com/earshot-dev/earshot/internal/session"
)

// build is one prepared launch of the traced command.
type build struct {
	path    string // resolved executable
	argv    []string
	env     []string
	workdir string

	// onStart runs as soon as the child exists, before it is waited
	// on.
	onStart func(pid int)

	// onSignal runs before a caught signal is forwarded to the child.
	onSignal func(sig os.Signal)
}

// launchPlain starts the build with inherited stdio and waits for it.
func (b *build) launchPlain(ctx context.Context) (int, error) {
	pathPtr, argvVec, envVec, err := b.vectors()
	if err != nil {
		return 0, err
	}

	lib := intercept.NewLibrary(intercept.DefaultResolver(), nil)
	attr := &intercept.SpawnAttr{Dir: b.workdir}
	var pid int
	if err := lib.PosixSpawn(&pid, pathPtr, nil, attr, argvVec, envVec); err != nil {
		return 0, fmt.Errorf("starting %s: %w", b.argv[0], err)
	}
	if b.onStart != nil {
		b.onStart(pid)
	}
	return b.reap(ctx, pid)
}

// reap waits for the child while forwarding interrupt and termination
// signals to it. Context cancellation terminates the child; reap still
// waits for it to die so no zombie outlives the run.
func (b *build) reap(ctx context.Context, pid int) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	type waitResult struct {
		status unix.WaitStatus
		err    error
	}
	waitCh := make(chan waitResult, 1)
	go func() {
		var ws unix.WaitStatus
		for {
			_, err := unix.Wait4(pid, &ws, 0, nil)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			waitCh <- waitResult{ws, err}
			return
		}
	}()

	done := ctx.Done()
	for {
		select {
		case sig := <-sigCh:
			if b.onSignal != nil {
				b.onSignal(sig)
			}
			_ = unix.Kill(pid, sig.(syscall.Signal))
		case <-done:
			_ = unix.Kill(pid, syscall.SIGTERM)
			done = nil
		case r := <-waitCh:
			if r.err != nil {
				return 0, fmt.Errorf("waiting for build: %w", r.err)
			}
			return exitCode(r.status), nil
		}
	}
}

// vectors prepares the spawn arguments as terminated pointer vectors.
func (b *build) vectors() (path *byte, argv, envp []*byte, err error) {
	if path, err = unix.BytePtrFromString(b.path); err != nil {
		return nil, nil, nil, fmt.Errorf("command path: %w", err)
	}
	if argv, err = intercept.NewVector(b.argv); err != nil {
		return nil, nil, nil, fmt.Errorf("argument vector: %w", err)
	}
	if envp, err = intercept.NewVector(b.env); err != nil {
		return nil, nil, nil, fmt.Errorf("environment vector: %w", err)
	}
	return path, argv, envp, nil
}

// exitCode folds a wait status into the shell convention: the exit
// status for a normal exit, 128 plus the signal number for a fatal
// signal.
func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return int(ws)
	}
}

// resolveCommand turns the build's first argument into a spawnable
// path. Names with a separator are left alone; the child resolves them
// after changing into its working directory. Bare names are looked up
// on the caller's own PATH, which the shim farm has not touched.
func resolveCommand(argv0 string) (string, error) {
	if strings.ContainsRune(argv0, os.PathSeparator) {
		return argv0, nil
	}
	path, err := exec.LookPath(argv0)
	if err != nil {
		return "", fmt.Errorf("command not found: %s", argv0)
	}
	return path, nil
}

// helperPath finds one of the companion binaries: an explicit override
// wins, then the directory of the running executable, then PATH.
func helperPath(name, override string) (string, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", override, err)
		}
		return abs, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found next to the earshot executable or on PATH", name)
	}
	return path, nil
}

// tracedEnviron rebuilds the environment for a shim-mode build: the
// shim farm leads PATH and the session variables point the shims at
// this run. Session variables from an enclosing run are dropped so
// nested invocations do not report into the wrong collector.
func tracedEnviron(base []string, tracedPath string, state *session.State) []string {
	env := make([]string, 0, len(base)+5)
	for _, kv := range base {
		if strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, "EARSHOT_") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+tracedPath)
	return append(env, state.Environ()...)
}
