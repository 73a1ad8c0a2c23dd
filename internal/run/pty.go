package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/earshot-dev/earshot/internal/intercept"
	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/ttylog"
)

// launchPTY starts the build on a fresh pseudo-terminal, mirrors its
// I/O to the caller's terminal, and records the whole session to
// logPath. The caller's terminal runs raw so keystrokes reach the
// build unmodified.
func (b *build) launchPTY(ctx context.Context, runID, logPath string) (int, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return 0, fmt.Errorf("opening pty: %w", err)
	}
	defer ptmx.Close()

	size := ttylog.Size{}
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		size = ttylog.Size{Width: w, Height: h}
		_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
	}
	rec := ttylog.NewRecorder(runID, b.argv, size)
	defer func() {
		if err := rec.Save(logPath); err != nil {
			log.Warn("saving terminal capture", "error", err)
		}
	}()
	b.onSignal = func(sig os.Signal) {
		rec.AddSignal(sig.String())
	}

	pathPtr, argvVec, envVec, err := b.vectors()
	if err != nil {
		tty.Close()
		return 0, err
	}

	// The child gets the pty slave as its stdio and becomes the
	// session leader on it.
	fd := tty.Fd()
	fa := &intercept.FileActions{Files: []uintptr{fd, fd, fd}}
	attr := &intercept.SpawnAttr{
		Dir: b.workdir,
		Sys: &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0},
	}

	lib := intercept.NewLibrary(intercept.DefaultResolver(), nil)
	var pid int
	spawnErr := lib.PosixSpawn(&pid, pathPtr, fa, attr, argvVec, envVec)
	tty.Close() // the child holds its own descriptors now
	if spawnErr != nil {
		return 0, fmt.Errorf("starting %s: %w", b.argv[0], spawnErr)
	}
	if b.onStart != nil {
		b.onStart(pid)
	}

	if oldState, err := term.MakeRaw(int(os.Stdin.Fd())); err == nil {
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	} else {
		log.Debug("enabling raw mode failed", "error", err)
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
				rec.AddResize(w, h)
				_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
			}
		}
	}()

	go func() {
		stdin := ttylog.NewRecordingReader(os.Stdin, rec, ttylog.StreamStdin)
		_, _ = io.Copy(ptmx, stdin)
	}()

	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		stdout := ttylog.NewRecordingWriter(os.Stdout, rec, ttylog.StreamStdout)
		_, _ = io.Copy(stdout, ptmx)
	}()

	code, err := b.reap(ctx, pid)

	// After Stop no more signals arrive, so closing the channel ends
	// the resize watcher.
	signal.Stop(winch)
	close(winch)

	// With the child gone, closing the master unblocks the output
	// copier.
	_ = ptmx.Close()
	<-outDone
	return code, err
}
