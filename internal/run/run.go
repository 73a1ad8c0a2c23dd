// Package run drives a traced build from start to finish. It prepares
// the run directory, brings up the event collector, arranges
// interception (shim farm or kernel-side monitor), launches the build
// command, and records its outcome.
package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/earshot-dev/earshot/internal/collector"
	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/id"
	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/internal/report"
	"github.com/earshot-dev/earshot/internal/session"
	"github.com/earshot-dev/earshot/internal/shimdir"
	"github.com/earshot-dev/earshot/internal/storage"
)

// Options configures a run.
type Options struct {
	// Config supplies the intercepted command set and defaults. Nil
	// uses the built-in configuration.
	Config *config.Config

	// BaseDir overrides where the run directory is created.
	BaseDir string

	// Workdir is the build's working directory. Empty means the
	// current directory.
	Workdir string

	// Passive watches the process tree from the kernel side instead of
	// rewriting the build's environment. Needs elevated privileges.
	Passive bool

	// PTY runs the build under a pseudo-terminal and records the
	// session. Honored only when stdin is a terminal.
	PTY bool

	// Verbose is passed through to the interception session, making
	// shims and relays narrate on stderr.
	Verbose bool

	// ShimPath and RelayPath override discovery of the helper
	// binaries, which normally live next to the earshot executable.
	ShimPath  string
	RelayPath string
}

// Summary is the outcome of a finished run.
type Summary struct {
	RunID    string
	ExitCode int
	Events   uint64
	Duration time.Duration
}

// Run executes argv as a traced build and blocks until it finishes.
// The summary carries the build's own exit code; the error is reserved
// for failures of the tracing machinery itself.
func Run(ctx context.Context, argv []string, opts Options) (*Summary, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = cfg.BaseDir
	}
	if baseDir == "" {
		baseDir = storage.DefaultBaseDir()
	}
	workdir := opts.Workdir
	if workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		workdir = wd
	}

	runID := id.Generate("run")
	log.SetRunID(runID)

	store, err := storage.NewRunStore(baseDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	mode := storage.ModeShim
	if opts.Passive {
		mode = storage.ModePassive
	}
	usePTY := opts.PTY && isatty.IsTerminal(os.Stdin.Fd())
	if opts.PTY && !usePTY {
		log.Debug("stdin is not a terminal, running without pty")
	}

	meta := storage.Metadata{
		Command:    argv,
		WorkingDir: workdir,
		Mode:       mode,
		PTY:        usePTY,
		StartedAt:  time.Now(),
	}
	if err := store.SaveMetadata(meta); err != nil {
		return nil, err
	}
	fail := func(err error) (*Summary, error) {
		meta.StoppedAt = time.Now()
		meta.Error = err.Error()
		if saveErr := store.SaveMetadata(meta); saveErr != nil {
			log.Warn("saving metadata", "error", saveErr)
		}
		return nil, err
	}

	events, err := collector.OpenStore(store.EventsDBPath())
	if err != nil {
		return fail(fmt.Errorf("opening event store: %w", err))
	}
	defer events.Close()

	b := &build{argv: argv, workdir: workdir}
	if b.path, err = resolveCommand(argv[0]); err != nil {
		return fail(err)
	}

	var rootPID int
	if opts.Passive {
		monitor, err := observe.New(observe.Config{PID: os.Getpid()})
		if err != nil {
			return fail(fmt.Errorf("creating process monitor: %w", err))
		}
		monitor.OnEvent(func(ev report.Event) {
			if _, err := events.Append(ev); err != nil {
				log.Warn("storing event", "error", err)
			}
		})
		if err := monitor.Start(); err != nil {
			return fail(fmt.Errorf("starting process monitor: %w", err))
		}
		defer monitor.Stop()

		b.env = os.Environ()
		b.onStart = func(pid int) {
			rootPID = pid
			log.Debug("build started", "pid", pid, "mode", mode)
		}
	} else {
		server := collector.NewServer(events)
		if err := server.StartUnix(store.SocketPath()); err != nil {
			return fail(fmt.Errorf("starting collector: %w", err))
		}
		defer server.Stop()

		shimPath, err := helperPath("earshot-shim", opts.ShimPath)
		if err != nil {
			return fail(err)
		}
		relayPath, err := helperPath("earshot-relay", opts.RelayPath)
		if err != nil {
			return fail(err)
		}
		if err := shimdir.Materialize(store.ShimDir(), cfg.Commands, shimPath); err != nil {
			return fail(fmt.Errorf("building shim farm: %w", err))
		}

		origPath := os.Getenv("PATH")
		state := &session.State{
			Destination: store.SocketPath(),
			Relay:       relayPath,
			SearchPath:  origPath,
			Verbose:     opts.Verbose,
		}
		b.env = tracedEnviron(os.Environ(), shimdir.PrependPath(store.ShimDir(), origPath), state)
		b.onStart = func(pid int) {
			rootPID = pid
			log.Debug("build started", "pid", pid, "mode", mode)
			_, err := events.Append(report.Event{
				Kind:       report.KindExec,
				PID:        pid,
				PPID:       os.Getpid(),
				Command:    b.path,
				Args:       argv,
				WorkingDir: workdir,
			})
			if err != nil {
				log.Warn("storing launch event", "error", err)
			}
		}
	}

	var code int
	if usePTY {
		code, err = b.launchPTY(ctx, runID, store.TTYLogPath())
	} else {
		code, err = b.launchPlain(ctx)
	}
	if err != nil {
		return fail(err)
	}

	if opts.Passive {
		// Give the connector a beat to deliver the build's exit event
		// before the deferred Stop tears it down.
		time.Sleep(200 * time.Millisecond)
	} else {
		if _, err := events.Append(report.Event{Kind: report.KindExit, PID: rootPID, ExitCode: &code}); err != nil {
			log.Warn("storing exit event", "error", err)
		}
	}

	meta.StoppedAt = time.Now()
	meta.ExitCode = &code
	if err := store.SaveMetadata(meta); err != nil {
		log.Warn("saving metadata", "error", err)
	}

	count, err := events.Count()
	if err != nil {
		log.Warn("counting events", "error", err)
	}
	log.Info("run finished", "exit_code", code, "events", count)
	return &Summary{
		RunID:    runID,
		ExitCode: code,
		Events:   count,
		Duration: meta.StoppedAt.Sub(meta.StartedAt),
	}, nil
}
