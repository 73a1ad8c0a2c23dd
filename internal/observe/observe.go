// Package observe watches a process tree from the kernel side and
// emits the same events the exec shims report. It backs passive runs,
// where the build's environment is left untouched.
package observe

import "github.com/earshot-dev/earshot/internal/report"

// Monitor captures process executions and exits.
type Monitor interface {
	// Start begins monitoring.
	Start() error

	// Stop ends monitoring.
	Stop() error

	// Events returns a channel of captured events.
	Events() <-chan report.Event

	// OnEvent registers a callback invoked for each captured event.
	OnEvent(func(report.Event))
}

// Config configures the monitor.
type Config struct {
	// PID roots the watched process tree. Zero watches everything.
	PID int
}

// New creates a platform-appropriate monitor. On Linux it reads the
// kernel's proc connector; elsewhere it returns a stub that never
// emits.
func New(cfg Config) (Monitor, error) {
	return newPlatformMonitor(cfg)
}
