package observe

import (
	"sync"

	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/report"
)

// StubMonitor is a no-op monitor for platforms without native process
// event support. Emit injects events by hand, which tests use.
type StubMonitor struct {
	mu        sync.Mutex
	events    chan report.Event
	callbacks []func(report.Event)
	stopped   bool
}

// NewStubMonitor creates a stub monitor that emits nothing on its own.
func NewStubMonitor(cfg Config) *StubMonitor {
	return &StubMonitor{
		events: make(chan report.Event, 100),
	}
}

func (m *StubMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	log.Debug("stub monitor started (no-op)")
	return nil
}

func (m *StubMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.events)
	return nil
}

func (m *StubMonitor) Events() <-chan report.Event {
	return m.events
}

func (m *StubMonitor) OnEvent(cb func(report.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Emit injects an event as if the kernel had reported it.
func (m *StubMonitor) Emit(ev report.Event) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	cbs := make([]func(report.Event), len(m.callbacks))
	copy(cbs, m.callbacks)
	select {
	case m.events <- ev:
	default:
	}
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}

// Compile-time check
var _ Monitor = (*StubMonitor)(nil)
