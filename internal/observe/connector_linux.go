//go:build linux

package observe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/report"
)

// Netlink connector constants for process events
const (
	// Connector multicast group for process events
	_CN_IDX_PROC = 0x1
	_CN_VAL_PROC = 0x1

	// Process event types from linux/cn_proc.h
	_PROC_EVENT_FORK = 0x00000001
	_PROC_EVENT_EXEC = 0x00000002
	_PROC_EVENT_EXIT = 0x80000000

	// Connector subscription operations
	_PROC_CN_MCAST_LISTEN = 1
	_PROC_CN_MCAST_IGNORE = 2

	// NETLINK_CONNECTOR protocol number
	_NETLINK_CONNECTOR = 11
)

// cleanupInterval is how often to check for stale PIDs
const cleanupInterval = 60 * time.Second

// ProcConnectorMonitor watches process events through the Linux proc
// connector. Requires CAP_NET_ADMIN or root privileges.
type ProcConnectorMonitor struct {
	config    Config
	sock      int
	events    chan report.Event
	callbacks []func(report.Event)
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	started   bool
	stopped   bool

	// Watched PIDs (the build's root process and its descendants)
	trackedPIDs map[int]bool
	pidMu       sync.RWMutex
	lastCleanup time.Time

	droppedEvents int64
}

// NewProcConnectorMonitor creates a proc connector monitor.
func NewProcConnectorMonitor(cfg Config) (*ProcConnectorMonitor, error) {
	return &ProcConnectorMonitor{
		config:      cfg,
		events:      make(chan report.Event, 100),
		done:        make(chan struct{}),
		trackedPIDs: make(map[int]bool),
	}, nil
}

func newPlatformMonitor(cfg Config) (Monitor, error) {
	return NewProcConnectorMonitor(cfg)
}

func (m *ProcConnectorMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("monitor already started")
	}

	sock, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM, _NETLINK_CONNECTOR)
	if err != nil {
		return fmt.Errorf("create netlink socket: %w (requires CAP_NET_ADMIN or root)", err)
	}
	m.sock = sock

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: _CN_IDX_PROC,
		Pid:    uint32(syscall.Getpid()),
	}
	if err := syscall.Bind(sock, addr); err != nil {
		syscall.Close(sock)
		return fmt.Errorf("bind netlink socket: %w", err)
	}

	if err := m.subscribe(true); err != nil {
		syscall.Close(sock)
		return fmt.Errorf("subscribe to process events: %w", err)
	}

	if m.config.PID > 0 {
		m.trackedPIDs[m.config.PID] = true
	}

	m.started = true
	m.wg.Add(1)
	go m.readLoop()

	return nil
}

func (m *ProcConnectorMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return nil
	}

	m.stopped = true
	close(m.done)
	_ = m.subscribe(false)
	syscall.Close(m.sock)

	m.wg.Wait()
	close(m.events)
	m.started = false

	if m.droppedEvents > 0 {
		log.Debug("monitor stopped", "dropped_events", m.droppedEvents)
	}

	return nil
}

func (m *ProcConnectorMonitor) Events() <-chan report.Event {
	return m.events
}

func (m *ProcConnectorMonitor) OnEvent(cb func(report.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// subscribe sends a message to subscribe/unsubscribe from process events.
func (m *ProcConnectorMonitor) subscribe(listen bool) error {
	op := uint32(_PROC_CN_MCAST_IGNORE)
	if listen {
		op = uint32(_PROC_CN_MCAST_LISTEN)
	}

	// Build message: nlmsghdr + cn_msg + op
	// Total size: 16 (nlhdr) + 20 (cnhdr) + 4 (op) = 40 bytes
	buf := make([]byte, 40)

	// Netlink header
	binary.LittleEndian.PutUint32(buf[0:], 40)                        // len
	binary.LittleEndian.PutUint16(buf[4:], syscall.NLMSG_DONE)        // type
	binary.LittleEndian.PutUint16(buf[6:], 0)                         // flags
	binary.LittleEndian.PutUint32(buf[8:], 1)                         // seq
	binary.LittleEndian.PutUint32(buf[12:], uint32(syscall.Getpid())) // pid

	// Connector header
	binary.LittleEndian.PutUint32(buf[16:], _CN_IDX_PROC) // id.idx
	binary.LittleEndian.PutUint32(buf[20:], _CN_VAL_PROC) // id.val
	binary.LittleEndian.PutUint32(buf[24:], 1)            // seq
	binary.LittleEndian.PutUint32(buf[28:], 0)            // ack
	binary.LittleEndian.PutUint16(buf[32:], 4)            // len (op size)
	binary.LittleEndian.PutUint16(buf[34:], 0)            // flags

	// Operation
	binary.LittleEndian.PutUint32(buf[36:], op)

	// Send to kernel (pid=0)
	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: _CN_IDX_PROC,
		Pid:    0,
	}
	return syscall.Sendto(m.sock, buf, 0, addr)
}

func (m *ProcConnectorMonitor) readLoop() {
	defer m.wg.Done()

	buf := make([]byte, 4096)
	consecutiveErrors := 0
	const maxConsecutiveErrors = 10

	for {
		select {
		case <-m.done:
			return
		default:
		}

		// Periodically cleanup stale PIDs (in case EXIT events were missed)
		if time.Since(m.lastCleanup) > cleanupInterval {
			m.cleanupStalePIDs()
		}

		// Set read timeout to periodically check done channel
		tv := syscall.Timeval{Sec: 1, Usec: 0}
		if err := syscall.SetsockoptTimeval(m.sock, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			log.Debug("failed to set socket timeout", "error", err)
		}

		n, _, err := syscall.Recvfrom(m.sock, buf, 0)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				consecutiveErrors = 0
				continue
			}
			select {
			case <-m.done:
				return
			default:
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveErrors {
					log.Error("too many consecutive errors in monitor read loop, stopping",
						"error", err, "count", consecutiveErrors)
					return
				}
				log.Debug("error reading from netlink socket", "error", err)
				continue
			}
		}
		consecutiveErrors = 0

		if n >= 52 { // Minimum size: nlhdr(16) + cnhdr(20) + proc_event(16)
			m.parseMessage(buf[:n])
		}
	}
}

func (m *ProcConnectorMonitor) parseMessage(buf []byte) {
	// Skip netlink header (16) and connector header (20)
	offset := 36

	if len(buf) < offset+16 {
		return
	}

	// Parse process event header
	what := binary.LittleEndian.Uint32(buf[offset:])
	offset += 16 // Skip: what(4) + cpu(4) + timestamp(8)

	switch what {
	case _PROC_EVENT_EXEC:
		if len(buf) < offset+8 {
			return
		}
		pid := int(binary.LittleEndian.Uint32(buf[offset:]))

		if m.shouldTrack(pid) {
			if ev := m.buildExecEvent(pid); ev != nil {
				m.emitEvent(*ev)
			}
		}

	case _PROC_EVENT_FORK:
		if len(buf) < offset+16 {
			return
		}
		parentPid := int(binary.LittleEndian.Uint32(buf[offset:]))
		childPid := int(binary.LittleEndian.Uint32(buf[offset+8:]))

		// Watch children of watched processes
		m.pidMu.RLock()
		tracked := m.trackedPIDs[parentPid]
		m.pidMu.RUnlock()
		if tracked {
			m.pidMu.Lock()
			m.trackedPIDs[childPid] = true
			m.pidMu.Unlock()
		}

	case _PROC_EVENT_EXIT:
		if len(buf) < offset+16 {
			return
		}
		pid := int(binary.LittleEndian.Uint32(buf[offset:]))
		status := binary.LittleEndian.Uint32(buf[offset+8:])

		if m.shouldTrack(pid) {
			code := decodeExitStatus(status)
			m.emitEvent(report.Event{
				Timestamp: time.Now(),
				Kind:      report.KindExit,
				PID:       pid,
				ExitCode:  &code,
			})
		}

		m.pidMu.Lock()
		delete(m.trackedPIDs, pid)
		m.pidMu.Unlock()
	}
}

// decodeExitStatus turns the kernel's raw exit_code (wait status
// encoding) into a shell-style exit code: the status byte for normal
// exits, 128+signal for fatal signals.
func decodeExitStatus(raw uint32) int {
	ws := syscall.WaitStatus(raw)
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return int(raw)
	}
}

func (m *ProcConnectorMonitor) shouldTrack(pid int) bool {
	// If no root configured, watch everything
	if m.config.PID == 0 {
		return true
	}

	m.pidMu.RLock()
	tracked := m.trackedPIDs[pid]
	m.pidMu.RUnlock()
	return tracked
}

// cleanupStalePIDs removes PIDs that no longer exist in /proc. This
// handles cases where EXIT events are missed (e.g., buffer overflow).
func (m *ProcConnectorMonitor) cleanupStalePIDs() {
	m.pidMu.Lock()
	defer m.pidMu.Unlock()

	for pid := range m.trackedPIDs {
		procPath := fmt.Sprintf("/proc/%d", pid)
		if _, err := os.Stat(procPath); os.IsNotExist(err) {
			delete(m.trackedPIDs, pid)
		}
	}
	m.lastCleanup = time.Now()
}

func (m *ProcConnectorMonitor) buildExecEvent(pid int) *report.Event {
	procPath := fmt.Sprintf("/proc/%d", pid)

	// Read cmdline (null-separated)
	cmdline, err := os.ReadFile(filepath.Join(procPath, "cmdline"))
	if err != nil {
		return nil
	}

	parts := strings.Split(string(cmdline), "\x00")
	if len(parts) == 0 || parts[0] == "" {
		return nil
	}
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	// Read cwd
	cwd, _ := os.Readlink(filepath.Join(procPath, "cwd"))

	// Read ppid from status
	ppid := 0
	if f, err := os.Open(filepath.Join(procPath, "status")); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "PPid:") {
				fields := strings.Fields(scanner.Text())
				if len(fields) >= 2 {
					ppid, _ = strconv.Atoi(fields[1])
				}
				break
			}
		}
		f.Close()
	}

	return &report.Event{
		Timestamp:  time.Now(),
		Kind:       report.KindExec,
		PID:        pid,
		PPID:       ppid,
		Command:    parts[0],
		Args:       parts,
		WorkingDir: cwd,
	}
}

func (m *ProcConnectorMonitor) emitEvent(ev report.Event) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}

	// Copy callbacks under lock
	cbs := make([]func(report.Event), len(m.callbacks))
	copy(cbs, m.callbacks)

	// Send to channel (non-blocking) while holding lock to prevent race with Stop()
	select {
	case m.events <- ev:
	default:
		m.droppedEvents++
	}
	m.mu.Unlock()

	// Invoke callbacks outside lock to prevent deadlock
	for _, cb := range cbs {
		cb(ev)
	}
}

// Compile-time interface check
var _ Monitor = (*ProcConnectorMonitor)(nil)
