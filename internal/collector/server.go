// Package collector receives events from intercepted processes over a
// unix socket and persists them for the supervising run.
package collector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/report"
)

// Server accepts reporter connections and appends their events to the
// store.
type Server struct {
	store    *Store
	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server writing to the given store.
func NewServer(store *Store) *Server {
	return &Server{
		store: store,
		done:  make(chan struct{}),
	}
}

// StartUnix starts listening on a unix socket. The socket is made
// write-only so intercepted processes can report but never read the
// run's history back.
func (s *Server) StartUnix(socketPath string) error {
	// Remove a socket file left behind by an earlier run
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0222); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	// Link command lines can run long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev report.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Kind == "" {
			continue
		}

		if _, err := s.store.Append(ev); err != nil {
			log.Warn("storing event", "kind", ev.Kind, "pid", ev.PID, "error", err)
			continue
		}
	}
}

// Stop stops the server and waits for open connections to drain.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}
