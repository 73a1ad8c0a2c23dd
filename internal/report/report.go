// Package report defines the event record intercepted processes send
// to the collector, and the client that carries it there.
package report

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Kind identifies what an event records.
type Kind string

const (
	KindExec Kind = "exec"
	KindExit Kind = "exit"
)

// Event is one observation of the build's process tree.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	Kind       Kind      `json:"kind"`
	PID        int       `json:"pid"`
	PPID       int       `json:"ppid,omitempty"`
	Command    string    `json:"command,omitempty"`
	Args       []string  `json:"args,omitempty"`
	WorkingDir string    `json:"working_dir,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
}

// DialTimeout bounds how long a reporter waits for the collector. The
// relay sits on the exec path of every intercepted command; a dead
// collector must not hang the build.
const DialTimeout = 2 * time.Second

// Client sends events to a collector socket as JSON lines.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
}

// Dial connects to the collector's unix socket.
func Dial(socket string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socket, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing collector: %w", err)
	}
	return &Client{conn: conn, enc: json.NewEncoder(conn)}, nil
}

// Send writes one event. A zero timestamp is stamped with the current
// time.
func (c *Client) Send(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := c.enc.Encode(ev); err != nil {
		return fmt.Errorf("sending event: %w", err)
	}
	return nil
}

// Close closes the connection to the collector.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Post dials the collector, sends a single event, and closes. Suited
// to the relay, which reports exactly once before chaining to the real
// command.
func Post(socket string, ev Event) error {
	c, err := Dial(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Send(ev)
}
