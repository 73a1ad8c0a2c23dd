// Package ttylog captures a run's terminal I/O with timing so the
// console session can be summarized and replayed afterwards.
package ttylog

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Log is one run's terminal capture.
type Log struct {
	Meta   Meta    `json:"meta"`
	Events []Event `json:"events"`
}

// Meta describes the environment and context of a capture.
type Meta struct {
	RunID       string            `json:"run_id"`
	Command     []string          `json:"command"`
	StartedAt   time.Time         `json:"started_at"`
	Environment map[string]string `json:"environment"` // TERM, LANG, COLUMNS, LINES, etc.
	InitialSize Size              `json:"initial_size"`
}

// Size represents terminal dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Event represents a single I/O or control event.
type Event struct {
	TimestampNano int64  `json:"ts"`               // nanoseconds since capture start
	Stream        Stream `json:"stream"`           // "stdout", "stdin", "resize", "signal"
	Data          []byte `json:"data,omitempty"`   // raw bytes (base64 encoded in JSON)
	Size          *Size  `json:"size,omitempty"`   // for resize events
	Signal        string `json:"signal,omitempty"` // for signal events (e.g., "SIGWINCH")
}

// Stream categorizes capture events.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStdin  Stream = "stdin"
	StreamResize Stream = "resize"
	StreamSignal Stream = "signal"
)

// Load reads a capture from a JSON file.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Save writes a capture to a JSON file.
func (l *Log) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Duration returns the time span covered by the capture.
func (l *Log) Duration() time.Duration {
	if len(l.Events) == 0 {
		return 0
	}
	return time.Duration(l.Events[len(l.Events)-1].TimestampNano)
}

// Replay writes the capture's output stream to w, pacing writes by
// the recorded gaps divided by speed. A speed of 0 or less replays
// without delay. Input events are skipped; the terminal's echo already
// put them on the output stream.
func (l *Log) Replay(w io.Writer, speed float64) error {
	var last int64
	for _, ev := range l.Events {
		if speed > 0 && ev.TimestampNano > last {
			time.Sleep(time.Duration(float64(ev.TimestampNano-last) / speed))
		}
		last = ev.TimestampNano

		if ev.Stream != StreamStdout {
			continue
		}
		if _, err := w.Write(ev.Data); err != nil {
			return err
		}
	}
	return nil
}
