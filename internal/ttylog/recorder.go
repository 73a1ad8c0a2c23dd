package ttylog

import (
	"io"
	"os"
	"sync"
	"time"
)

// Recorder accumulates capture events for one run.
type Recorder struct {
	log       *Log
	startTime time.Time
	mu        sync.Mutex
}

// NewRecorder creates a recorder with the given metadata.
func NewRecorder(runID string, command []string, initialSize Size) *Recorder {
	now := time.Now()
	return &Recorder{
		log: &Log{
			Meta: Meta{
				RunID:       runID,
				Command:     command,
				StartedAt:   now,
				Environment: captureEnv(),
				InitialSize: initialSize,
			},
			Events: make([]Event, 0),
		},
		startTime: now,
	}
}

// AddData records an I/O event on the given stream.
func (r *Recorder) AddData(stream Stream, data []byte) {
	if len(data) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy data to avoid issues with reused buffers
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	r.log.Events = append(r.log.Events, Event{
		TimestampNano: time.Since(r.startTime).Nanoseconds(),
		Stream:        stream,
		Data:          dataCopy,
	})
}

// AddResize records a terminal resize event.
func (r *Recorder) AddResize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Events = append(r.log.Events, Event{
		TimestampNano: time.Since(r.startTime).Nanoseconds(),
		Stream:        StreamResize,
		Size:          &Size{Width: width, Height: height},
	})
}

// AddSignal records a signal event.
func (r *Recorder) AddSignal(sig string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Events = append(r.log.Events, Event{
		TimestampNano: time.Since(r.startTime).Nanoseconds(),
		Stream:        StreamSignal,
		Signal:        sig,
	})
}

// Save writes the capture to a file.
func (r *Recorder) Save(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Save(path)
}

// RecordingWriter wraps an io.Writer and records all writes.
type RecordingWriter struct {
	w        io.Writer
	recorder *Recorder
	stream   Stream
}

// NewRecordingWriter creates a writer that records to the capture.
func NewRecordingWriter(w io.Writer, recorder *Recorder, stream Stream) io.Writer {
	return &RecordingWriter{
		w:        w,
		recorder: recorder,
		stream:   stream,
	}
}

func (rw *RecordingWriter) Write(p []byte) (n int, err error) {
	rw.recorder.AddData(rw.stream, p)
	return rw.w.Write(p)
}

// RecordingReader wraps an io.Reader and records all reads.
type RecordingReader struct {
	r        io.Reader
	recorder *Recorder
	stream   Stream
}

// NewRecordingReader creates a reader that records to the capture.
func NewRecordingReader(r io.Reader, recorder *Recorder, stream Stream) io.Reader {
	return &RecordingReader{
		r:        r,
		recorder: recorder,
		stream:   stream,
	}
}

func (rr *RecordingReader) Read(p []byte) (n int, err error) {
	n, err = rr.r.Read(p)
	if n > 0 {
		rr.recorder.AddData(rr.stream, p[:n])
	}
	return n, err
}

// captureEnv extracts the terminal-relevant environment for metadata.
func captureEnv() map[string]string {
	env := make(map[string]string)
	keys := []string{"TERM", "LANG", "LC_ALL", "COLUMNS", "LINES", "COLORTERM"}
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			env[key] = val
		}
	}
	return env
}
