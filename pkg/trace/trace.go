// Package trace records run events as JSON lines.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ormasoftchile/clirun/pkg/events"
)

// Writer appends events to a JSONL trace file. It is safe for use from
// several engines sharing one bus.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
	err    error
	sub    *events.Subscription
	bus    *events.Bus
}

// NewWriter creates a trace writer that appends to the given file.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &Writer{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Attach subscribes the writer to every event on bus. The first write
// error is kept and returned by Close; later events are dropped.
func (tw *Writer) Attach(bus *events.Bus) {
	tw.bus = bus
	tw.sub = bus.Subscribe(nil, func(e events.Event) {
		if err := tw.Write(e); err != nil {
			tw.mu.Lock()
			if tw.err == nil {
				tw.err = err
			}
			tw.mu.Unlock()
		}
	})
}

// Write appends one event and flushes it to disk.
func (tw *Writer) Write(e events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.err != nil {
		return tw.err
	}
	if err := tw.enc.Encode(e); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	// log and output lines are flushed with the next boundary event
	if e.Type == events.Log || e.Type == events.Stdout || e.Type == events.Stderr {
		return nil
	}
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close detaches from the bus, flushes and closes the trace file.
func (tw *Writer) Close() error {
	if tw.bus != nil && tw.sub != nil {
		tw.bus.Unsubscribe(tw.sub)
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	ferr := tw.writer.Flush()
	cerr := tw.file.Close()
	switch {
	case tw.err != nil:
		return tw.err
	case ferr != nil:
		return ferr
	}
	return cerr
}

// Read loads every event from a trace file.
func Read(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	var out []events.Event
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var e events.Event
		if err := dec.Decode(&e); err != nil {
			return out, fmt.Errorf("decode trace event %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}
