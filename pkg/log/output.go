package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes entries to stdout, and Warn and above to stderr.
// Writes are serialized so entries from different goroutines never
// interleave mid-line.
type ConsoleOutput struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

// NewConsoleOutput returns a ConsoleOutput bound to the process streams.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{stdout: os.Stdout, stderr: os.Stderr}
}

// Write implements Output.
func (c *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.stdout
	if entry.Level >= WarnLevel {
		w = c.stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output; the process streams are not ours to close.
func (c *ConsoleOutput) Close() error { return nil }

// WriterOutput adapts any io.Writer into an Output; tests capture log
// lines with a bytes.Buffer behind it.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput wraps w.
func NewWriterOutput(w io.Writer) *WriterOutput { return &WriterOutput{w: w} }

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(formatted)
	return err
}

// Close implements Output.
func (o *WriterOutput) Close() error { return nil }
