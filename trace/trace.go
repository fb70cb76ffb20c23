// Package trace provides a decorator for io.ReadWriter that logs all reads
// and writes.
package trace

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Trace is a trace log on an io.ReadWriter.
// All reads and writes are written to the logger.
type Trace struct {
	rw      io.ReadWriter
	l       *log.Logger
	wfmt    string
	rfmt    string
	maxDump int
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the io.ReadWriter. Without WithLogger, it logs
// to a logger on os.Stderr.
func New(rw io.ReadWriter, opts ...Option) *Trace {
	t := &Trace{
		rw:      rw,
		l:       log.New(os.Stderr, "", log.LstdFlags),
		wfmt:    "w: %s",
		rfmt:    "r: %s",
		maxDump: 256,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithLogger sets the logger the trace writes to.
func WithLogger(l *log.Logger) Option {
	return func(t *Trace) {
		t.l = l
	}
}

// WithReadFormat sets the format used for read logs.
func WithReadFormat(format string) Option {
	return func(t *Trace) {
		t.rfmt = format
	}
}

// WithWriteFormat sets the format used for write logs.
func WithWriteFormat(format string) Option {
	return func(t *Trace) {
		t.wfmt = format
	}
}

// WithMaxDump caps the number of bytes logged per Read or Write call before
// the remainder is elided. A bulk +IPD transfer or CIPSEND payload can run
// to 1024 bytes; logging all of it on every call is rarely what anyone
// wants. n <= 0 disables the cap.
func WithMaxDump(n int) Option {
	return func(t *Trace) {
		t.maxDump = n
	}
}

func (t *Trace) dump(p []byte) interface{} {
	if t.maxDump <= 0 || len(p) <= t.maxDump {
		return p
	}
	return fmt.Sprintf("%s...(%d more bytes)", p[:t.maxDump], len(p)-t.maxDump)
}

func (t *Trace) Read(p []byte) (n int, err error) {
	n, err = t.rw.Read(p)
	if n > 0 {
		t.l.Printf(t.rfmt, t.dump(p[:n]))
	}
	return n, err
}

func (t *Trace) Write(p []byte) (n int, err error) {
	n, err = t.rw.Write(p)
	if n > 0 {
		t.l.Printf(t.wfmt, t.dump(p[:n]))
	}
	return n, err
}
