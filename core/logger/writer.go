package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter moves sink I/O off the logging goroutine. Lines reach the sinks in
// order; the buffer is flushed whenever the queue runs empty.
type asyncWriter struct {
	lines chan []byte
	flush chan chan error
	done  chan struct{}
	out   *bufio.Writer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		lines: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
		out:   bufio.NewWriterSize(io.MultiWriter(sinks...), bufSize),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.out.Flush())
				return
			}
			w.record(w.write(line))
		case ack := <-w.flush:
			for len(w.lines) > 0 {
				w.record(w.write(<-w.lines))
			}
			ack <- w.out.Flush()
		}
	}
}

func (w *asyncWriter) write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	if _, err := w.out.Write(line); err != nil {
		return err
	}
	if len(w.lines) == 0 {
		return w.out.Flush()
	}
	return nil
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	if err := w.Err(); err != nil {
		return err
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return w.Err()
	}
	ack := make(chan error, 1)
	w.flush <- ack
	if err := <-ack; err != nil {
		return err
	}
	return w.Err()
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	<-w.done
	return w.Err()
}

// Err returns the first write error seen by the writer.
func (w *asyncWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}
