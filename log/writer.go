package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Writer receives the events of a Logger.
type Writer interface {
	Write(e *Event) error
	Close()
}

// accepts reports whether an event with the given level passes a writer with
// the maximum level max.
func accepts(max, level Level) bool {
	return level != Lsilent && level <= max
}

// streamWriter formats events and writes them to an io.Writer. It is safe
// for concurrent use.
type streamWriter struct {
	lock      sync.Mutex
	out       io.Writer
	max       Level
	formatter Formatter
}

// NewStreamWriter returns a Writer that writes the events up to the level max
// with the formatter to w.
func NewStreamWriter(w io.Writer, max Level, formatter Formatter) Writer {
	return &streamWriter{
		out:       w,
		max:       max,
		formatter: formatter,
	}
}

// NewJSONWriter returns a Writer that writes one JSON object per event.
func NewJSONWriter(w io.Writer, max Level) Writer {
	return NewStreamWriter(w, max, JSONFormatter)
}

// NewConsoleWriter returns a Writer that writes human readable lines. Colors
// are only used if requested and w is a terminal.
func NewConsoleWriter(w io.Writer, max Level, useColor bool) Writer {
	return NewStreamWriter(w, max, ConsoleFormatter{
		Color: useColor && isTerminal(w),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (w *streamWriter) Write(e *Event) error {
	if !accepts(w.max, e.Level) {
		return nil
	}

	line := w.formatter.Format(e)

	w.lock.Lock()
	defer w.lock.Unlock()

	_, err := w.out.Write(line)

	return err
}

func (w *streamWriter) Close() {}

type topicWriter struct {
	next   Writer
	topics map[string]bool
}

// NewTopicWriter returns a Writer that only passes the events of the given
// components to next. With no topics every event is passed. Topics are
// case-insensitive.
func NewTopicWriter(next Writer, topics []string) Writer {
	w := &topicWriter{
		next:   next,
		topics: map[string]bool{},
	}

	for _, t := range topics {
		w.topics[strings.ToLower(t)] = true
	}

	return w
}

func (w *topicWriter) Write(e *Event) error {
	if len(w.topics) != 0 && !w.topics[strings.ToLower(e.Component)] {
		return nil
	}

	return w.next.Write(e)
}

func (w *topicWriter) Close() {
	w.next.Close()
}

// BufferWriter is a Writer that keeps the latest events in memory.
type BufferWriter interface {
	Writer

	// Events returns a copy of the kept events, the oldest first.
	Events() []*Event
}

type bufferWriter struct {
	lock   sync.RWMutex
	events []*Event
	size   int
	max    Level
}

// NewBufferWriter returns a BufferWriter that keeps at most size events up to
// the level max.
func NewBufferWriter(max Level, size int) BufferWriter {
	return &bufferWriter{
		size: size,
		max:  max,
	}
}

func (w *bufferWriter) Write(e *Event) error {
	if !accepts(w.max, e.Level) || w.size <= 0 {
		return nil
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	w.events = append(w.events, e.clone())
	if n := len(w.events) - w.size; n > 0 {
		w.events = w.events[n:]
	}

	return nil
}

func (w *bufferWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.events = nil
}

func (w *bufferWriter) Events() []*Event {
	w.lock.RLock()
	defer w.lock.RUnlock()

	events := make([]*Event, len(w.events))
	for i, e := range w.events {
		events[i] = e.clone()
	}

	return events
}
