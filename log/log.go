// Package log provides the logging facility for the extractor. A Logger writes
// structured events with one of four levels to a Writer. Loggers are immutable,
// every With* call returns a new Logger.
package log

import (
	"fmt"
	"maps"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datarhei/p1203/encoding/json"
)

// Level is the severity of an event.
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

func (level Level) String() string {
	switch level {
	case Lsilent:
		return "SILENT"
	case Lerror:
		return "ERROR"
	case Lwarn:
		return "WARN"
	case Linfo:
		return "INFO"
	case Ldebug:
		return "DEBUG"
	}

	return fmt.Sprintf("LEVEL(%d)", uint(level))
}

func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// ParseLevel returns the Level for the given name. The names are
// case-insensitive.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return Lsilent, nil
	case "error":
		return Lerror, nil
	case "warn", "warning":
		return Lwarn, nil
	case "info":
		return Linfo, nil
	case "debug":
		return Ldebug, nil
	}

	return Lsilent, fmt.Errorf("unknown log level '%s'", name)
}

type Fields map[string]interface{}

// Logger writes events to its output. An event is written if the output accepts
// its level. The level of an event is chosen with Debug, Info, Warn, or Error
// before calling Log. Without a level, the event is written as debug.
type Logger interface {
	// WithOutput returns a Logger that writes to w.
	WithOutput(w Writer) Logger

	// WithComponent returns a Logger for the named part of the program.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	// WithError adds the error as the field "error". A nil error is ignored.
	WithError(err error) Logger

	// Log writes the event. The message is formatted according to fmt.Printf
	// if there are any args.
	Log(format string, args ...interface{})

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Write implements io.Writer. Every write is logged as one event with
	// the current level.
	Write(p []byte) (int, error)

	// Close closes the output.
	Close()
}

// Event is a single record as it is handed to a Writer.
type Event struct {
	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string
	Data      Fields
}

func (e *Event) clone() *Event {
	c := *e
	c.Data = maps.Clone(e.Data)

	return &c
}

type entry struct {
	output     Writer
	component  string
	level      Level
	fields     Fields
	modulePath string
}

// New returns a Logger for the component without an output. Use WithOutput to
// add one.
func New(component string) Logger {
	e := &entry{
		component: component,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		e.modulePath = info.Path
	}

	return e
}

func (e *entry) with() *entry {
	c := *e
	c.fields = maps.Clone(e.fields)

	return &c
}

func (e *entry) WithOutput(w Writer) Logger {
	c := e.with()
	c.output = w

	return c
}

func (e *entry) WithComponent(component string) Logger {
	c := e.with()
	c.component = component

	return c
}

func (e *entry) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{key: value})
}

func (e *entry) WithFields(f Fields) Logger {
	c := e.with()

	if c.fields == nil {
		c.fields = make(Fields, len(f))
	}

	for k, v := range f {
		c.fields[k] = v
	}

	return c
}

func (e *entry) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithField("error", err)
}

func (e *entry) withLevel(level Level) Logger {
	c := e.with()
	c.level = level

	return c
}

func (e *entry) Debug() Logger { return e.withLevel(Ldebug) }
func (e *entry) Info() Logger  { return e.withLevel(Linfo) }
func (e *entry) Warn() Logger  { return e.withLevel(Lwarn) }
func (e *entry) Error() Logger { return e.withLevel(Lerror) }

func (e *entry) Log(format string, args ...interface{}) {
	e.log(2, format, args...)
}

func (e *entry) Write(p []byte) (int, error) {
	e.log(2, "%s", strings.TrimSpace(string(p)))

	return len(p), nil
}

func (e *entry) log(skip int, format string, args ...interface{}) {
	if e.output == nil {
		return
	}

	event := &Event{
		Time:      time.Now(),
		Level:     e.level,
		Component: e.component,
		Data:      maps.Clone(e.fields),
	}

	if event.Data == nil {
		event.Data = Fields{}
	}

	if event.Level == Lsilent {
		event.Level = Ldebug
	}

	if _, file, line, ok := runtime.Caller(skip); ok {
		event.Caller = fmt.Sprintf("%s:%d", strings.TrimPrefix(file, e.modulePath+"/"), line)
	}

	if len(args) == 0 {
		event.Message = format
	} else {
		event.Message = fmt.Sprintf(format, args...)
	}

	e.output.Write(event)
}

func (e *entry) Close() {
	if e.output == nil {
		return
	}

	e.output.Close()
}
