package log

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/p1203/encoding/json"
)

// Formatter turns an event into a single line of output including the
// trailing newline.
type Formatter interface {
	Format(e *Event) []byte
}

// FormatterFunc adapts a function to a Formatter.
type FormatterFunc func(e *Event) []byte

func (f FormatterFunc) Format(e *Event) []byte {
	return f(e)
}

// JSONFormatter writes an event as a JSON object. The fields of the event are
// on the same level as "ts", "level", "component", "caller" and "message" and
// are overwritten by them.
var JSONFormatter Formatter = FormatterFunc(formatJSON)

func formatJSON(e *Event) []byte {
	obj := make(Fields, len(e.Data)+5)

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}

		obj[k] = v
	}

	obj["ts"] = e.Time
	obj["level"] = e.Level.String()
	obj["component"] = e.Component

	if e.Caller != "" {
		obj["caller"] = e.Caller
	}

	if e.Message != "" {
		obj["message"] = e.Message
	}

	data, err := json.Marshal(obj)
	if err != nil {
		data, _ = json.Marshal(Fields{
			"ts":      e.Time,
			"level":   Lerror.String(),
			"message": fmt.Sprintf("unable to encode log event: %s", err),
		})
	}

	return append(data, '\n')
}

const (
	ansiReset   = "\033[0m"
	ansiGray    = "\033[90m"
	ansiRed     = "\033[31m"
	ansiYellow  = "\033[33m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
)

var levelColors = map[Level]string{
	Lerror: ansiRed,
	Lwarn:  ansiYellow,
	Linfo:  ansiBlue,
	Ldebug: ansiMagenta,
}

// ConsoleFormatter writes an event as a line of key=value pairs. The fields
// of the event follow in the order of their keys.
type ConsoleFormatter struct {
	Color bool
}

func (f ConsoleFormatter) Format(e *Event) []byte {
	b := strings.Builder{}

	level := e.Level.String()
	if f.Color {
		level = levelColors[e.Level] + level + ansiReset
	}

	f.pair(&b, "ts", e.Time.UTC().Format(time.RFC3339))
	f.pair(&b, "level", level)
	f.pair(&b, "component", strconv.Quote(e.Component))

	if e.Message != "" {
		f.pair(&b, "msg", strconv.Quote(e.Message))
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		f.pair(&b, k, consoleValue(e.Data[k]))
	}

	b.WriteByte('\n')

	return []byte(b.String())
}

func (f ConsoleFormatter) pair(b *strings.Builder, key, value string) {
	if b.Len() != 0 {
		b.WriteByte(' ')
	}

	if !f.Color {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		return
	}

	b.WriteString(ansiGray + key + "=" + ansiReset)

	if key == "error" {
		value = ansiRed + value + ansiReset
	}

	b.WriteString(value)
}

func consoleValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case error:
		return strconv.Quote(val.Error())
	case fmt.Stringer:
		return strconv.Quote(val.String())
	}

	data, err := json.Marshal(v)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(data)
}
