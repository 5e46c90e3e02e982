// Package qp parses the per-frame quantization trace written by ffmpeg_debug_qp.
//
// The trace is a log of the decoder where each frame starts with a line like
//
//	[h264 @ 0x7fadf2008000] New frame, type: I
//
// followed by lines with the QP values of the macroblocks, two digits per value
//
//	[h264 @ 0x7fadf2008000] 2525252626262525
//
// and a line with the size of the packet of the frame.
package qp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/datarhei/p1203/process"
)

// Frame is a frame from the trace.
type Frame struct {
	Type string // I, P, or B
	Size int64  // bytes
	QP   []int
}

// MalformedTraceError is returned if the trace contains a frame with an unknown
// type or data that doesn't belong to any frame.
type MalformedTraceError struct {
	Path    string
	Line    int
	Message string
}

func (e *MalformedTraceError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("malformed trace at line %d: %s", e.Line, e.Message)
	}

	return fmt.Sprintf("%s: malformed trace at line %d: %s", e.Path, e.Line, e.Message)
}

// Parser is a process.Parser for the trace of ffmpeg_debug_qp.
type Parser interface {
	process.Parser

	// Frames returns the frames that have been parsed so far.
	Frames() []Frame
}

type state int

const (
	stateNoFrame state = iota
	stateFrameOpen
)

var (
	reDecoderPrefix = regexp.MustCompile(`^\[[\w\s@]+\]\s?`)
	reDigits        = regexp.MustCompile(`\d+`)
)

type parser struct {
	state  state
	line   int
	frames []Frame
}

// NewParser returns a new trace parser.
func NewParser() Parser {
	p := &parser{}
	p.Reset()

	return p
}

func (p *parser) Reset() {
	p.state = stateNoFrame
	p.line = 0
	p.frames = []Frame{}
}

func (p *parser) Frames() []Frame {
	return p.frames
}

func (p *parser) Parse(data []byte) error {
	p.line++

	line := strings.TrimSpace(string(data))

	isSize := strings.Contains(line, "pkt_size")
	hasPrefix := reDecoderPrefix.MatchString(line)

	if !isSize && !hasPrefix {
		return nil
	}

	if strings.Contains(line, "nal_unit_type") || strings.Contains(line, "Reinit context") {
		return nil
	}

	if strings.Contains(line, "New frame") {
		return p.openFrame(line)
	}

	if isSize {
		return p.frameSize(line)
	}

	return p.qpValues(line)
}

func (p *parser) openFrame(line string) error {
	frameType := line[len(line)-1:]

	switch frameType {
	case "I", "P", "B":
	default:
		return p.malformed("unknown frame type '%s'", frameType)
	}

	p.frames = append(p.frames, Frame{
		Type: frameType,
		QP:   []int{},
	})
	p.state = stateFrameOpen

	return nil
}

func (p *parser) frameSize(line string) error {
	if p.state == stateNoFrame {
		return p.malformed("packet size before the first frame")
	}

	_, value, _ := strings.Cut(line, "pkt_size")

	digits := reDigits.FindString(value)
	if len(digits) == 0 {
		return p.malformed("packet size without a value")
	}

	size, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return p.malformed("invalid packet size: %s", err)
	}

	p.frames[len(p.frames)-1].Size = size

	return nil
}

func (p *parser) qpValues(line string) error {
	raw := line
	if loc := reDecoderPrefix.FindStringIndex(line); loc != nil {
		raw = line[loc[1]:]
	}

	// Anything else than digits is decoder output we are not interested in.
	if len(raw) == 0 || !isDigits(raw) {
		return nil
	}

	if p.state == stateNoFrame {
		return p.malformed("QP values before the first frame")
	}

	frame := &p.frames[len(p.frames)-1]

	for i := 0; i < len(raw); i += 2 {
		end := i + 2
		if end > len(raw) {
			end = len(raw)
		}

		// Only digits, this can't fail.
		v, _ := strconv.Atoi(raw[i:end])
		frame.QP = append(frame.QP, v)
	}

	return nil
}

func (p *parser) malformed(format string, args ...interface{}) error {
	return &MalformedTraceError{
		Line:    p.line,
		Message: fmt.Sprintf(format, args...),
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
