// Package frame maps the per-frame information of the different sources into
// one canonical frame record.
package frame

import (
	"fmt"
	"strings"

	"github.com/datarhei/p1203/encoding/json"
)

// Frame is one frame of the video stream of a segment.
type Frame struct {
	Type     string   // I, P, B, or Non-I
	Size     int64    // bytes
	PTS      *float64 // seconds, nil if unknown
	DTS      *float64 // seconds, nil if unknown
	Duration float64  // seconds
	QP       []int    // nil if the source doesn't provide QP values
}

type frameJSON struct {
	Type string `json:"frameType"`
	Size int64  `json:"frameSize"`
	QP   *[]int `json:"qpValues,omitempty"`
}

// MarshalJSON writes the frame in the shape of the report. The QP values are only
// written if the source provided them, even if there are none.
func (f Frame) MarshalJSON() ([]byte, error) {
	v := frameJSON{
		Type: f.Type,
		Size: f.Size,
	}

	if f.QP != nil {
		v.QP = &f.QP
	}

	return json.Marshal(v)
}

// Source is where the frames are taken from.
type Source int

const (
	SourceNone   Source = iota // No frames
	SourcePacket               // Packets from the prober, decoding order
	SourceFrame                // Frames from the prober, presentation order
	SourceTrace                // QP trace, decoding order
)

func (s Source) String() string {
	switch s {
	case SourcePacket:
		return "packet"
	case SourceFrame:
		return "frame"
	case SourceTrace:
		return "trace"
	}

	return "none"
}

// Types returns the frame types a source may produce.
func (s Source) Types() []string {
	switch s {
	case SourcePacket:
		return []string{"I", "Non-I"}
	case SourceFrame, SourceTrace:
		return []string{"I", "P", "B"}
	}

	return nil
}

// ParseSource parses the name of a source for mode 1, either "packet" or "frame".
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "", "packet":
		return SourcePacket, nil
	case "frame":
		return SourceFrame, nil
	}

	return SourceNone, fmt.Errorf("unknown frame source '%s', must be one of packet, frame", name)
}

// SourceForMode returns the source for the given mode. For mode 1 the given
// container source is used.
func SourceForMode(mode int, container Source) (Source, error) {
	switch mode {
	case 0:
		return SourceNone, nil
	case 1:
		if container != SourcePacket && container != SourceFrame {
			return SourceNone, fmt.Errorf("invalid frame source '%s' for mode 1", container)
		}
		return container, nil
	case 2, 3:
		return SourceTrace, nil
	}

	return SourceNone, fmt.Errorf("invalid mode %d, must be one of 0, 1, 2, 3", mode)
}

// InvalidTypeError is returned if a frame has a type the source isn't allowed to produce.
type InvalidTypeError struct {
	Path   string
	Index  int
	Type   string
	Source Source
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("%s: frame %d has type '%s', expected one of %s (%s)", e.Path, e.Index, e.Type, strings.Join(e.Source.Types(), ", "), e.Source)
}
