// Package report builds the input report for the P.1203 model from the
// segments on the timeline.
package report

import (
	"fmt"

	"github.com/datarhei/p1203/encoding/json"
	"github.com/datarhei/p1203/ffmpeg/frame"
)

// Report is the input report for the model.
type Report struct {
	IGen IGen `json:"IGen"`
	I11  I11  `json:"I11"`
	I13  I13  `json:"I13"`
	I23  I23  `json:"I23"`
}

// IGen describes the viewing context.
type IGen struct {
	DisplaySize     string `json:"displaySize"`
	Device          string `json:"device"`
	ViewingDistance string `json:"viewingDistance"`
}

// I11 is the audio track.
type I11 struct {
	StreamID int            `json:"streamId"`
	Segments []AudioSegment `json:"segments"`
}

// I13 is the video track.
type I13 struct {
	StreamID int            `json:"streamId"`
	Segments []VideoSegment `json:"segments"`
}

// I23 are the stalling events.
type I23 struct {
	StreamID int             `json:"streamId"`
	Stalling []StallingEvent `json:"stalling"`
}

// AudioSegment is the audio of one segment.
type AudioSegment struct {
	Codec    string  `json:"codec"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Bitrate  float64 `json:"bitrate"`
}

// VideoSegment is the video of one segment. Frames is nil if the mode doesn't
// require frames.
type VideoSegment struct {
	Codec      string
	Start      float64
	Duration   float64
	Resolution string
	Bitrate    float64
	FPS        float64
	Frames     []frame.Frame
}

type videoSegmentJSON struct {
	Codec      string         `json:"codec"`
	Start      float64        `json:"start"`
	Duration   float64        `json:"duration"`
	Resolution string         `json:"resolution"`
	Bitrate    float64        `json:"bitrate"`
	FPS        float64        `json:"fps"`
	Frames     *[]frame.Frame `json:"frames,omitempty"`
}

// MarshalJSON writes the frames only if there are frames, even if the list is empty.
func (v VideoSegment) MarshalJSON() ([]byte, error) {
	s := videoSegmentJSON{
		Codec:      v.Codec,
		Start:      v.Start,
		Duration:   v.Duration,
		Resolution: v.Resolution,
		Bitrate:    v.Bitrate,
		FPS:        v.FPS,
	}

	if v.Frames != nil {
		s.Frames = &v.Frames
	}

	return json.Marshal(s)
}

// StallingEvent is a rebuffering interval. It is written as [onset, duration].
type StallingEvent struct {
	Onset    float64 // seconds
	Duration float64 // seconds
}

func (e StallingEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{e.Onset, e.Duration})
}

func (e *StallingEvent) UnmarshalJSON(data []byte) error {
	pair := []float64{}

	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}

	if len(pair) != 2 {
		return fmt.Errorf("a stalling event must be a pair of onset and duration, found %d values", len(pair))
	}

	e.Onset = pair[0]
	e.Duration = pair[1]

	return nil
}
