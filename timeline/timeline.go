// Package timeline places the probed segments on one continuous timeline.
package timeline

import (
	"fmt"

	"github.com/datarhei/p1203/ffmpeg/frame"
	"github.com/datarhei/p1203/ffmpeg/probe"
)

// Segment is everything that has been collected about one input file.
type Segment struct {
	Probe  probe.Segment
	Frames []frame.Frame // nil if no frames have been collected
}

// VideoBlock describes the video of a placed segment.
type VideoBlock struct {
	Codec   string
	Width   int
	Height  int
	Bitrate float64 // kbit/s
	FPS     float64
	Frames  []frame.Frame
}

// Resolution returns the resolution as WxH.
func (v VideoBlock) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// AudioBlock describes the audio of a placed segment.
type AudioBlock struct {
	Codec   string
	Bitrate float64 // kbit/s
}

// Block is a segment placed on the timeline. Video and audio share the start
// and the duration.
type Block struct {
	Index    int
	Path     string
	Start    float64 // seconds
	Duration float64 // seconds
	Video    *VideoBlock
	Audio    *AudioBlock
}

// Warning is a problem with a segment that didn't stop the extraction.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}

// Starts returns the start of each segment, given the durations of the segments
// in their order. The first segment starts at 0 and each following segment starts
// where the previous one ended.
func Starts(durations []float64) []float64 {
	starts := make([]float64, len(durations))
	current := 0.0

	for i, d := range durations {
		starts[i] = current
		current += d
	}

	return starts
}

// Duration returns the duration of the segment on the timeline. This is the duration
// of the container such that video and audio are aligned. If the container has no
// duration, the duration of the video or audio stream is used.
func Duration(s probe.Segment) (float64, *Warning) {
	if s.Format.HasDuration {
		return s.Format.Duration, nil
	}

	if s.Video != nil && s.Video.DurationSource != probe.DurationUnknown {
		return s.Video.Duration, &Warning{Path: s.Path, Message: "no container duration, using the video duration"}
	}

	if s.Audio != nil && s.Audio.DurationSource != probe.DurationUnknown {
		return s.Audio.Duration, &Warning{Path: s.Path, Message: "no container duration, using the audio duration"}
	}

	return 0, &Warning{Path: s.Path, Message: "no duration available, the segment has a duration of 0"}
}

// Assemble places the segments in the given order on the timeline. It returns a
// block for each segment and all warnings of the segments. A segment without any
// video and audio stream has an empty block and only advances the timeline.
func Assemble(segments []Segment) ([]Block, []Warning) {
	warnings := []Warning{}
	durations := make([]float64, len(segments))

	for i, s := range segments {
		for _, message := range s.Probe.Warnings {
			warnings = append(warnings, Warning{Path: s.Probe.Path, Message: message})
		}

		d, w := Duration(s.Probe)
		if w != nil {
			warnings = append(warnings, *w)
		}

		durations[i] = d
	}

	starts := Starts(durations)
	blocks := make([]Block, 0, len(segments))

	for i, s := range segments {
		block := Block{
			Index:    i,
			Path:     s.Probe.Path,
			Start:    starts[i],
			Duration: durations[i],
		}

		if v := s.Probe.Video; v != nil {
			block.Video = &VideoBlock{
				Codec:   v.Codec,
				Width:   v.Width,
				Height:  v.Height,
				Bitrate: v.Bitrate,
				FPS:     v.FPS,
				Frames:  s.Frames,
			}
		}

		if a := s.Probe.Audio; a != nil {
			block.Audio = &AudioBlock{
				Codec:   a.Codec,
				Bitrate: a.Bitrate,
			}
		}

		if block.Video == nil && block.Audio == nil {
			warnings = append(warnings, Warning{Path: s.Probe.Path, Message: "neither video nor audio stream found, skipping segment"})
		}

		blocks = append(blocks, block)
	}

	return blocks, warnings
}
