package report

import (
	"github.com/datarhei/p1203/timeline"
)

// Options are the parts of the report that are not derived from the segments.
type Options struct {
	DisplaySize     string // default 1920x1080
	Device          string // default pc
	ViewingDistance string // default 150cm
	StreamID        int    // default 42
	Stalling        []StallingEvent
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		DisplaySize:     "1920x1080",
		Device:          "pc",
		ViewingDistance: "150cm",
		StreamID:        42,
		Stalling:        []StallingEvent{},
	}
}

// Builder collects the blocks of the segments in their order.
type Builder struct {
	options Options
	audio   []AudioSegment
	video   []VideoSegment
}

// NewBuilder returns a new Builder. Options that are not set are replaced by the defaults.
func NewBuilder(options Options) *Builder {
	defaults := DefaultOptions()

	if len(options.DisplaySize) == 0 {
		options.DisplaySize = defaults.DisplaySize
	}

	if len(options.Device) == 0 {
		options.Device = defaults.Device
	}

	if len(options.ViewingDistance) == 0 {
		options.ViewingDistance = defaults.ViewingDistance
	}

	if options.StreamID <= 0 {
		options.StreamID = defaults.StreamID
	}

	stalling := make([]StallingEvent, len(options.Stalling))
	copy(stalling, options.Stalling)
	options.Stalling = stalling

	return &Builder{
		options: options,
		audio:   []AudioSegment{},
		video:   []VideoSegment{},
	}
}

// Add appends the blocks. The blocks have to be added in the order of the timeline.
func (b *Builder) Add(blocks ...timeline.Block) {
	for _, block := range blocks {
		if v := block.Video; v != nil {
			b.video = append(b.video, VideoSegment{
				Codec:      v.Codec,
				Start:      block.Start,
				Duration:   block.Duration,
				Resolution: v.Resolution(),
				Bitrate:    v.Bitrate,
				FPS:        v.FPS,
				Frames:     v.Frames,
			})
		}

		if a := block.Audio; a != nil {
			b.audio = append(b.audio, AudioSegment{
				Codec:    a.Codec,
				Start:    block.Start,
				Duration: block.Duration,
				Bitrate:  a.Bitrate,
			})
		}
	}
}

// Report returns the report with all blocks that have been added so far.
func (b *Builder) Report() Report {
	audio := make([]AudioSegment, len(b.audio))
	copy(audio, b.audio)

	video := make([]VideoSegment, len(b.video))
	copy(video, b.video)

	return Report{
		IGen: IGen{
			DisplaySize:     b.options.DisplaySize,
			Device:          b.options.Device,
			ViewingDistance: b.options.ViewingDistance,
		},
		I11: I11{
			StreamID: b.options.StreamID,
			Segments: audio,
		},
		I13: I13{
			StreamID: b.options.StreamID,
			Segments: video,
		},
		I23: I23{
			StreamID: b.options.StreamID,
			Stalling: b.options.Stalling,
		},
	}
}
