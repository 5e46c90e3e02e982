package frame

import (
	"context"
	"fmt"

	"github.com/datarhei/p1203/ffmpeg/probe"
	"github.com/datarhei/p1203/ffmpeg/qp"
	"github.com/datarhei/p1203/log"
)

// Normalizer collects the frames of a segment from the source of the mode.
type Normalizer interface {
	// Collect returns the frames of the file. It returns nil if the source
	// doesn't provide frames and a non-nil list otherwise.
	Collect(ctx context.Context, path string) ([]Frame, error)

	// Source returns the source of the frames.
	Source() Source
}

// Config is the configuration for a Normalizer.
type Config struct {
	Source Source       // The source of the frames.
	Prober probe.Prober // Required for SourcePacket and SourceFrame.
	Tracer qp.Tracer    // Required for SourceTrace.
	Logger log.Logger
}

// collector gets the frames from one source.
type collector interface {
	collect(ctx context.Context, path string) ([]Frame, error)
}

type normalizer struct {
	source    Source
	collector collector
	logger    log.Logger
}

// New returns a new Normalizer for the configured source.
func New(config Config) (Normalizer, error) {
	n := &normalizer{
		source: config.Source,
		logger: config.Logger,
	}

	if n.logger == nil {
		n.logger = log.New("")
	}

	switch config.Source {
	case SourceNone:
		n.collector = noneCollector{}
	case SourcePacket:
		if config.Prober == nil {
			return nil, fmt.Errorf("a prober is required for the %s source", config.Source)
		}
		n.collector = packetCollector{prober: config.Prober}
	case SourceFrame:
		if config.Prober == nil {
			return nil, fmt.Errorf("a prober is required for the %s source", config.Source)
		}
		n.collector = frameCollector{prober: config.Prober}
	case SourceTrace:
		if config.Tracer == nil {
			return nil, fmt.Errorf("a tracer is required for the %s source", config.Source)
		}
		n.collector = traceCollector{tracer: config.Tracer}
	default:
		return nil, fmt.Errorf("unknown frame source %d", config.Source)
	}

	return n, nil
}

func (n *normalizer) Source() Source {
	return n.source
}

func (n *normalizer) Collect(ctx context.Context, path string) ([]Frame, error) {
	frames, err := n.collector.collect(ctx, path)
	if err != nil {
		return nil, err
	}

	if frames == nil {
		return nil, nil
	}

	allowed := n.source.Types()

	for i, f := range frames {
		if !contains(allowed, f.Type) {
			return nil, &InvalidTypeError{
				Path:   path,
				Index:  i,
				Type:   f.Type,
				Source: n.source,
			}
		}
	}

	n.logger.Debug().WithFields(log.Fields{
		"path":   path,
		"source": n.source.String(),
		"frames": len(frames),
	}).Log("Collected frames")

	return frames, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

type noneCollector struct{}

func (noneCollector) collect(ctx context.Context, path string) ([]Frame, error) {
	return nil, nil
}

type packetCollector struct {
	prober probe.Prober
}

func (c packetCollector) collect(ctx context.Context, path string) ([]Frame, error) {
	packets, err := c.prober.Packets(ctx, path)
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(packets))

	for _, p := range packets {
		frameType := "Non-I"
		if p.Keyframe {
			frameType = "I"
		}

		frames = append(frames, Frame{
			Type:     frameType,
			Size:     p.Size,
			PTS:      p.PTS,
			DTS:      p.DTS,
			Duration: p.Duration,
		})
	}

	return frames, nil
}

type frameCollector struct {
	prober probe.Prober
}

func (c frameCollector) collect(ctx context.Context, path string) ([]Frame, error) {
	infos, err := c.prober.Frames(ctx, path)
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(infos))

	for _, f := range infos {
		frames = append(frames, Frame{
			Type:     f.PictType,
			Size:     f.Size,
			PTS:      f.PTS,
			DTS:      f.DTS,
			Duration: f.Duration,
		})
	}

	return frames, nil
}

type traceCollector struct {
	tracer qp.Tracer
}

func (c traceCollector) collect(ctx context.Context, path string) ([]Frame, error) {
	trace, err := c.tracer.Trace(ctx, path)
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(trace))

	for _, f := range trace {
		values := f.QP
		if values == nil {
			values = []int{}
		}

		frames = append(frames, Frame{
			Type: f.Type,
			Size: f.Size,
			QP:   values,
		})
	}

	return frames, nil
}
