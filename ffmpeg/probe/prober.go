// Package probe queries ffprobe for the container and stream metadata of a
// media segment and for its per-packet and per-frame details.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/p1203/cache"
	"github.com/datarhei/p1203/encoding/json"
	"github.com/datarhei/p1203/log"
	"github.com/datarhei/p1203/process"
)

// Names of the queries as they are reported to OnQuery and in errors.
const (
	QuerySummary    = "summary"
	QueryPackets    = "packets"
	QueryFrames     = "frames"
	QueryStreamSize = "streamsize"
)

// ProbeError is returned if ffprobe failed or its output couldn't be parsed.
type ProbeError struct {
	Path     string
	Query    string
	ExitCode int
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s (%s) failed: %s", e.Path, e.Query, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// MetadataError is returned in strict mode if the duration of a stream can only
// be taken from the container or not at all.
type MetadataError struct {
	Path    string
	Stream  StreamKind
	Message string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s: %s stream: %s", e.Path, e.Stream, e.Message)
}

// ErrNoFormat is wrapped in a ProbeError if the summary has no format section.
var ErrNoFormat = errors.New("no format information")

// Prober queries the metadata of media files.
type Prober interface {
	// Probe returns the format and stream summary of the file.
	Probe(ctx context.Context, path string) (Segment, error)

	// Packets returns the video packets of the file in decoding order.
	Packets(ctx context.Context, path string) ([]Packet, error)

	// Frames returns the video frames of the file in presentation order.
	Frames(ctx context.Context, path string) ([]FrameInfo, error)

	// StreamSize returns the sum of the packet sizes in bytes of the
	// streams of the given kind.
	StreamSize(ctx context.Context, path string, kind StreamKind) (int64, error)
}

// Config is the configuration for a Prober.
type Config struct {
	Binary string         // Path to the ffprobe binary.
	Runner process.Runner // Runner for executing ffprobe.
	Cache  cache.Cache    // Optional cache for the output of ffprobe.
	Strict bool           // Whether a missing stream duration is an error.

	// OnQuery is called after each query with its name, the time it took
	// and whether the result has been taken from the cache.
	OnQuery func(query string, duration time.Duration, cached bool)

	Logger log.Logger
}

type prober struct {
	binary  string
	runner  process.Runner
	cache   cache.Cache
	strict  bool
	onQuery func(query string, duration time.Duration, cached bool)
	logger  log.Logger
}

// New returns a new Prober.
func New(config Config) Prober {
	p := &prober{
		binary:  config.Binary,
		runner:  config.Runner,
		cache:   config.Cache,
		strict:  config.Strict,
		onQuery: config.OnQuery,
		logger:  config.Logger,
	}

	if len(p.binary) == 0 {
		p.binary = "ffprobe"
	}

	if p.runner == nil {
		p.runner = process.NewRunner(process.Config{})
	}

	if p.logger == nil {
		p.logger = log.New("")
	}

	return p
}

func (p *prober) Probe(ctx context.Context, path string) (Segment, error) {
	segment := Segment{
		Path: path,
	}

	finfo, err := os.Stat(path)
	if err != nil {
		return segment, &ProbeError{Path: path, Query: QuerySummary, ExitCode: -1, Err: err}
	}

	segment.FileSize = finfo.Size()

	data, err := p.query(ctx, QuerySummary, path, []string{"-loglevel", "error", "-show_streams", "-show_format", "-of", "json"})
	if err != nil {
		return segment, err
	}

	output := ffprobeOutput{}
	if err := json.Unmarshal(data, &output); err != nil {
		return segment, &ProbeError{Path: path, Query: QuerySummary, Err: json.FormatError(data, err)}
	}

	if output.Format == nil {
		return segment, &ProbeError{Path: path, Query: QuerySummary, Err: ErrNoFormat}
	}

	segment.Format = parseFormat(output.Format)

	var video, audio *ffprobeStream

	for i := range output.Streams {
		s := &output.Streams[i]

		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	if video == nil {
		segment.Warnings = append(segment.Warnings, "no video stream found")
	} else {
		v, err := p.videoStream(ctx, path, video, segment.Format, &segment.Warnings)
		if err != nil {
			return segment, err
		}
		segment.Video = v
	}

	if audio != nil {
		a, err := p.audioStream(ctx, path, audio, segment.Format, &segment.Warnings)
		if err != nil {
			return segment, err
		}
		segment.Audio = a
	}

	return segment, nil
}

func parseFormat(f *ffprobeFormat) Format {
	format := Format{
		Filename:   f.Filename,
		FormatName: f.FormatName,
		NbStreams:  f.NbStreams,
		NbPrograms: f.NbPrograms,
	}

	if d := parseSeconds(f.Duration); d != nil {
		format.Duration = *d
		format.HasDuration = true
	}

	if v, ok := parseInt(f.Size); ok {
		format.Size = v
	}

	if v, ok := parseInt(f.BitRate); ok {
		format.BitRate = v
	}

	return format
}

func (p *prober) videoStream(ctx context.Context, path string, s *ffprobeStream, format Format, warnings *[]string) (*VideoStream, error) {
	v := &VideoStream{
		Codec:     s.CodecName,
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: s.RFrameRate,
	}

	fps, err := parseFrameRate(s.RFrameRate)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("video stream: %s", err.Error()))
	}
	v.FPS = fps

	v.Duration, v.DurationSource, err = p.duration(path, Video, s, format, warnings)
	if err != nil {
		return nil, err
	}

	v.Bitrate, err = p.bitrate(ctx, path, Video, s, v.Duration, warnings)
	if err != nil {
		return nil, err
	}

	return v, nil
}

func (p *prober) audioStream(ctx context.Context, path string, s *ffprobeStream, format Format, warnings *[]string) (*AudioStream, error) {
	a := &AudioStream{
		Codec: s.CodecName,
	}

	if v, ok := parseInt(s.SampleRate); ok {
		a.SampleRate = int(v)
	}

	var err error

	a.Duration, a.DurationSource, err = p.duration(path, Audio, s, format, warnings)
	if err != nil {
		return nil, err
	}

	a.Bitrate, err = p.bitrate(ctx, path, Audio, s, a.Duration, warnings)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// duration resolves the duration of a stream. It tries the duration of the stream,
// then its DURATION tag, and then the duration of the container.
func (p *prober) duration(path string, kind StreamKind, s *ffprobeStream, format Format, warnings *[]string) (float64, DurationSource, error) {
	if d := parseSeconds(s.Duration); d != nil {
		return *d, DurationStream, nil
	}

	if tag, ok := durationTag(s.Tags); ok {
		d, err := parseDurationTag(tag)
		if err == nil {
			return d, DurationTag, nil
		}

		*warnings = append(*warnings, fmt.Sprintf("%s stream: %s", kind, err.Error()))
	}

	if format.HasDuration {
		if p.strict {
			return 0, DurationUnknown, &MetadataError{Path: path, Stream: kind, Message: "no stream duration, only the container duration is available"}
		}

		*warnings = append(*warnings, fmt.Sprintf("could not extract %s duration from stream info, using the container duration", kind))

		return format.Duration, DurationFormat, nil
	}

	if p.strict {
		return 0, DurationUnknown, &MetadataError{Path: path, Stream: kind, Message: "no duration available"}
	}

	*warnings = append(*warnings, fmt.Sprintf("could not extract %s duration", kind))

	return 0, DurationUnknown, nil
}

// bitrate returns the bitrate of the stream in kbit/s. If the stream doesn't report
// its bitrate, it is calculated from the sum of its packet sizes and its duration.
func (p *prober) bitrate(ctx context.Context, path string, kind StreamKind, s *ffprobeStream, duration float64, warnings *[]string) (float64, error) {
	if v, ok := parseInt(s.BitRate); ok {
		return kbits(float64(v)), nil
	}

	if duration <= 0 {
		*warnings = append(*warnings, fmt.Sprintf("could not calculate %s bitrate without a duration", kind))
		return 0, nil
	}

	size, err := p.StreamSize(ctx, path, kind)
	if err != nil {
		return 0, err
	}

	return round2((float64(size) * 8 / 1024.0) / duration), nil
}

func (p *prober) Packets(ctx context.Context, path string) ([]Packet, error) {
	data, err := p.query(ctx, QueryPackets, path, []string{"-loglevel", "error", "-select_streams", "v", "-show_packets", "-show_entries", "packet=pts_time,dts_time,duration_time,size,flags", "-of", "json"})
	if err != nil {
		return nil, err
	}

	output := ffprobeOutput{}
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, &ProbeError{Path: path, Query: QueryPackets, Err: json.FormatError(data, err)}
	}

	packets := make([]Packet, 0, len(output.Packets))

	for _, pkt := range output.Packets {
		packet := Packet{
			Keyframe: strings.HasPrefix(pkt.Flags, "K"),
			PTS:      parseSeconds(pkt.PTSTime),
			DTS:      parseSeconds(pkt.DTSTime),
		}

		if v, ok := parseInt(pkt.Size); ok {
			packet.Size = v
		}

		if d := parseSeconds(pkt.DurationTime); d != nil {
			packet.Duration = *d
		}

		packets = append(packets, packet)
	}

	return packets, nil
}

func (p *prober) Frames(ctx context.Context, path string) ([]FrameInfo, error) {
	data, err := p.query(ctx, QueryFrames, path, []string{"-loglevel", "error", "-select_streams", "v", "-show_frames", "-show_entries", "frame=pts_time,pkt_pts_time,pkt_dts_time,duration_time,pkt_duration_time,pkt_size,pict_type", "-of", "json"})
	if err != nil {
		return nil, err
	}

	output := ffprobeOutput{}
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, &ProbeError{Path: path, Query: QueryFrames, Err: json.FormatError(data, err)}
	}

	frames := make([]FrameInfo, 0, len(output.Frames))

	for _, f := range output.Frames {
		frame := FrameInfo{
			PictType: f.PictType,
			PTS:      parseSeconds(f.PTSTime),
			DTS:      parseSeconds(f.PktDTSTime),
		}

		if frame.PTS == nil {
			frame.PTS = parseSeconds(f.PktPTSTime)
		}

		if v, ok := parseInt(f.PktSize); ok {
			frame.Size = v
		}

		if d := parseSeconds(f.DurationTime); d != nil {
			frame.Duration = *d
		} else if d := parseSeconds(f.PktDurationTime); d != nil {
			frame.Duration = *d
		}

		frames = append(frames, frame)
	}

	return frames, nil
}

func (p *prober) StreamSize(ctx context.Context, path string, kind StreamKind) (int64, error) {
	data, err := p.query(ctx, QueryStreamSize, path, []string{"-loglevel", "error", "-select_streams", kind.selector(), "-show_entries", "packet=size", "-of", "compact=p=0:nk=1"})
	if err != nil {
		return 0, err
	}

	var size int64 = 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0, &ProbeError{Path: path, Query: QueryStreamSize, Err: fmt.Errorf("invalid packet size '%s': %w", line, err)}
		}

		size += v
	}

	return size, nil
}

// query runs ffprobe with the given arguments on the file and returns its output.
func (p *prober) query(ctx context.Context, name, path string, args []string) ([]byte, error) {
	args = append(args, "-i", path)

	key := ""

	if p.cache != nil {
		var err error
		key, err = cache.Key(path, args)
		if err != nil {
			p.logger.Debug().WithError(err).Log("No cache key")
			key = ""
		} else if data, ok := p.cache.Get(key); ok {
			p.observe(name, 0, true)
			return data, nil
		}
	}

	start := time.Now()

	stdout, exitCode, err := p.runner.Run(ctx, process.Command{
		Binary: p.binary,
		Args:   args,
	})

	p.observe(name, time.Since(start), false)

	if err != nil {
		return nil, &ProbeError{Path: path, Query: name, ExitCode: exitCode, Err: err}
	}

	if len(key) != 0 {
		if err := p.cache.Put(key, stdout); err != nil {
			p.logger.Warn().WithError(err).WithField("path", path).Log("Failed to store prober output in cache")
		}
	}

	return stdout, nil
}

func (p *prober) observe(name string, duration time.Duration, cached bool) {
	if p.onQuery == nil {
		return
	}

	p.onQuery(name, duration, cached)
}
