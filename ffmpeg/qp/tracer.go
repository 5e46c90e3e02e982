package qp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/datarhei/p1203/log"
	"github.com/datarhei/p1203/process"
)

// ErrNotFound is returned if the ffmpeg_debug_qp binary can't be found.
var ErrNotFound = errors.New("ffmpeg_debug_qp not found, neither configured nor in $PATH; install it from https://github.com/slhck/ffmpeg-debug-qp")

// Tracer produces and parses the QP trace of a segment.
type Tracer interface {
	// Trace returns the frames of the first video stream of the file in decoding order.
	Trace(ctx context.Context, path string) ([]Frame, error)
}

// Config is the configuration for a Tracer.
type Config struct {
	Binary  string         // Path to ffmpeg_debug_qp. If empty, it is searched in $PATH.
	TempDir string         // Directory for the trace files. If empty, the default for temporary files is used.
	Runner  process.Runner // Runner for executing ffmpeg_debug_qp.

	// OnTrace is called after each run of ffmpeg_debug_qp with the time it took.
	OnTrace func(duration time.Duration)

	Logger log.Logger
}

type tracer struct {
	binary  string
	tempDir string
	runner  process.Runner
	onTrace func(duration time.Duration)
	logger  log.Logger
}

// NewTracer returns a new Tracer. It fails with ErrNotFound if the binary isn't available.
func NewTracer(config Config) (Tracer, error) {
	t := &tracer{
		tempDir: config.TempDir,
		runner:  config.Runner,
		onTrace: config.OnTrace,
		logger:  config.Logger,
	}

	if t.logger == nil {
		t.logger = log.New("")
	}

	binary, err := lookup(config.Binary)
	if err != nil {
		return nil, err
	}

	t.binary = binary

	if t.runner == nil {
		t.runner = process.NewRunner(process.Config{
			Logger: t.logger,
		})
	}

	return t, nil
}

func lookup(binary string) (string, error) {
	if len(binary) != 0 {
		if _, err := os.Stat(binary); err == nil {
			return binary, nil
		}

		if path, err := exec.LookPath(binary); err == nil {
			return path, nil
		}

		return "", fmt.Errorf("%s: %w", binary, ErrNotFound)
	}

	for _, name := range []string{"ffmpeg_debug_qp", "ffmpeg-debug-qp"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", ErrNotFound
}

func (t *tracer) Trace(ctx context.Context, path string) ([]Frame, error) {
	file, err := os.CreateTemp(t.tempDir, "p1203-qp-*.log")
	if err != nil {
		return nil, fmt.Errorf("%s: creating trace file: %w", path, err)
	}

	defer func() {
		file.Close()
		if err := os.Remove(file.Name()); err != nil {
			t.logger.Warn().WithError(err).WithField("file", file.Name()).Log("Failed to remove trace file")
		}
	}()

	logger := t.logger.WithFields(log.Fields{
		"path":  path,
		"trace": file.Name(),
	})

	logger.Debug().Log("Extracting QP values")

	start := time.Now()

	_, _, err = t.runner.Run(ctx, process.Command{
		Binary: t.binary,
		Args:   []string{path},
		Stderr: file,
	})

	if t.onTrace != nil {
		t.onTrace(time.Since(start))
	}

	if err != nil {
		return nil, fmt.Errorf("%s: extracting QP values: %w", path, err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: reading trace file: %w", path, err)
	}

	frames, err := Parse(file)
	if err != nil {
		var merr *MalformedTraceError
		if errors.As(err, &merr) {
			merr.Path = path
		}

		return nil, err
	}

	logger.Debug().WithField("frames", len(frames)).Log("Extracted QP values")

	return frames, nil
}

// Parse parses a complete trace.
func Parse(r io.Reader) ([]Frame, error) {
	p := NewParser()

	if err := process.Scan(r, p); err != nil {
		return nil, err
	}

	return p.Frames(), nil
}
