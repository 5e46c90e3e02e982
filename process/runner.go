// Package process is a thin wrapper of exec.Cmd for running the external media
// tools (ffprobe, ffmpeg_debug_qp) to completion. Only the Runner interface is
// used by the rest of the code such that tests can replace the actual process
// execution with a fake.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/datarhei/p1203/log"
)

// Command describes a single invocation of an external binary.
type Command struct {
	Binary string    // Path or name of the binary.
	Args   []string  // List of arguments for the binary.
	Stderr io.Writer // Optional writer for stderr. If nil, the tail of stderr is kept for error messages.
}

func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Runner runs a command to completion and returns what it wrote to stdout
// together with its exit code.
type Runner interface {
	Run(ctx context.Context, cmd Command) (stdout []byte, exitCode int, err error)
}

// ExitError is returned if a command exited with a non-zero exit code.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if len(e.Stderr) == 0 {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}

	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// ErrTimeout is returned if a command has been killed because it ran longer
// than the configured timeout.
var ErrTimeout = errors.New("timeout")

// Config is the configuration of a runner
type Config struct {
	Timeout  time.Duration // Kill the process after this duration, 0 for no timeout.
	MaxError int           // Number of bytes of stderr to keep for error messages.
	Logger   log.Logger
}

type runner struct {
	timeout  time.Duration
	maxError int
	logger   log.Logger
}

// NewRunner returns a Runner that executes commands with os/exec.
func NewRunner(config Config) Runner {
	r := &runner{
		timeout:  config.Timeout,
		maxError: config.MaxError,
		logger:   config.Logger,
	}

	if r.maxError <= 0 {
		r.maxError = 1024
	}

	if r.logger == nil {
		r.logger = log.New("")
	}

	return r
}

func (r *runner) Run(ctx context.Context, c Command) ([]byte, int, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stdout := bytes.Buffer{}
	stderr := newTailBuffer(r.maxError)

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Stdout = &stdout
	cmd.WaitDelay = time.Second

	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else {
		cmd.Stderr = stderr
	}

	logger := r.logger.WithField("command", c.String())

	start := time.Now()
	err := cmd.Run()

	logger.WithField("duration", time.Since(start).String()).Debug().Log("Finished")

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, -1, fmt.Errorf("%s: %w (%w)", c.String(), ErrTimeout, ctx.Err())
		}

		if ctx.Err() != nil {
			return nil, -1, fmt.Errorf("%s: %w", c.String(), ctx.Err())
		}

		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			return stdout.Bytes(), exiterr.ExitCode(), &ExitError{
				Command:  c.String(),
				ExitCode: exiterr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}

		return nil, -1, fmt.Errorf("%s: %w", c.String(), err)
	}

	return stdout.Bytes(), 0, nil
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	max  int
	data []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{
		max: max,
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.max {
		b.data = b.data[len(b.data)-b.max:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
