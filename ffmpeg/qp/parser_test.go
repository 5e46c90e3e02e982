package qp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datarhei/p1203/process"

	"github.com/stretchr/testify/require"
)

const trace = `[h264 @ 0x7fadf2008000] nal_unit_type: 7(SPS), nal_ref_idc: 3
[h264 @ 0x7fadf2008000] nal_unit_type: 8(PPS), nal_ref_idc: 3
[h264 @ 0x7fadf2008000] New frame, type: I
[h264 @ 0x7fadf2008000] 2525262627272828
[h264 @ 0x7fadf2008000] 2929
pkt_size: 1200
some unrelated line 1234
[h264 @ 0x7fadf2008000] New frame, type: P
[h264 @ 0x7fadf2008000] ref_count: 1/0
[h264 @ 0x7fadf2008000] 3030
[h264 @ 0x7fadf2008000] pkt_size: 300
[h264 @ 0x7fadf2008000] Reinit context to 1920x1088, pix_fmt: yuv420p
[h264 @ 0x7fadf2008000] New frame, type: B
`

func TestParse(t *testing.T) {
	frames, err := Parse(strings.NewReader(trace))
	require.NoError(t, err)

	require.Equal(t, []Frame{
		{Type: "I", Size: 1200, QP: []int{25, 25, 26, 26, 27, 27, 28, 28, 29, 29}},
		{Type: "P", Size: 300, QP: []int{30, 30}},
		{Type: "B", Size: 0, QP: []int{}},
	}, frames)
}

func TestParseOnlyLeadingPrefixIsStripped(t *testing.T) {
	input := "[h264 @ 0x1] New frame, type: I\n[h264 @ 0x1] 25[x]26\n[h264 @ 0x1] 2627 [h264 @ 0x1]\n"

	frames, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Equal(t, []Frame{{Type: "I", QP: []int{}}}, frames)
}

func TestParseDecoderContextLine(t *testing.T) {
	input := "[h264 @ 0x55d] New frame, type: I\n[h264 @ 0x55d] deblocking filter: on\n[h264 @ 0x55d] 2732\n"

	frames, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Equal(t, 1, len(frames))
	require.Equal(t, "I", frames[0].Type)
	require.Equal(t, []int{27, 32}, frames[0].QP)
}

func TestParseOtherDecoder(t *testing.T) {
	input := "[hevc @ 0x1] New frame, type: P\r\n[hevc @ 0x1] 515\r\n"

	frames, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Equal(t, []Frame{{Type: "P", QP: []int{51, 5}}}, frames)
}

func TestParseCounts(t *testing.T) {
	for markers := 0; markers < 10; markers++ {
		builder := strings.Builder{}
		expected := []int{}

		for i := 0; i < markers; i++ {
			builder.WriteString("[h264 @ 0xabc] New frame, type: P\n")

			groups := 0
			for j := 0; j < i%4; j++ {
				line := strings.Repeat("12", j+1)
				builder.WriteString(fmt.Sprintf("[h264 @ 0xabc] %s\n", line))
				builder.WriteString("[h264 @ 0xabc] mb_type: skip\n")
				groups += j + 1
			}

			expected = append(expected, groups)
		}

		frames, err := Parse(strings.NewReader(builder.String()))
		require.NoError(t, err)
		require.Equal(t, markers, len(frames))

		for i, frame := range frames {
			require.Equal(t, expected[i], len(frame.QP), "frame %d", i)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := map[string]string{
		"data before frame":  "[h264 @ 0x1] 2525\n[h264 @ 0x1] New frame, type: I\n",
		"size before frame":  "pkt_size: 100\n",
		"unknown frame type": "[h264 @ 0x1] New frame, type: I\n[h264 @ 0x1] New frame, type: S\n",
	}

	for name, input := range tests {
		_, err := Parse(strings.NewReader(input))
		require.Error(t, err, name)

		var merr *MalformedTraceError
		require.ErrorAs(t, err, &merr, name)
	}

	_, err := Parse(strings.NewReader("[h264 @ 0x1] New frame, type: I\n[h264 @ 0x1] New frame, type: X\n"))

	var merr *MalformedTraceError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 2, merr.Line)
}

func TestParseMalformedLineNumber(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\r\n\n[h264 @ 0x1] 2525\n"))

	var merr *MalformedTraceError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 4, merr.Line)
}

func TestParserReset(t *testing.T) {
	p := NewParser()

	err := p.Parse([]byte("[h264 @ 0x1] New frame, type: I"))
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Frames()))

	p.Reset()
	require.Equal(t, 0, len(p.Frames()))

	err = p.Parse([]byte("[h264 @ 0x1] 2525"))
	require.Error(t, err)
}

type traceRunner struct {
	output string
	err    error
	file   string
}

func (r *traceRunner) Run(ctx context.Context, cmd process.Command) ([]byte, int, error) {
	if f, ok := cmd.Stderr.(*os.File); ok {
		r.file = f.Name()
	}

	if cmd.Stderr != nil {
		cmd.Stderr.Write([]byte(r.output))
	}

	if r.err != nil {
		return nil, 1, r.err
	}

	return nil, 0, nil
}

func fakeBinary(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "ffmpeg_debug_qp")

	err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0700)
	require.NoError(t, err)

	return path
}

func TestTracer(t *testing.T) {
	runner := &traceRunner{output: trace}
	dir := t.TempDir()

	tracer, err := NewTracer(Config{
		Binary:  fakeBinary(t),
		TempDir: dir,
		Runner:  runner,
	})
	require.NoError(t, err)

	frames, err := tracer.Trace(context.Background(), "segment.mp4")
	require.NoError(t, err)
	require.Equal(t, 3, len(frames))

	require.NotEmpty(t, runner.file)
	require.NoFileExists(t, runner.file)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTracerRemovesTraceOnError(t *testing.T) {
	dir := t.TempDir()

	runner := &traceRunner{output: "[h264 @ 0x1] 2525\n"}

	tracer, err := NewTracer(Config{
		Binary:  fakeBinary(t),
		TempDir: dir,
		Runner:  runner,
	})
	require.NoError(t, err)

	_, err = tracer.Trace(context.Background(), "segment.mp4")

	var merr *MalformedTraceError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "segment.mp4", merr.Path)
	require.ErrorContains(t, err, "segment.mp4")
	require.NoFileExists(t, runner.file)

	runner.err = errors.New("exit status 1")

	_, err = tracer.Trace(context.Background(), "segment.mp4")
	require.ErrorContains(t, err, "segment.mp4")
	require.NoFileExists(t, runner.file)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTracerNotFound(t *testing.T) {
	_, err := NewTracer(Config{
		Binary: filepath.Join(t.TempDir(), "missing"),
	})
	require.ErrorIs(t, err, ErrNotFound)
}
