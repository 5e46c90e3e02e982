package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/datarhei/p1203/config"
	"github.com/datarhei/p1203/ffmpeg/frame"
	"github.com/datarhei/p1203/ffmpeg/probe"
	"github.com/datarhei/p1203/ffmpeg/qp"
	"github.com/datarhei/p1203/ffmpeg/skills"
	"github.com/datarhei/p1203/log"
	"github.com/datarhei/p1203/process"
	"github.com/datarhei/p1203/report"
	timesource "github.com/datarhei/p1203/time"

	"github.com/stretchr/testify/require"
)

const versionOutput = `ffprobe version 6.0 Copyright (c) 2007-2023 the FFmpeg developers
built with Apple clang version 14.0.3 (clang-1403.0.22.14.1)
`

func summary(duration string) string {
	return fmt.Sprintf(`{
	"streams": [
		{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720,
		 "r_frame_rate": "25/1", "bit_rate": "1024000", "duration": "%[1]s"},
		{"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "44100",
		 "bit_rate": "131072", "duration": "%[1]s"}
	],
	"format": {"filename": "segment.mp4", "nb_streams": 2, "nb_programs": 0, "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"duration": "%[1]s", "size": "524288", "bit_rate": "1048576"}
}`, duration)
}

const packets = `{"packets": [
	{"pts_time": "0.000000", "dts_time": "0.000000", "duration_time": "0.040000", "size": "5000", "flags": "K_"},
	{"pts_time": "0.040000", "dts_time": "0.040000", "duration_time": "0.040000", "size": "700", "flags": "__"}
]}`

const trace = `[h264 @ 0x1] New frame, type: I
[h264 @ 0x1] 2526
[h264 @ 0x1] pkt_size: 5000
[h264 @ 0x1] New frame, type: P
[h264 @ 0x1] 30
[h264 @ 0x1] pkt_size: 700
`

// fakeRunner answers the queries of the prober and the tracer. The summary
// depends on the name of the file.
type fakeRunner struct {
	lock      sync.Mutex
	version   string
	summaries map[string]string
	fail      map[string]error
	trace     string
	calls     []process.Command
}

func (r *fakeRunner) Run(ctx context.Context, cmd process.Command) ([]byte, int, error) {
	r.lock.Lock()
	r.calls = append(r.calls, cmd)
	r.lock.Unlock()

	if len(cmd.Args) == 1 && cmd.Args[0] == "-version" {
		return []byte(r.version), 0, nil
	}

	path := cmd.Args[len(cmd.Args)-1]
	name := filepath.Base(path)

	if err, ok := r.fail[name]; ok {
		return nil, 1, err
	}

	if cmd.Stderr != nil {
		cmd.Stderr.Write([]byte(r.trace))
		return nil, 0, nil
	}

	args := strings.Join(cmd.Args, " ")

	switch {
	case strings.Contains(args, "-show_format"):
		if s, ok := r.summaries[name]; ok {
			return []byte(s), 0, nil
		}
		return []byte(summary("4.000000")), 0, nil
	case strings.Contains(args, "-show_packets"):
		return []byte(packets), 0, nil
	}

	return nil, 1, errors.New("unexpected command: " + args)
}

func newRunner() *fakeRunner {
	return &fakeRunner{
		version:   versionOutput,
		summaries: map[string]string{},
		fail:      map[string]error{},
		trace:     trace,
	}
}

func segmentFiles(t *testing.T, names ...string) (string, []string) {
	dir := t.TempDir()
	paths := []string{}

	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0600))
		paths = append(paths, path)
	}

	return dir, paths
}

func newConfig(mode int) *config.Config {
	cfg := config.New()
	cfg.Mode = mode
	cfg.Workers = 3

	return cfg
}

func newExtractor(t *testing.T, cfg *config.Config, runner process.Runner, stdout *bytes.Buffer) Extractor {
	e, err := New(Config{
		Config: cfg,
		Runner: runner,
		Stdout: stdout,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		e.Close()
	})

	return e
}

func TestExtractMode0(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4", "b.mp4", "c.mp4")

	runner := newRunner()
	runner.summaries["b.mp4"] = summary("2.500000")

	e := newExtractor(t, newConfig(0), runner, nil)

	r, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	require.Equal(t, report.IGen{DisplaySize: "1920x1080", Device: "pc", ViewingDistance: "150cm"}, r.IGen)
	require.Equal(t, 42, r.I13.StreamID)
	require.Equal(t, 3, len(r.I13.Segments))
	require.Equal(t, 3, len(r.I11.Segments))

	starts := []float64{}
	for _, s := range r.I13.Segments {
		starts = append(starts, s.Start)
		require.Nil(t, s.Frames)
		require.Equal(t, "1280x720", s.Resolution)
		require.Equal(t, 1000.0, s.Bitrate)
		require.Equal(t, 25.0, s.FPS)
	}

	require.Equal(t, []float64{0, 4, 6.5}, starts)
	require.Equal(t, 2.5, r.I13.Segments[1].Duration)
	require.Equal(t, 6.5, r.I11.Segments[2].Start)
	require.Equal(t, 128.0, r.I11.Segments[0].Bitrate)
	require.Empty(t, r.I23.Stalling)
}

func TestExtractMode1(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4", "b.mp4")

	e := newExtractor(t, newConfig(1), newRunner(), nil)

	r, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	for _, s := range r.I13.Segments {
		require.Equal(t, 2, len(s.Frames))
		require.Equal(t, "I", s.Frames[0].Type)
		require.Equal(t, int64(5000), s.Frames[0].Size)
		require.Equal(t, "Non-I", s.Frames[1].Type)
		require.Nil(t, s.Frames[0].QP)
	}
}

func TestExtractMode3(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4", "b.mp4")

	binary := filepath.Join(t.TempDir(), "ffmpeg_debug_qp")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0700))

	cfg := newConfig(3)
	cfg.QP.Binary = binary
	cfg.QP.TempDir = t.TempDir()

	e := newExtractor(t, cfg, newRunner(), nil)

	r, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	for _, s := range r.I13.Segments {
		require.Equal(t, []frame.Frame{
			{Type: "I", Size: 5000, QP: []int{25, 26}},
			{Type: "P", Size: 700, QP: []int{30}},
		}, s.Frames)
	}

	entries, err := os.ReadDir(cfg.QP.TempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func newMode3Config(t *testing.T) *config.Config {
	binary := filepath.Join(t.TempDir(), "ffmpeg_debug_qp")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0700))

	cfg := newConfig(3)
	cfg.QP.Binary = binary
	cfg.QP.TempDir = t.TempDir()

	return cfg
}

func TestExtractMalformedTrace(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	cfg := newMode3Config(t)

	runner := newRunner()
	runner.trace = "[h264 @ 0x1] 2525\n[h264 @ 0x1] New frame, type: I\n"

	stdout := &bytes.Buffer{}

	e := newExtractor(t, cfg, runner, stdout)

	err := e.Run(context.Background(), paths)
	require.Error(t, err)

	var merr *qp.MalformedTraceError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 1, merr.Line)
	require.Contains(t, err.Error(), "a.mp4")

	require.Empty(t, stdout.String())

	entries, err := os.ReadDir(cfg.QP.TempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunIsReproducible(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4", "b.mp4", "c.mp4")

	outputs := [][]byte{}

	for i := 0; i < 2; i++ {
		runner := newRunner()
		runner.summaries["b.mp4"] = summary("2.500000")

		stdout := &bytes.Buffer{}

		e := newExtractor(t, newMode3Config(t), runner, stdout)

		err := e.Run(context.Background(), paths)
		require.NoError(t, err)

		outputs = append(outputs, stdout.Bytes())
	}

	require.NotEmpty(t, outputs[0])
	require.True(t, bytes.Equal(outputs[0], outputs[1]), "%s\n%s", outputs[0], outputs[1])
	require.Contains(t, string(outputs[0]), `"qpValues"`)
}

func TestExtractMissingTracer(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(2)
	cfg.QP.Binary = filepath.Join(t.TempDir(), "missing")

	e := newExtractor(t, cfg, newRunner(), nil)

	_, err := e.Extract(context.Background(), paths)
	require.Error(t, err)
	require.ErrorContains(t, err, "ffmpeg-debug-qp")
}

func TestExtractUsage(t *testing.T) {
	e := newExtractor(t, newConfig(0), newRunner(), nil)

	_, err := e.Extract(context.Background(), nil)

	var uerr *UsageError
	require.ErrorAs(t, err, &uerr)

	_, err = New(Config{Config: newConfig(4), Runner: newRunner()})
	require.ErrorAs(t, err, &uerr)

	cfg := newConfig(1)
	cfg.Frames.Source = "trace"

	_, paths := segmentFiles(t, "a.mp4")

	e = newExtractor(t, cfg, newRunner(), nil)

	_, err = e.Extract(context.Background(), paths)
	require.ErrorAs(t, err, &uerr)
}

func TestExtractMissingFile(t *testing.T) {
	dir, paths := segmentFiles(t, "a.mp4")

	runner := newRunner()
	e := newExtractor(t, newConfig(0), runner, nil)

	_, err := e.Extract(context.Background(), append(paths, filepath.Join(dir, "missing.mp4")))

	var merr *MissingFileError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, filepath.Join(dir, "missing.mp4"), merr.Path)
	require.Empty(t, runner.calls)

	_, err = e.Extract(context.Background(), []string{filepath.Join(dir, "*.ts")})
	require.ErrorAs(t, err, &merr)
}

func TestExtractGlob(t *testing.T) {
	dir, _ := segmentFiles(t, "seg_2.mp4", "seg_1.mp4", "seg_3.mp4", "other.txt")

	segments, err := Segments([]string{filepath.Join(dir, "seg_*.mp4")})
	require.NoError(t, err)

	require.Equal(t, []MediaSegment{
		{Path: filepath.Join(dir, "seg_1.mp4"), Index: 0},
		{Path: filepath.Join(dir, "seg_2.mp4"), Index: 1},
		{Path: filepath.Join(dir, "seg_3.mp4"), Index: 2},
	}, segments)
}

func TestExtractFirstErrorWins(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4", "b.mp4", "c.mp4", "d.mp4")

	runner := newRunner()
	runner.fail["b.mp4"] = &process.ExitError{Command: "ffprobe b.mp4", ExitCode: 1, Stderr: "b.mp4: Invalid data found when processing input"}
	runner.fail["d.mp4"] = &process.ExitError{Command: "ffprobe d.mp4", ExitCode: 1, Stderr: "d.mp4: Invalid data found when processing input"}

	e := newExtractor(t, newConfig(0), runner, nil)

	_, err := e.Extract(context.Background(), paths)

	var serr *SegmentError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 1, serr.Segment.Index)

	var perr *probe.ProbeError
	require.ErrorAs(t, err, &perr)
	require.ErrorContains(t, err, "b.mp4")
}

func TestExtractUnsupportedVersion(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(0)
	cfg.FFprobe.Constraint = ">= 7.0"

	e := newExtractor(t, cfg, newRunner(), nil)

	_, err := e.Extract(context.Background(), paths)
	require.ErrorIs(t, err, skills.ErrUnsupportedVersion)
}

func TestExtractUnknownVersion(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	runner := newRunner()
	runner.version = "ffprobe version N-111746-gd53acf452f Copyright (c) 2007-2023 the FFmpeg developers\n"

	buffer := log.NewBufferWriter(log.Lwarn, 10)

	e, err := New(Config{
		Config: newConfig(0),
		Runner: runner,
		Logger: log.New("P1203").WithOutput(buffer),
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Extract(context.Background(), paths)
	require.NoError(t, err)

	messages := []string{}
	for _, event := range buffer.Events() {
		messages = append(messages, event.Message)
	}

	require.Contains(t, messages, "Can't determine the version of ffprobe, assuming it is supported")
}

func TestExtractStalling(t *testing.T) {
	dir, paths := segmentFiles(t, "a.mp4")

	stallingfile := filepath.Join(dir, "stalling.yaml")
	require.NoError(t, os.WriteFile(stallingfile, []byte("stalling:\n  - [0, 1.5]\n  - [4, 0.5]\n"), 0600))

	cfg := newConfig(0)
	cfg.Report.Stalling = stallingfile
	cfg.Report.Device = "mobile"
	cfg.Report.StreamID = 7

	e := newExtractor(t, cfg, newRunner(), nil)

	r, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	require.Equal(t, []report.StallingEvent{{Onset: 0, Duration: 1.5}, {Onset: 4, Duration: 0.5}}, r.I23.Stalling)
	require.Equal(t, 7, r.I23.StreamID)
	require.Equal(t, 7, r.I11.StreamID)
	require.Equal(t, "mobile", r.IGen.Device)
}

func TestRunStdout(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	stdout := &bytes.Buffer{}

	e := newExtractor(t, newConfig(0), newRunner(), stdout)

	err := e.Run(context.Background(), paths)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(stdout.String(), "{\n    \"I11\": {"))
	require.True(t, strings.HasSuffix(stdout.String(), "}\n"))
}

func TestRunOutputFile(t *testing.T) {
	dir, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(0)
	cfg.Output = filepath.Join(dir, "report.json")
	cfg.Metrics.Textfile = filepath.Join(dir, "p1203.prom")

	stdout := &bytes.Buffer{}

	e := newExtractor(t, cfg, newRunner(), stdout)

	err := e.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Empty(t, stdout.String())

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	require.Contains(t, string(data), `"displaySize": "1920x1080"`)

	data, err = os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	require.Contains(t, string(data), `p1203_segments_total{mode="0"} 1`)
}

func TestRunOutputPattern(t *testing.T) {
	dir, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(0)
	cfg.Output = filepath.Join(dir, "report-%Y%m%d-%H%M%S.json.gz")

	clock := &timesource.FixedSource{}
	clock.Set(1257894000, 0)

	e, err := New(Config{
		Config: cfg,
		Runner: newRunner(),
		Clock:  clock,
	})
	require.NoError(t, err)
	defer e.Close()

	err = e.Run(context.Background(), paths)
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(dir, "report-20091110-230000.json.gz"))
}

func TestRunCache(t *testing.T) {
	dir, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(0)
	cfg.Cache.File = filepath.Join(dir, "cache.db")

	runner := newRunner()

	e := newExtractor(t, cfg, runner, nil)

	_, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	n := len(runner.calls)

	_, err = e.Extract(context.Background(), paths)
	require.NoError(t, err)

	// only the version check is run again
	require.Equal(t, n+1, len(runner.calls))
}

func TestRunMemoryCache(t *testing.T) {
	_, paths := segmentFiles(t, "a.mp4")

	cfg := newConfig(0)
	cfg.Cache.File = ":memory:"

	runner := newRunner()

	e := newExtractor(t, cfg, runner, nil)

	_, err := e.Extract(context.Background(), paths)
	require.NoError(t, err)

	n := len(runner.calls)

	_, err = e.Extract(context.Background(), paths)
	require.NoError(t, err)

	require.Equal(t, n+1, len(runner.calls))
}

func TestFirstError(t *testing.T) {
	canceled := fmt.Errorf("c.mp4: %w", context.Canceled)
	failed := errors.New("d.mp4: failed")

	require.Nil(t, firstError([]error{nil, nil}))
	require.Equal(t, failed, firstError([]error{nil, canceled, failed}))
	require.Equal(t, canceled, firstError([]error{nil, canceled}))
}
