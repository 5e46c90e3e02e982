package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "DEBUG", Ldebug.String())
	assert.Equal(t, "ERROR", Lerror.String())
	assert.Equal(t, "WARN", Lwarn.String())
	assert.Equal(t, "INFO", Linfo.String())
	assert.Equal(t, "SILENT", Lsilent.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"silent":  Lsilent,
		"ERROR":   Lerror,
		"warn":    Lwarn,
		"warning": Lwarn,
		" info ":  Linfo,
		"Debug":   Ldebug,
	} {
		level, err := ParseLevel(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, level, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevels(t *testing.T) {
	for max, want := range map[Level]int{
		Lsilent: 0,
		Lerror:  1,
		Lwarn:   2,
		Linfo:   3,
		Ldebug:  4,
	} {
		buffer := bytes.Buffer{}

		logger := New("test").WithOutput(NewConsoleWriter(&buffer, max, false))

		logger.Debug().Log("debug")
		logger.Info().Log("info")
		logger.Warn().Log("warn")
		logger.Error().Log("error")

		lines := 0
		if buffer.Len() != 0 {
			lines = len(strings.Split(strings.TrimSpace(buffer.String()), "\n"))
		}

		assert.Equal(t, want, lines, max.String())
	}
}

func TestLogWithoutLevelIsDebug(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)

	New("test").WithOutput(buffer).Log("hello %s", "world")

	events := buffer.Events()
	require.Equal(t, 1, len(events))
	require.Equal(t, Ldebug, events[0].Level)
	require.Equal(t, "hello world", events[0].Message)
	require.Contains(t, events[0].Caller, "log_test.go:")
}

func TestLogWithoutOutput(t *testing.T) {
	require.NotPanics(t, func() {
		logger := New("test")
		logger.Error().Log("nowhere")
		logger.Close()
	})
}

func TestLogComponent(t *testing.T) {
	buffer := bytes.Buffer{}

	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Linfo, false))

	logger.Info().Log("info")
	assert.Contains(t, buffer.String(), `component="test"`)

	buffer.Reset()

	logger.WithComponent("tset").Info().Log("info")
	assert.Contains(t, buffer.String(), `component="tset"`)

	buffer.Reset()

	logger.Info().Log("info")
	assert.Contains(t, buffer.String(), `component="test"`)
}

func TestLogFieldsAreNotShared(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)

	parent := New("test").WithOutput(buffer).WithField("segment", "a.mp4")
	child := parent.WithFields(Fields{"segment": "b.mp4", "index": 1})

	parent.Info().Log("parent")
	child.Info().Log("child")
	parent.WithError(nil).Info().Log("no error")
	parent.WithError(errors.New("boom")).Info().Log("error")

	events := buffer.Events()
	require.Equal(t, 4, len(events))
	require.Equal(t, Fields{"segment": "a.mp4"}, events[0].Data)
	require.Equal(t, Fields{"segment": "b.mp4", "index": 1}, events[1].Data)
	require.Equal(t, Fields{"segment": "a.mp4"}, events[2].Data)
	require.EqualError(t, events[3].Data["error"].(error), "boom")
}

func TestLogWrite(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)

	logger := New("ffprobe").WithOutput(buffer).Warn()

	n, err := logger.Write([]byte("Invalid data found\n"))
	require.NoError(t, err)
	require.Equal(t, 19, n)

	events := buffer.Events()
	require.Equal(t, 1, len(events))
	require.Equal(t, Lwarn, events[0].Level)
	require.Equal(t, "Invalid data found", events[0].Message)
}

func TestLogBufferWriter(t *testing.T) {
	buffer := NewBufferWriter(Lwarn, 2)

	logger := New("test").WithOutput(buffer)

	logger.Info().Log("info")
	logger.Warn().WithField("segment", "a.mp4").Log("first")
	logger.Warn().Log("second")
	logger.Error().Log("third")

	events := buffer.Events()
	assert.Equal(t, 2, len(events))
	assert.Equal(t, "second", events[0].Message)
	assert.Equal(t, "third", events[1].Message)
}
