package config

import (
	"testing"
	"time"

	"github.com/datarhei/p1203/config/value"
	"github.com/datarhei/p1203/config/vars"

	"github.com/stretchr/testify/require"
)

func newValidConfig() *Config {
	cfg := New()
	cfg.Set("ffprobe.binary", "sh")

	return cfg
}

func messages(cfg *Config) map[string]string {
	m := map[string]string{}

	cfg.Messages(func(level string, v vars.Variable, message string) {
		if level == "error" {
			m[v.Name] = message
		}
	})

	return m
}

func TestDefaults(t *testing.T) {
	cfg := New()

	require.Equal(t, 0, cfg.Mode)
	require.Equal(t, "ffprobe", cfg.FFprobe.Binary)
	require.Equal(t, value.Duration(120*time.Second), cfg.FFprobe.Timeout)
	require.Equal(t, ">= 3.0", cfg.FFprobe.Constraint)
	require.Equal(t, "packet", cfg.Frames.Source)
	require.Equal(t, "1920x1080", cfg.Report.DisplaySize)
	require.Equal(t, "pc", cfg.Report.Device)
	require.Equal(t, "150cm", cfg.Report.ViewingDistance)
	require.Equal(t, 42, cfg.Report.StreamID)
	require.GreaterOrEqual(t, cfg.Workers, 1)
	require.Empty(t, cfg.Overrides())
}

func TestValidateDefaults(t *testing.T) {
	cfg := newValidConfig()

	cfg.Validate(true)

	require.False(t, cfg.HasErrors(), messages(cfg))
}

func TestValidateEnums(t *testing.T) {
	cfg := newValidConfig()

	cfg.Mode = 4
	cfg.Report.Device = "tv"
	cfg.Report.DisplaySize = "big"
	cfg.Frames.Source = "trace"
	cfg.Workers = 0

	cfg.Validate(true)

	require.True(t, cfg.HasErrors())

	m := messages(cfg)

	require.Contains(t, m, "mode")
	require.Contains(t, m, "report.device")
	require.Contains(t, m, "report.display_size")
	require.Contains(t, m, "frames.source")
	require.Contains(t, m, "workers")
	require.Equal(t, "'tv' is not one of: pc mobile", m["report.device"])
}

func TestValidateBinary(t *testing.T) {
	cfg := New()
	cfg.Set("ffprobe.binary", "p1203-no-such-ffprobe")

	cfg.Validate(true)

	require.True(t, cfg.HasErrors())
	require.Contains(t, messages(cfg), "ffprobe.binary")
}

func TestMergeEnvironment(t *testing.T) {
	t.Setenv("P1203_MODE", "2")
	t.Setenv("P1203_DEVICE", "mobile")
	t.Setenv("P1203_FFPROBE_TIMEOUT", "30")

	cfg := New()
	cfg.Set("mode", "1")

	cfg.Merge()

	require.Equal(t, 1, cfg.Mode)
	require.Equal(t, "mobile", cfg.Report.Device)
	require.Equal(t, value.Duration(30*time.Second), cfg.FFprobe.Timeout)
	require.ElementsMatch(t, []string{"mode", "ffprobe.timeout", "report.device"}, cfg.Overrides())
}

func TestClone(t *testing.T) {
	cfg := New()
	cfg.Log.Topics = []string{"probe"}
	cfg.Mode = 2

	clone := cfg.Clone()

	require.Equal(t, cfg.Data, clone.Data)

	clone.Log.Topics[0] = "qp"
	clone.Set("mode", "3")

	require.Equal(t, "probe", cfg.Log.Topics[0])
	require.Equal(t, 2, cfg.Mode)
	require.Equal(t, 3, clone.Mode)
}

func TestVariableName(t *testing.T) {
	require.Equal(t, "report.viewing_distance", variableName("Data.Report.ViewingDistance"))
	require.Equal(t, "workers", variableName("Data.Workers"))
}

func TestDescribe(t *testing.T) {
	cfg := New()

	list := cfg.Describe()

	names := []string{}
	for _, v := range list {
		names = append(names, v.Name)
	}

	require.Contains(t, names, "mode")
	require.Contains(t, names, "report.stalling")
	require.Contains(t, names, "metrics.textfile")
}
