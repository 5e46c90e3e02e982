// Package config implements types for handling the configuration for the extractor.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/datarhei/p1203/config/value"
	"github.com/datarhei/p1203/config/vars"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

var reResolution = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*$`)

// New returns a Config which is initialized with its default values
func New() *Config {
	cfg := &Config{}

	cfg.init()

	return cfg
}

func (d *Config) Get(name string) (string, error) {
	return d.vars.Get(name)
}

// Set sets the value of a variable from a command line flag.
func (d *Config) Set(name, val string) error {
	return d.vars.Set(name, val)
}

// Clone returns a copy of the Config with its own set of variables
func (d *Config) Clone() *Config {
	data := New()

	data.Data = d.Data

	data.Log.Topics = copyStringSlice(d.Log.Topics)

	data.vars.Transfer(&d.vars)

	return data
}

func (d *Config) init() {
	d.vars.Register(value.NewInt(&d.Mode, 0), "mode", "P1203_MODE", "Mode of the P.1203 input report (0, 1, 2 or 3)", false)
	d.vars.Register(value.NewStrftime(&d.Output, ""), "output", "P1203_OUTPUT", "Path of the report file, may contain strftime placeholders; empty for stdout", false)
	d.vars.Register(value.NewBool(&d.Strict, false), "strict", "P1203_STRICT", "Treat missing durations as errors", false)
	d.vars.Register(value.NewInt(&d.Workers, defaultWorkers()), "workers", "P1203_WORKERS", "Number of segments that are probed in parallel", false)

	// Log
	d.vars.Register(value.NewString(&d.Log.Level, "warn"), "log.level", "P1203_LOG_LEVEL", "Loglevel: silent, error, warn, info, debug", false)
	d.vars.Register(value.NewString(&d.Log.Format, "console"), "log.format", "P1203_LOG_FORMAT", "Log format: console, json", false)
	d.vars.Register(value.NewStringList(&d.Log.Topics, []string{}, ","), "log.topics", "P1203_LOG_TOPICS", "Show only selected log topics", false)

	// FFprobe
	d.vars.Register(value.NewExec(&d.FFprobe.Binary, "ffprobe"), "ffprobe.binary", "P1203_FFPROBE_BINARY", "Path to ffprobe binary", true)
	d.vars.Register(value.NewDuration(&d.FFprobe.Timeout, 120*time.Second), "ffprobe.timeout", "P1203_FFPROBE_TIMEOUT", "Timeout for a single invocation of ffprobe or the QP tracer", false)
	d.vars.Register(value.NewString(&d.FFprobe.Constraint, ">= 3.0"), "ffprobe.constraint", "P1203_FFPROBE_CONSTRAINT", "Version constraint for ffprobe", false)

	// QP
	d.vars.Register(value.NewString(&d.QP.Binary, ""), "qp.binary", "P1203_QP_BINARY", "Path to ffmpeg_debug_qp binary, looked up in $PATH if empty", false)
	d.vars.Register(value.NewString(&d.QP.TempDir, ""), "qp.temp_dir", "P1203_QP_TEMP_DIR", "Directory for temporary QP trace files", false)

	// Frames
	d.vars.Register(value.NewString(&d.Frames.Source, "packet"), "frames.source", "P1203_FRAMES_SOURCE", "Source of the frames in mode 1: packet (decode order, I/Non-I), frame (presentation order, I/P/B)", false)

	// Report
	d.vars.Register(value.NewString(&d.Report.DisplaySize, "1920x1080"), "report.display_size", "P1203_DISPLAY_SIZE", "Display size of the device", false)
	d.vars.Register(value.NewString(&d.Report.Device, "pc"), "report.device", "P1203_DEVICE", "Device type: pc, mobile", false)
	d.vars.Register(value.NewString(&d.Report.ViewingDistance, "150cm"), "report.viewing_distance", "P1203_VIEWING_DISTANCE", "Viewing distance", false)
	d.vars.Register(value.NewInt(&d.Report.StreamID, 42), "report.stream_id", "P1203_STREAM_ID", "Stream ID in the report", false)
	d.vars.Register(value.NewFile(&d.Report.Stalling, ""), "report.stalling", "P1203_STALLING", "Path to a YAML or JSON file with stalling events", false)

	// Cache
	d.vars.Register(value.NewString(&d.Cache.File, ""), "cache.file", "P1203_CACHE_FILE", "Path to a file for caching the output of ffprobe, :memory: for a cache without a file", false)

	// Metrics
	d.vars.Register(value.NewWritablePath(&d.Metrics.Textfile, ""), "metrics.textfile", "P1203_METRICS_TEXTFILE", "Path to a textfile for the node exporter", false)
}

// MarkLoaded marks all values that differ from their defaults as being read
// from a config file.
func (d *Config) MarkLoaded() {
	d.vars.MarkChanged(vars.SourceFile)
}

// Merge merges the values of the known environment variables into the configuration
func (d *Config) Merge() {
	d.vars.Merge()
}

// Validate validates the current state of the Config for completeness and sanity. Errors are
// written to the log. Use resetLogs to indicate to reset the logs prior validation.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	d.vars.Validate()

	v := validator.New()
	v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		return reResolution.MatchString(fl.Field().String())
	})

	err := v.Struct(&d.Data)
	if err == nil {
		return
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		d.vars.Log("error", "mode", "%s", err.Error())
		return
	}

	for _, verr := range verrs {
		d.vars.Log("error", variableName(verr.Namespace()), "%s", validationMessage(verr))
	}
}

// Messages calls for each log entry the provided callback. The level has the values 'error', 'warn', or 'info'.
// The name is the name of the configuration value, e.g. 'report.device'
func (d *Config) Messages(logger func(level string, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are some error messages in the log.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns a list of configuration value names that have been overridden by
// an environment variable or a flag.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Describe returns all configuration values.
func (d *Config) Describe() []vars.Variable {
	return d.vars.Describe()
}

func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}

	return n
}

var fieldNames = map[string]string{
	"Mode":            "mode",
	"Output":          "output",
	"Strict":          "strict",
	"Workers":         "workers",
	"Log":             "log",
	"Level":           "level",
	"Format":          "format",
	"Topics":          "topics",
	"FFprobe":         "ffprobe",
	"Binary":          "binary",
	"Timeout":         "timeout",
	"Constraint":      "constraint",
	"QP":              "qp",
	"TempDir":         "temp_dir",
	"Frames":          "frames",
	"Source":          "source",
	"Report":          "report",
	"DisplaySize":     "display_size",
	"Device":          "device",
	"ViewingDistance": "viewing_distance",
	"StreamID":        "stream_id",
	"Stalling":        "stalling",
	"Cache":           "cache",
	"File":            "file",
	"Metrics":         "metrics",
	"Textfile":        "textfile",
}

// variableName translates the namespace of a validation error, e.g. "Data.Report.Device",
// to the name of the configuration value, e.g. "report.device".
func variableName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) != 0 && parts[0] == "Data" {
		parts = parts[1:]
	}

	for i, p := range parts {
		if name, ok := fieldNames[p]; ok {
			parts[i] = name
		}
	}

	return strings.Join(parts, ".")
}

func validationMessage(verr validator.FieldError) string {
	switch verr.Tag() {
	case "oneof":
		return fmt.Sprintf("'%v' is not one of: %s", verr.Value(), verr.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", verr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", verr.Param())
	case "required":
		return "a value is required"
	case "resolution":
		return fmt.Sprintf("'%v' is not a resolution like 1920x1080", verr.Value())
	}

	return fmt.Sprintf("failed on the '%s' validation", verr.Tag())
}

func copyStringSlice(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)

	return dst
}
