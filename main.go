package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/datarhei/p1203/app"
	"github.com/datarhei/p1203/app/extract"
	"github.com/datarhei/p1203/config"
	configstore "github.com/datarhei/p1203/config/store"
	configvars "github.com/datarhei/p1203/config/vars"
	"github.com/datarhei/p1203/log"
	"github.com/datarhei/p1203/process"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// flags maps the command line flags to the names of the configuration values.
var flags = map[string]string{
	"mode":             "mode",
	"output":           "output",
	"strict":           "strict",
	"workers":          "workers",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"ffprobe":          "ffprobe.binary",
	"qp-binary":        "qp.binary",
	"frames-source":    "frames.source",
	"display-size":     "report.display_size",
	"device":           "report.device",
	"viewing-distance": "report.viewing_distance",
	"stream-id":        "report.stream_id",
	"stalling":         "report.stalling",
	"cache":            "cache.file",
	"metrics-textfile": "metrics.textfile",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run executes the command line and returns the exit code.
func run(args []string, stdout, stderr io.Writer, runner process.Runner) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand(stdout, stderr, runner)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())

		var uerr *extract.UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
		}

		return 1
	}

	return 0
}

func newRootCommand(stdout, stderr io.Writer, runner process.Runner) *cobra.Command {
	var configfile string

	cmd := &cobra.Command{
		Use:           app.Name + " [flags] <input>...",
		Short:         "Extract the P.1203 input report from media segments",
		Long:          "Extract the P.1203 input report from media segments. The inputs are the segments of one\nstream in playback order. Inputs may be glob patterns like segments/*.mp4.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &extract.UsageError{Message: "no input files provided"}
			}

			cfg, err := loadConfig(cmd, configfile)
			if err != nil {
				return err
			}

			logger := newLogger(cfg, stderr)
			defer logger.Close()

			if !logConfig(cfg, logger) {
				return &extract.UsageError{Message: "not all configuration values are set or valid"}
			}

			e, err := extract.New(extract.Config{
				Config: cfg,
				Runner: runner,
				Stdout: stdout,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer e.Close()

			return e.Run(cmd.Context(), args)
		},
	}

	cmd.PersistentFlags().StringVarP(&configfile, "config", "c", "", "Path to a JSON configuration file")

	f := cmd.Flags()
	f.IntP("mode", "m", 0, "Mode of the report: 0, 1, 2 or 3")
	f.StringP("output", "o", "", "Write the report to this file instead of stdout, may contain strftime placeholders. A .gz, .zst or .br extension compresses the report")
	f.Bool("strict", false, "Treat missing durations as errors")
	f.Int("workers", 0, "Number of segments that are probed in parallel")
	f.String("log-level", "warn", "Loglevel: silent, error, warn, info, debug")
	f.String("log-format", "console", "Log format: console, json")
	f.String("ffprobe", "ffprobe", "Path to the ffprobe binary")
	f.String("qp-binary", "", "Path to the ffmpeg_debug_qp binary")
	f.String("frames-source", "packet", "Source of the frames in mode 1: packet (decode order, I/Non-I), frame (presentation order, I/P/B)")
	f.String("display-size", "1920x1080", "Display size of the device")
	f.String("device", "pc", "Device type: pc, mobile")
	f.String("viewing-distance", "150cm", "Viewing distance")
	f.Int("stream-id", 42, "Stream ID in the report")
	f.String("stalling", "", "Path to a YAML or JSON file with stalling events")
	f.String("cache", "", "Path to a file for caching the output of ffprobe")
	f.String("metrics-textfile", "", "Write metrics about the extraction to this file")

	cmd.AddCommand(newVersionCommand(stdout))
	cmd.AddCommand(newConfigCommand(stdout, &configfile))

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := app.Info()

			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Fprintf(stdout, "%-12s %s\n", k+":", info[k])
			}
		},
	}
}

func newConfigCommand(stdout io.Writer, configfile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration values, their environment variables and where they are set from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Root(), *configfile)
			if err != nil {
				return err
			}

			for _, v := range cfg.Describe() {
				fmt.Fprintf(stdout, "%-24s %-26s %-8s %s\n", v.Name, v.EnvName, v.Source, v.Value)
			}

			return nil
		},
	}
}

// loadConfig reads the configuration file and applies the flags and the
// environment. Flags take precedence over the environment and the environment
// over the file.
func loadConfig(cmd *cobra.Command, configfile string) (*config.Config, error) {
	store, err := configstore.NewJSON(configstore.Location(configfile))
	if err != nil {
		return nil, &extract.UsageError{Message: err.Error()}
	}

	cfg := store.Get()

	for flag, name := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}

		if err := cfg.Set(name, f.Value.String()); err != nil {
			return nil, &extract.UsageError{Message: fmt.Sprintf("invalid value for --%s: %s", flag, err.Error())}
		}
	}

	cfg.Merge()
	cfg.Validate(false)

	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) log.Logger {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.Lwarn
	}

	var writer log.Writer

	if cfg.Log.Format == "json" {
		writer = log.NewJSONWriter(stderr, level)
	} else {
		writer = log.NewConsoleWriter(stderr, level, true)
	}

	if len(cfg.Log.Topics) != 0 {
		writer = log.NewTopicWriter(writer, cfg.Log.Topics)
	}

	logger := log.New("P1203").WithOutput(writer)

	logfields := log.Fields{}
	for k, v := range app.Info() {
		logfields[k] = v
	}

	logger.Debug().WithFields(logfields).Log("")

	return logger
}

// logConfig writes the messages of the configuration to the log. It returns
// false if there are errors.
func logConfig(cfg *config.Config, logger log.Logger) bool {
	configlogger := logger.WithComponent("Config")

	cfg.Messages(func(level string, v configvars.Variable, message string) {
		l := configlogger.WithFields(log.Fields{
			"variable": v.Name,
			"value":    v.Value,
			"env":      v.EnvName,
			"source":   string(v.Source),
		})

		switch level {
		case "warn":
			l.Warn().Log(message)
		case "error":
			l.Error().WithField("error", message).Log("")
		default:
			l.Debug().Log(message)
		}
	})

	if overrides := cfg.Overrides(); len(overrides) != 0 {
		configlogger.Debug().WithField("overrides", strings.Join(overrides, ",")).Log("Values set by flags or the environment")
	}

	return !cfg.HasErrors()
}
