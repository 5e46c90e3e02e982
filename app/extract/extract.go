// Package extract runs an extraction: it probes the segments, places them on
// the timeline and builds the report.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/datarhei/p1203/cache"
	"github.com/datarhei/p1203/config"
	"github.com/datarhei/p1203/ffmpeg/frame"
	"github.com/datarhei/p1203/ffmpeg/probe"
	"github.com/datarhei/p1203/ffmpeg/qp"
	"github.com/datarhei/p1203/ffmpeg/skills"
	"github.com/datarhei/p1203/glob"
	"github.com/datarhei/p1203/log"
	"github.com/datarhei/p1203/process"
	"github.com/datarhei/p1203/prometheus"
	"github.com/datarhei/p1203/report"
	"github.com/datarhei/p1203/stalling"
	timesource "github.com/datarhei/p1203/time"
	"github.com/datarhei/p1203/timeline"

	"github.com/google/uuid"
	"github.com/lestrrat-go/strftime"
	"go.uber.org/automaxprocs/maxprocs"
)

// MediaSegment is an input file and its position in the list of inputs.
type MediaSegment struct {
	Path  string
	Index int
}

// Extractor creates the report for a list of segments.
type Extractor interface {
	// Extract probes the inputs in their order and returns the report. No
	// report is returned if any segment fails.
	Extract(ctx context.Context, inputs []string) (report.Report, error)

	// Run extracts the report and writes it to the configured output.
	Run(ctx context.Context, inputs []string) error

	// Close releases all resources.
	Close() error
}

// Config is the configuration for an Extractor.
type Config struct {
	// Config is the validated configuration.
	Config *config.Config

	// Runner executes ffprobe and ffmpeg_debug_qp. If nil, the commands
	// are executed with os/exec.
	Runner process.Runner

	// Metrics is the registry for the extraction metrics. If nil, a new
	// registry is used.
	Metrics prometheus.Metrics

	// Stdout receives the report if no output file is configured.
	Stdout io.Writer

	// Clock is used for the placeholders in the output path. If nil, the
	// wall clock is used.
	Clock timesource.Source

	Logger log.Logger
}

type extractor struct {
	config  *config.Config
	runner  process.Runner
	cache   cache.Cache
	metrics prometheus.Metrics
	stdout  io.Writer
	clock   timesource.Source
	logger  log.Logger

	undoMaxprocs func()
}

// New returns a new Extractor.
func New(config Config) (Extractor, error) {
	if config.Config == nil {
		return nil, &UsageError{Message: "no configuration provided"}
	}

	e := &extractor{
		config:  config.Config.Clone(),
		runner:  config.Runner,
		metrics: config.Metrics,
		stdout:  config.Stdout,
		clock:   config.Clock,
		logger:  config.Logger,
	}

	if e.logger == nil {
		e.logger = log.New("")
	}

	cfg := e.config

	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, &UsageError{Message: fmt.Sprintf("invalid mode %d, must be one of 0, 1, 2, 3", cfg.Mode)}
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if e.stdout == nil {
		e.stdout = os.Stdout
	}

	if e.metrics == nil {
		e.metrics = prometheus.New()
	}

	if e.clock == nil {
		e.clock = &timesource.StdSource{}
	}

	undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		format = strings.TrimPrefix(format, "maxprocs: ")
		e.logger.Debug().Log(format, args...)
	}))
	if err != nil {
		e.logger.Warn().Log("%s", err.Error())
	}

	e.undoMaxprocs = undoMaxprocs

	if e.runner == nil {
		e.runner = process.NewRunner(process.Config{
			Timeout: time.Duration(cfg.FFprobe.Timeout),
			Logger:  e.logger.WithComponent("Runner"),
		})
	}

	switch cfg.Cache.File {
	case "":
	case cache.MemoryFile:
		e.cache = cache.NewMemory()
	default:
		c, err := cache.NewBolt(cfg.Cache.File)
		if err != nil {
			e.logger.Warn().WithError(err).WithField("path", cfg.Cache.File).Log("Can't open the cache, continuing without cache")
		} else {
			e.cache = c
		}
	}

	return e, nil
}

func (e *extractor) Close() error {
	var err error

	if e.cache != nil {
		err = e.cache.Close()
		e.cache = nil
	}

	if e.undoMaxprocs != nil {
		e.undoMaxprocs()
		e.undoMaxprocs = nil
	}

	return err
}

func (e *extractor) Run(ctx context.Context, inputs []string) error {
	start := time.Now()

	collector := prometheus.NewExtractionCollector(e.config.Mode)
	if err := e.metrics.Register(collector); err != nil {
		return fmt.Errorf("can't register metrics: %w", err)
	}
	defer e.metrics.UnregisterAll()

	r, err := e.extract(ctx, inputs, collector)
	if err != nil {
		return err
	}

	if len(e.config.Output) == 0 {
		if err := report.Write(e.stdout, r); err != nil {
			return fmt.Errorf("can't write report: %w", err)
		}
	} else {
		path, err := strftime.Format(e.config.Output, e.clock.Now())
		if err != nil {
			return fmt.Errorf("invalid output path '%s': %w", e.config.Output, err)
		}

		if err := report.WriteFile(path, r); err != nil {
			return fmt.Errorf("can't write report: %w", err)
		}

		e.logger.Info().WithField("path", path).Log("Report written")
	}

	collector.Finished(time.Since(start))

	if len(e.config.Metrics.Textfile) != 0 {
		if err := e.metrics.WriteTextfile(e.config.Metrics.Textfile); err != nil {
			e.logger.Warn().WithError(err).WithField("path", e.config.Metrics.Textfile).Log("Can't write metrics")
		}
	}

	return nil
}

func (e *extractor) Extract(ctx context.Context, inputs []string) (report.Report, error) {
	return e.extract(ctx, inputs, prometheus.NewExtractionCollector(e.config.Mode))
}

func (e *extractor) extract(ctx context.Context, inputs []string, collector prometheus.ExtractionCollector) (report.Report, error) {
	cfg := e.config

	logger := e.logger.WithFields(log.Fields{
		"run":  uuid.New().String(),
		"mode": cfg.Mode,
	})

	segments, err := Segments(inputs)
	if err != nil {
		return report.Report{}, err
	}

	options, err := e.options()
	if err != nil {
		return report.Report{}, err
	}

	if err := e.checkProber(ctx, logger); err != nil {
		return report.Report{}, err
	}

	prober := probe.New(probe.Config{
		Binary:  cfg.FFprobe.Binary,
		Runner:  e.runner,
		Cache:   e.cache,
		Strict:  cfg.Strict,
		OnQuery: collector.ObserveQuery,
		Logger:  logger.WithComponent("Probe"),
	})

	normalizer, err := e.normalizer(prober, collector, logger)
	if err != nil {
		return report.Report{}, err
	}

	logger.Info().WithFields(log.Fields{
		"segments": len(segments),
		"workers":  cfg.Workers,
		"frames":   normalizer.Source().String(),
	}).Log("Extracting")

	probed, err := e.probe(ctx, segments, prober, normalizer, collector)
	if err != nil {
		return report.Report{}, err
	}

	blocks, warnings := timeline.Assemble(probed)

	for _, w := range warnings {
		logger.Warn().WithField("path", w.Path).Log("%s", w.Message)
		collector.Warning()
	}

	builder := report.NewBuilder(options)
	builder.Add(blocks...)

	return builder.Report(), nil
}

// Segments expands the inputs to the list of segments. Inputs with glob
// patterns are replaced by the matching files in lexical order.
func Segments(inputs []string) ([]MediaSegment, error) {
	if len(inputs) == 0 {
		return nil, &UsageError{Message: "no input files provided"}
	}

	segments := []MediaSegment{}

	for _, input := range inputs {
		paths, err := glob.Expand(input)
		if err != nil {
			return nil, &UsageError{Message: fmt.Sprintf("invalid input pattern '%s': %s", input, err.Error())}
		}

		if len(paths) == 0 {
			return nil, &MissingFileError{Path: input}
		}

		for _, path := range paths {
			finfo, err := os.Stat(path)
			if err != nil {
				return nil, &MissingFileError{Path: path, Err: err}
			}

			if finfo.IsDir() {
				return nil, &MissingFileError{Path: path, Err: fmt.Errorf("is a directory")}
			}

			segments = append(segments, MediaSegment{
				Path:  path,
				Index: len(segments),
			})
		}
	}

	return segments, nil
}

func (e *extractor) options() (report.Options, error) {
	cfg := e.config

	options := report.Options{
		DisplaySize:     cfg.Report.DisplaySize,
		Device:          cfg.Report.Device,
		ViewingDistance: cfg.Report.ViewingDistance,
		StreamID:        cfg.Report.StreamID,
		Stalling:        []report.StallingEvent{},
	}

	if len(cfg.Report.Stalling) == 0 {
		return options, nil
	}

	s, err := stalling.Load(cfg.Report.Stalling)
	if err != nil {
		return report.Options{}, &UsageError{Message: fmt.Sprintf("can't load stalling events: %s", err.Error())}
	}

	if s.StreamID != 0 && s.StreamID != options.StreamID {
		e.logger.Warn().WithFields(log.Fields{
			"path":     cfg.Report.Stalling,
			"streamId": s.StreamID,
		}).Log("The stream ID of the stalling events is ignored, using %d", options.StreamID)
	}

	options.Stalling = s.Events

	return options, nil
}

func (e *extractor) checkProber(ctx context.Context, logger log.Logger) error {
	s, err := skills.New(ctx, e.config.FFprobe.Binary, e.runner)
	if err != nil {
		return err
	}

	logger = logger.WithFields(log.Fields{
		"binary":  s.Binary,
		"version": s.FFprobe.Raw,
	})

	err = s.Check(e.config.FFprobe.Constraint)
	if err == nil {
		logger.Debug().Log("Found ffprobe")
		return nil
	}

	if errors.Is(err, skills.ErrUnknownVersion) {
		logger.Warn().Log("Can't determine the version of ffprobe, assuming it is supported")
		return nil
	}

	return err
}

func (e *extractor) normalizer(prober probe.Prober, collector prometheus.ExtractionCollector, logger log.Logger) (frame.Normalizer, error) {
	container, err := frame.ParseSource(e.config.Frames.Source)
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}

	source, err := frame.SourceForMode(e.config.Mode, container)
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}

	var tracer qp.Tracer

	if source == frame.SourceTrace {
		tracer, err = qp.NewTracer(qp.Config{
			Binary:  e.config.QP.Binary,
			TempDir: e.config.QP.TempDir,
			Runner:  e.runner,
			OnTrace: func(d time.Duration) {
				collector.ObserveQuery("trace", d, false)
			},
			Logger: logger.WithComponent("QP"),
		})
		if err != nil {
			return nil, err
		}
	}

	return frame.New(frame.Config{
		Source: source,
		Prober: prober,
		Tracer: tracer,
		Logger: logger.WithComponent("Frames"),
	})
}

// probe probes the segments with a pool of workers. The results are in the
// order of the segments. The first failing segment cancels the remaining work.
func (e *extractor) probe(ctx context.Context, segments []MediaSegment, prober probe.Prober, normalizer frame.Normalizer, collector prometheus.ExtractionCollector) ([]timeline.Segment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]timeline.Segment, len(segments))
	errs := make([]error, len(segments))

	workers := e.config.Workers
	if workers > len(segments) {
		workers = len(segments)
	}

	jobs := make(chan MediaSegment)
	wg := sync.WaitGroup{}

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for s := range jobs {
				if err := ctx.Err(); err != nil {
					errs[s.Index] = err
					continue
				}

				result, err := e.probeSegment(ctx, s, prober, normalizer)
				if err != nil {
					errs[s.Index] = err
					cancel()
					continue
				}

				results[s.Index] = result
				collector.SegmentDone()
			}
		}()
	}

	for _, s := range segments {
		jobs <- s
	}

	close(jobs)

	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}

	return results, nil
}

func (e *extractor) probeSegment(ctx context.Context, s MediaSegment, prober probe.Prober, normalizer frame.Normalizer) (timeline.Segment, error) {
	logger := e.logger.WithFields(log.Fields{
		"path":  s.Path,
		"index": s.Index,
	})

	p, err := prober.Probe(ctx, s.Path)
	if err != nil {
		return timeline.Segment{}, &SegmentError{Segment: s, Err: err}
	}

	result := timeline.Segment{
		Probe: p,
	}

	if p.Video != nil && normalizer.Source() != frame.SourceNone {
		frames, err := normalizer.Collect(ctx, s.Path)
		if err != nil {
			return timeline.Segment{}, &SegmentError{Segment: s, Err: err}
		}

		result.Frames = frames
	}

	logger.Debug().WithField("frames", len(result.Frames)).Log("Probed")

	return result, nil
}

// firstError returns the error of the segment with the lowest index. Errors
// that are only the result of the cancellation after another segment failed
// are considered last.
func firstError(errs []error) error {
	var canceled error

	for _, err := range errs {
		if err == nil {
			continue
		}

		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}

		return err
	}

	return canceled
}
