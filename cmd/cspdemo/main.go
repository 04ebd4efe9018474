// Command cspdemo runs the classic CSP programs on top of pkg/channel:
// generators, fan-in through Select, a daisy chain of relays and a
// multi-producer drain. Runs are queued through the dispatcher, watched by
// the channel monitor and reported through slog, OTel and optionally
// InfluxDB.
//
// Usage:
//
//	cspdemo [pattern ...]
//
// Without arguments the pattern from cspdemo.cfg.json is run. The config
// file is looked up in $CSPDEMO_CONFIG_DIR, or the working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/csp/internal/config"
	"github.com/OCAP2/csp/internal/dispatcher"
	"github.com/OCAP2/csp/internal/influx"
	"github.com/OCAP2/csp/internal/logging"
	"github.com/OCAP2/csp/internal/monitor"
	intOtel "github.com/OCAP2/csp/internal/otel"
	"github.com/OCAP2/csp/pkg/channel"
)

// BuildDate can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

// app holds the services shared by every run.
type app struct {
	slogManager *logging.SlogManager
	logger      *slog.Logger
	core        *logging.ZerologLogger

	otelProvider *intOtel.Provider
	influx       *influx.Manager
	monitor      *monitor.Service
	dispatcher   *dispatcher.Dispatcher

	// The dispatcher Event only carries strings, so :RUN: refers to the
	// queued request by pattern name.
	requests map[string]runRequest
	results  *channel.Channel[runResult]

	closers []io.Closer
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	sessionStart := time.Now()

	a := &app{slogManager: logging.NewSlogManager()}
	if err := a.slogManager.Setup(nil, "info", nil); err != nil {
		return err
	}
	a.logger = a.slogManager.Logger()

	configDir := os.Getenv("CSPDEMO_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", configDir)
	}

	if err := a.setup(ctx, sessionStart); err != nil {
		a.shutdown()
		return err
	}
	defer a.shutdown()

	a.logger.Info("Starting up...", "version", Version, "buildDate", BuildDate)

	demo := config.GetDemoConfig()
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{demo.Pattern}
	}
	if len(patterns) == 1 && patterns[0] == "all" {
		patterns = allPatterns
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, demo.Timeout)
	defer cancel()

	results, err := a.runAll(ctx, patterns, demo)
	if err != nil {
		return err
	}

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.Pattern, r.Err))
		}
	}

	if status, err := a.dispatcher.Dispatch(dispatcher.Event{Command: ":STATUS:", Timestamp: time.Now()}); err == nil {
		for _, line := range status.([]string) {
			a.logger.Debug("Channel status", "status", line)
		}
	}

	return errors.Join(failed...)
}

// setup wires logging, telemetry, the influx sink, the monitor and the
// dispatcher in that order.
func (a *app) setup(ctx context.Context, sessionStart time.Time) error {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	logFilePath := logging.LogFilePath(logsDir, logging.ServiceName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	a.closers = append(a.closers, logFile)
	a.logger.Info("Begin logging in logs directory", "path", logFilePath)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		metricFile, err := os.Create(strings.TrimSuffix(logFilePath, ".log") + ".metrics.json")
		if err != nil {
			return fmt.Errorf("creating metrics file: %w", err)
		}
		a.closers = append(a.closers, metricFile)

		a.otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			MetricWriter:   metricFile,
			MetricInterval: otelCfg.MetricInterval,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.logger.Info("OTel provider initialized", "file", logFilePath, "endpoint", otelCfg.Endpoint)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		otelLogProvider = a.otelProvider.LoggerProvider()
	}
	opts := []logging.SetupOption{logging.WithContext(a.logContext)}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		opts = append(opts, logging.WithGraylog(gl.Address))
	}
	level := config.GetString("logLevel")
	if err := a.slogManager.Setup(io.MultiWriter(os.Stdout, logFile), level, otelLogProvider, opts...); err != nil {
		return err
	}
	a.logger = a.slogManager.Logger()

	zlLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlLevel = zerolog.InfoLevel
	}
	zl := zerolog.New(logFile).Level(zlLevel).With().Timestamp().Str("service", logging.ServiceName).Logger()
	a.core = logging.NewZerologLogger(zl)

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		a.influx = influx.NewManager(zl, influxCfg.BackupPath)
		if err := a.influx.Connect(ctx); err != nil {
			a.logger.Error("Failed to set up InfluxDB", "error", err)
			a.influx = nil
		}
	}

	monCfg := config.GetMonitorConfig()
	monCfg.StatusDir = statusDir(monCfg.StatusDir)
	if monCfg.StatusDir != "" {
		if err := os.MkdirAll(monCfg.StatusDir, 0755); err != nil {
			return fmt.Errorf("creating status dir: %w", err)
		}
	}
	a.monitor, err = monitor.NewService(monitor.Dependencies{
		LogManager: a.slogManager,
		StatusDir:  monCfg.StatusDir,
		Interval:   monCfg.Interval,
		Sink:       a.writeStatus,
	})
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}

	a.dispatcher, err = dispatcher.New(a.core.Named("dispatcher"))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	a.registerHandlers()
	a.monitor.Register(a.dispatcher.Queues()...)

	if monCfg.Enabled {
		if err := a.monitor.Start(); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
	}
	return nil
}

func (a *app) logContext() []slog.Attr {
	return []slog.Attr{slog.Bool("monitorRunning", a.monitor != nil && a.monitor.IsRunning())}
}

// writeStatus sends a monitor snapshot to InfluxDB.
func (a *app) writeStatus(ctx context.Context, status monitor.Status) error {
	if a.influx == nil {
		return nil
	}
	var errs []error
	for _, s := range status.Channels {
		errs = append(errs, a.influx.WritePoint(ctx, influx.BucketChannels, influx.ChannelPoint(s, status.Time)))
	}
	if status.Process != nil {
		errs = append(errs, a.influx.WritePoint(ctx, influx.BucketChannels, influx.ProcessPoint(*status.Process, status.Time)))
	}
	return errors.Join(errs...)
}

func (a *app) shutdown() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("Failed to close InfluxDB", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := a.slogManager.Close(); err != nil {
		a.logger.Error("Failed to close Graylog writer", "error", err)
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// runGroup runs fn alongside a watchdog that logs the monitor status when
// ctx ends before fn returns.
func (a *app) runGroup(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	finished := make(chan struct{})
	g.Go(func() error {
		defer close(finished)
		return fn(gctx)
	})
	g.Go(func() error {
		select {
		case <-finished:
		case <-gctx.Done():
			lines, _ := a.monitor.GetProgramStatus()
			a.logger.Warn("Run interrupted", "error", gctx.Err(), "channels", len(lines))
			for _, line := range lines {
				a.logger.Debug("Channel status", "status", line)
			}
		}
		return nil
	})
	return g.Wait()
}

// statusDir resolves a relative status directory against the logs dir.
func statusDir(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(config.GetString("logsDir"), dir)
}
