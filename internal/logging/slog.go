// Package logging sets up the slog fan-out used by the commands and adapts
// zerolog to the small Logger interfaces of the core packages.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Swapped in tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// ServiceName identifies log records sent through the OTel bridge.
const ServiceName = "cspdemo"

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	graylog *gelf.Writer
}

// SetupOption adds an output to Setup.
type SetupOption func(*setupConfig)

type setupConfig struct {
	graylogAddr string
	context     ContextProvider
}

// WithGraylog also sends every record as GELF over UDP to addr.
func WithGraylog(addr string) SetupOption {
	return func(c *setupConfig) {
		c.graylogAddr = addr
	}
}

// WithContext adds the attributes returned by p to every record.
func WithContext(p ContextProvider) SetupOption {
	return func(c *setupConfig) {
		c.context = p
	}
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with file and optional OTel output.
// Records go to the file when one is given and to stdout otherwise. If
// provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) error {
	cfg := &setupConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// Build list of handlers
	var handlers []slog.Handler

	// File handler, console otherwise
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	// OTel handler (if provider is available)
	if provider != nil {
		otelHandler := otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	// Graylog handler
	if m.graylog != nil {
		m.graylog.Close()
		m.graylog = nil
	}
	if cfg.graylogAddr != "" {
		w, err := gelf.NewWriter(cfg.graylogAddr)
		if err != nil {
			return fmt.Errorf("creating graylog writer: %w", err)
		}
		m.graylog = w
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
	}

	m.logger = slog.New(NewTaskHandler(NewMultiHandler(handlers...), cfg.context))
	m.logger.Info("Logging initialized", "level", level)
	return nil
}

// Close releases the Graylog connection, if any.
func (m *SlogManager) Close() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}

	lvl := parseLevel(level)

	switch lvl {
	case slog.LevelDebug:
		m.logger.Debug(data, "function", functionName)
	case slog.LevelInfo:
		m.logger.Info(data, "function", functionName)
	case slog.LevelWarn:
		m.logger.Warn(data, "function", functionName)
	case slog.LevelError:
		m.logger.Error(data, "function", functionName)
	default:
		m.logger.Info(data, "function", functionName)
	}
}

