package channel

import "github.com/OCAP2/csp/pkg/future"

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a channel.
type Option func(*config)

type config struct {
	capacity  int
	buffered  bool
	name      string
	scheduler future.Scheduler
	logger    Logger
}

// Buffered gives the channel a buffer of size slots. Buffered(0) is the
// same as an unbuffered channel.
func Buffered(size int) Option {
	return func(c *config) {
		c.capacity = size
		c.buffered = true
	}
}

// WithName names the channel in errors, logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithScheduler sets how blocked operations suspend. The default blocks the
// calling goroutine.
func WithScheduler(s future.Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithLogger sets the channel's logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
