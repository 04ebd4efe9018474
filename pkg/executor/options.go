package executor

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

// Option configures an Executor.
type Option func(*config)

type config struct {
	logger Logger
}

// WithLogger sets the executor's logger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
