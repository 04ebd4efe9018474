package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger feeds the Debug/Info/Error logging of the channel, executor
// and dispatcher packages into zerolog. Key/value pairs become event fields
// in the order given.
type ZerologLogger struct {
	logger zerolog.Logger
}

func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Named returns a logger whose events carry component=name.
func (l *ZerologLogger) Named(name string) *ZerologLogger {
	return &ZerologLogger{logger: l.logger.With().Str("component", name).Logger()}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	emit(l.logger.Info(), msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	emit(l.logger.Error(), msg, keysAndValues)
}

// emit skips pairs whose key is not a string, and a trailing key without a
// value.
func emit(e *zerolog.Event, msg string, kv []any) {
	// nil when the level is disabled
	if e == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			e.AnErr(key, v)
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case int64:
			e.Int64(key, v)
		case uint64:
			e.Uint64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		default:
			e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
