package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/csp/internal/dispatcher"
	"github.com/OCAP2/csp/pkg/channel"
	"github.com/OCAP2/csp/pkg/executor"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestZerologLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	zl.Debug("test message", "key1", "value1", "key2", 42)

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", logEntry["message"])
	}
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}

func TestZerologLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	zl.Debug("filtered")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}

	zl.Info("info message", "status", "ok")

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", logEntry["status"])
	}
}

func TestZerologLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologLogger(zerolog.New(&buf))

	zl.Error("error occurred", "code", 500, "error", errors.New("internal"))

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["code"] != float64(500) {
		t.Errorf("expected code=500, got %v", logEntry["code"])
	}
	if logEntry["error"] != "internal" {
		t.Errorf("expected error='internal', got %v", logEntry["error"])
	}
}

func TestZerologLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologLogger(zerolog.New(&buf))

	zl.Info("odd", "dangling", 7, "ignored")

	logEntry := decodeEntry(t, &buf)
	if _, ok := logEntry["7"]; ok {
		t.Error("non-string keys must be skipped")
	}
	if _, ok := logEntry["ignored"]; ok {
		t.Error("trailing key without value must be skipped")
	}
}

func TestZerologLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	root := NewZerologLogger(zerolog.New(&buf))

	root.Named("executor").Info("executor started", "tasks", 3)

	logEntry := decodeEntry(t, &buf)
	if logEntry["component"] != "executor" {
		t.Errorf("expected component='executor', got %v", logEntry["component"])
	}
	if logEntry["tasks"] != float64(3) {
		t.Errorf("expected tasks=3, got %v", logEntry["tasks"])
	}

	buf.Reset()
	root.Info("plain")
	if _, ok := decodeEntry(t, &buf)["component"]; ok {
		t.Error("Named must not change the parent logger")
	}
}

func TestZerologLogger_FieldOrderAndTypes(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologLogger(zerolog.New(&buf))

	zl.Info("step", "channel", "jobs", "elapsed", 1500*time.Millisecond, "closed", true, "err", nil)

	out := buf.String()
	if !strings.Contains(out, `"channel":"jobs","elapsed":1500,"closed":true,"err":null`) {
		t.Errorf("fields out of order or mistyped: %s", out)
	}
}

func TestZerologLogger_ImplementsInterfaces(t *testing.T) {
	zl := NewZerologLogger(zerolog.Nop())

	var _ channel.Logger = zl
	var _ executor.Logger = zl
	var _ dispatcher.Logger = zl
}
