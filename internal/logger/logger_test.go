package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(level zerolog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter(&buf, level), &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v (%q)", err, buf.String())
	}
	return entry
}

func TestNew_Environments(t *testing.T) {
	for _, env := range []string{"development", "production", "test"} {
		t.Run(env, func(t *testing.T) {
			logger := New(env)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}
			if logger.GetZerolog() == nil {
				t.Error("Expected zerolog instance to be available")
			}
		})
	}
}

func TestNew_DevelopmentEnablesDebug(t *testing.T) {
	if got := New("development").GetZerolog().GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("Expected debug level in development, got %s", got)
	}
	if got := New("production").GetZerolog().GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("Expected info level in production, got %s", got)
	}
}

func TestLevels_WriteFields(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *Logger)
		level string
		field string
	}{
		{
			name:  "debug",
			log:   func(l *Logger) { l.Debug("debug message", map[string]interface{}{"entity": "branch"}) },
			level: "debug",
			field: "entity",
		},
		{
			name:  "info",
			log:   func(l *Logger) { l.Info("info message", map[string]interface{}{"properties": 12}) },
			level: "info",
			field: "properties",
		},
		{
			name:  "warn",
			log:   func(l *Logger) { l.Warn("warn message", map[string]interface{}{"tokko_id": 42}) },
			level: "warn",
			field: "tokko_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(zerolog.DebugLevel)
			tt.log(logger)

			entry := decodeEntry(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("Expected level %s, got %v", tt.level, entry["level"])
			}
			if _, ok := entry[tt.field]; !ok {
				t.Errorf("Expected field %s in %v", tt.field, entry)
			}
		})
	}
}

func TestError(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Error("upsert failed", errors.New("connection reset"), map[string]interface{}{
		"entity": "property",
	})

	entry := decodeEntry(t, buf)
	if entry["error"] != "connection reset" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["entity"] != "property" {
		t.Errorf("Expected entity field, got %v", entry["entity"])
	}
}

func TestWith(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.With(map[string]interface{}{"user_id": "u-1"}).Info("test message", nil)

	entry := decodeEntry(t, buf)
	if entry["user_id"] != "u-1" {
		t.Errorf("Expected user_id from context, got %v", entry["user_id"])
	}
}

func TestWithRequestID(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.WithRequestID("req-12345").Info("request received", nil)

	entry := decodeEntry(t, buf)
	if entry["request_id"] != "req-12345" {
		t.Errorf("Expected request_id field, got %v", entry["request_id"])
	}
}

func TestWithComponent(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.WithComponent("photo_migration").Warn("download failed", nil)

	entry := decodeEntry(t, buf)
	if entry["component"] != "photo_migration" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
}

func TestLogLevels_InfoSuppressesDebug(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.InfoLevel)

	logger.Debug("debug message", nil)
	if strings.Contains(buf.String(), "debug message") {
		t.Error("Debug message should not appear at info level")
	}

	logger.Info("info message", nil)
	if !strings.Contains(buf.String(), "info message") {
		t.Error("Info message should appear at info level")
	}
}

func TestNop(t *testing.T) {
	logger := Nop()

	// Must not panic and must not write anywhere
	logger.Info("ignored", map[string]interface{}{"k": "v"})
	logger.Error("ignored", errors.New("boom"), nil)
	logger.With(nil).WithComponent("x").Warn("ignored", nil)
}

func TestNilFields(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}
