package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		envLevel string
		want     LogLevel
	}{
		{"Debug level", "DEBUG", DEBUG},
		{"Info level", "INFO", INFO},
		{"Warn level", "WARN", WARN},
		{"Error level", "ERROR", ERROR},
		{"Empty defaults to Info", "", INFO},
		{"Invalid defaults to Info", "INVALID", INFO},
		{"Case insensitive", "debug", DEBUG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("LOG_LEVEL", tt.envLevel)
			defer os.Unsetenv("LOG_LEVEL")

			assert.Equal(t, tt.want, getLogLevel())
		})
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		setLevel  LogLevel
		logFunc   func(string, string, ...interface{})
		shouldLog bool
		level     string
	}{
		{"Debug logs when Debug", DEBUG, Debug, true, "debug"},
		{"Debug doesn't log when Info", INFO, Debug, false, ""},
		{"Info logs when Info", INFO, Info, true, "info"},
		{"Info doesn't log when Error", ERROR, Info, false, ""},
		{"Warn logs when Warn", WARN, Warn, true, "warn"},
		{"Error always logs", ERROR, Error, true, "error"},
		{"Error logs when Debug", DEBUG, Error, true, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			restore := SetOutput(&buf)
			defer restore()
			SetLevel(tt.setLevel)
			defer SetLevel(INFO)

			tt.logFunc("TEST", "count: %d", 42)

			output := strings.TrimSpace(buf.String())
			if !tt.shouldLog {
				assert.Empty(t, output)
				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(output), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "TEST", entry["namespace"])
			assert.Equal(t, "count: 42", entry["message"])
		})
	}
}

func TestFatal(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Fatal("TEST", "fatal error")

	assert.Contains(t, buf.String(), `"fatal":true`)
	assert.Contains(t, buf.String(), "fatal error")
}
