package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "file output",
			cfg:     &config.LoggingConfig{Level: "info", File: filepath.Join(os.TempDir(), "conflictmap-test", "run.log")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
			if tt.cfg.File != "" {
				os.RemoveAll(filepath.Dir(tt.cfg.File))
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	for _, tc := range []struct {
		name string
		log  func(string)
	}{
		{"debug", logger.Debug},
		{"info", logger.Info},
		{"warn", logger.Warn},
		{"error", logger.Error},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tc.log(tc.name + " message")
			assert.Contains(t, buf.String(), tc.name+" message")
			assert.Contains(t, buf.String(), `"level":"`+tc.name+`"`)
		})
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	child := parent.WithField("stage", "capture")
	child.WithField("month", "Jan 2015").Info("frame")

	output := buf.String()
	assert.Contains(t, output, `"stage":"capture"`)
	assert.Contains(t, output, `"month":"Jan 2015"`)

	buf.Reset()
	parent.Info("plain")
	assert.NotContains(t, buf.String(), "stage")
	assert.Empty(t, parent.fields)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	assert.Same(t, logger, logger.WithError(nil))

	logger.WithError(errors.New("tiles timed out")).Error("capture failed")
	output := buf.String()
	assert.Contains(t, output, "capture failed")
	assert.Contains(t, output, "tiles timed out")
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("events loaded", map[string]interface{}{
		"country": "Ethiopia",
		"events":  1200,
		"ratio":   0.5,
		"resumed": false,
		"elapsed": 3 * time.Second,
	})

	output := buf.String()
	assert.Contains(t, output, `"country":"Ethiopia"`)
	assert.Contains(t, output, `"events":1200`)
	assert.Contains(t, output, `"ratio":0.5`)
	assert.Contains(t, output, `"resumed":false`)
	assert.Contains(t, output, `"elapsed":3000`)
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())

	// Convenience functions must not panic
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	WithField("key", "value").Info("with field")
	WithFields(map[string]interface{}{"k1": "v1"}).Info("with fields")
	WithError(errors.New("x")).Debug("with error")
}

func TestTestLoggerCapturesFields(t *testing.T) {
	tl := NewTestLogger()

	tl.WithField("month", "Feb 2016").WithError(errors.New("boom")).Error("frame failed")
	tl.Info("done")

	messages := tl.GetMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "ERROR", messages[0].Level)
	assert.Equal(t, "Feb 2016", messages[0].Fields["month"])
	assert.EqualError(t, messages[0].Error, "boom")
	assert.True(t, tl.HasError())
	assert.True(t, tl.HasMessage("done"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}
