package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Source.Country != "Ethiopia" {
		t.Errorf("Expected default country to be Ethiopia, got %s", config.Source.Country)
	}
	if config.Map.Zoom != 5 {
		t.Errorf("Expected default zoom to be 5, got %d", config.Map.Zoom)
	}
	if config.Capture.Delay != 5*time.Second {
		t.Errorf("Expected default capture delay to be 5s, got %v", config.Capture.Delay)
	}
	if config.Output.FrameDelay != 2*time.Second {
		t.Errorf("Expected default frame delay to be 2s, got %v", config.Output.FrameDelay)
	}

	assert.Equal(t, "Jan 2015", config.Timeline.From)
	assert.Equal(t, "Feb 2019", config.Timeline.Until)
	assert.Equal(t, "a.download-button", config.Source.LinkSelector)
	assert.NoError(t, config.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFLICTMAP_COUNTRY", "Somalia")
	t.Setenv("CONFLICTMAP_DATASET_PATH", "/tmp/events.xlsx")
	t.Setenv("CONFLICTMAP_WORKERS", "4")
	t.Setenv("CONFLICTMAP_CAPTURE_DELAY", "750ms")
	t.Setenv("CONFLICTMAP_SKIP_DOWNLOAD", "true")
	t.Setenv("CONFLICTMAP_NOTIFICATIONS_ENABLED", "false")
	t.Setenv("CONFLICTMAP_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "Somalia", config.Source.Country)
	assert.Equal(t, "/tmp/events.xlsx", config.Source.DatasetPath)
	assert.Equal(t, 4, config.Capture.Workers)
	assert.Equal(t, 750*time.Millisecond, config.Capture.Delay)
	assert.True(t, config.Source.SkipDownload)
	assert.False(t, config.Notifications.Enabled)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("CONFLICTMAP_WORKERS", "many")

	config := DefaultConfig()
	assert.Error(t, config.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "conflictmap.yaml")

		testConfig := `
source:
  country: Kenya
  dataset_path: /data/kenya.xlsx
timeline:
  from: Mar 2016
  until: Jun 2016
map:
  zoom: 6
capture:
  delay: 2s
  workers: 2
output:
  frames_dir: /tmp/frames
  frame_delay: 500ms
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "Kenya", cfg.Source.Country)
		assert.Equal(t, "/data/kenya.xlsx", cfg.Source.DatasetPath)
		assert.Equal(t, "Mar 2016", cfg.Timeline.From)
		assert.Equal(t, "Jun 2016", cfg.Timeline.Until)
		assert.Equal(t, 6, cfg.Map.Zoom)
		assert.Equal(t, 2*time.Second, cfg.Capture.Delay)
		assert.Equal(t, 2, cfg.Capture.Workers)
		assert.Equal(t, "/tmp/frames", cfg.Output.FramesDir)
		assert.Equal(t, 500*time.Millisecond, cfg.Output.FrameDelay)
		assert.Equal(t, "warn", cfg.Logging.Level)

		// Untouched sections keep their defaults
		assert.Equal(t, "a.download-button", cfg.Source.LinkSelector)
		assert.Equal(t, 250, cfg.Map.PopupWidth)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("source: [unclosed"), 0644))

		cfg := DefaultConfig()
		assert.Error(t, cfg.LoadFromFile(configPath))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing country",
			modify:  func(c *Config) { c.Source.Country = "" },
			wantErr: true,
		},
		{
			name:    "bad month label",
			modify:  func(c *Config) { c.Timeline.From = "2015-01" },
			wantErr: true,
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Capture.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "too many workers",
			modify:  func(c *Config) { c.Capture.Workers = 20 },
			wantErr: true,
		},
		{
			name:    "zoom out of range",
			modify:  func(c *Config) { c.Map.Zoom = 25 },
			wantErr: true,
		},
		{
			name:    "zero frame delay",
			modify:  func(c *Config) { c.Output.FrameDelay = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name: "skip download without page url",
			modify: func(c *Config) {
				c.Source.PageURL = ""
				c.Source.SkipDownload = true
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "conflictmap.yaml")

	cfg := DefaultConfig()
	cfg.Source.Country = "Sudan"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "Sudan", loaded.Source.Country)
	assert.Equal(t, cfg.Capture.Delay, loaded.Capture.Delay)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"country":       "Mali",
		"from":          "Jan 2018",
		"workers":       3,
		"delay":         time.Second,
		"output":        "mali.gif",
		"resume":        true,
		"skip-download": true,
		"log-level":     "error",
	})

	assert.Equal(t, "Mali", cfg.Source.Country)
	assert.Equal(t, "Jan 2018", cfg.Timeline.From)
	assert.Equal(t, 3, cfg.Capture.Workers)
	assert.Equal(t, time.Second, cfg.Capture.Delay)
	assert.Equal(t, "mali.gif", cfg.Output.GIFPath)
	assert.True(t, cfg.Output.Resume)
	assert.True(t, cfg.Source.SkipDownload)
	assert.Equal(t, "error", cfg.Logging.Level)

	// Nil map leaves everything alone
	untouched := DefaultConfig()
	untouched.MergeCommandLineFlags(nil)
	assert.Equal(t, DefaultConfig(), untouched)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "conflictmap.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("source:\n  country: Kenya\ncapture:\n  workers: 2\n"), 0644))

	t.Setenv("CONFLICTMAP_WORKERS", "3")

	cfg, err := Load(configPath, map[string]interface{}{"country": "Uganda"})
	require.NoError(t, err)

	// flag beats file, env beats file
	assert.Equal(t, "Uganda", cfg.Source.Country)
	assert.Equal(t, 3, cfg.Capture.Workers)
}

func TestLoadValidationFailure(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = Load("", map[string]interface{}{"log-level": "loud"})
	assert.Error(t, err)
}
