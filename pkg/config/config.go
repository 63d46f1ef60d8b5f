package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the conflict map pipeline
type Config struct {
	// Dataset source
	Source SourceConfig `yaml:"source" json:"source"`

	// Administrative boundary
	Boundary BoundaryConfig `yaml:"boundary" json:"boundary"`

	// Month range
	Timeline TimelineConfig `yaml:"timeline" json:"timeline"`

	// Map rendering
	Map MapConfig `yaml:"map" json:"map"`

	// Headless browser capture
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// Output files
	Output OutputConfig `yaml:"output" json:"output"`

	// Presenter server
	Present PresentConfig `yaml:"present" json:"present"`

	// Retry behaviour for network operations
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig describes where the event dataset comes from
type SourceConfig struct {
	PageURL      string        `yaml:"page_url" json:"page_url"`
	LinkSelector string        `yaml:"link_selector" json:"link_selector"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	DatasetPath  string        `yaml:"dataset_path" json:"dataset_path"`
	Country      string        `yaml:"country" json:"country"`
	SkipDownload bool          `yaml:"skip_download" json:"skip_download"`
}

// BoundaryConfig points at the administrative boundary shapefile
type BoundaryConfig struct {
	Shapefile     string `yaml:"shapefile" json:"shapefile"`
	DissolveField string `yaml:"dissolve_field" json:"dissolve_field"`
}

// TimelineConfig holds the month index origin and the animated range.
// From is inclusive, Until is exclusive. Both use the "Jan 2006" label form.
type TimelineConfig struct {
	Origin string `yaml:"origin" json:"origin"`
	From   string `yaml:"from" json:"from"`
	Until  string `yaml:"until" json:"until"`
}

// MapConfig holds Leaflet map options
type MapConfig struct {
	Zoom            int    `yaml:"zoom" json:"zoom"`
	TileURL         string `yaml:"tile_url" json:"tile_url"`
	TileAttribution string `yaml:"tile_attribution" json:"tile_attribution"`
	PopupWidth      int    `yaml:"popup_width" json:"popup_width"`
	PopupHeight     int    `yaml:"popup_height" json:"popup_height"`
}

// CaptureConfig holds headless browser and label options
type CaptureConfig struct {
	Width            int           `yaml:"width" json:"width"`
	Height           int           `yaml:"height" json:"height"`
	Delay            time.Duration `yaml:"delay" json:"delay"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	Headless         bool          `yaml:"headless" json:"headless"`
	BrowserBin       string        `yaml:"browser_bin" json:"browser_bin"`
	ControlURL       string        `yaml:"control_url" json:"control_url"`
	Workers          int           `yaml:"workers" json:"workers"`
	CapturesPerMin   int           `yaml:"captures_per_minute" json:"captures_per_minute"`
	MaxFailures      int           `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
	LabelFontSize    float64       `yaml:"label_font_size" json:"label_font_size"`
	LabelColor       string        `yaml:"label_color" json:"label_color"`
	LabelRightOffset int           `yaml:"label_right_offset" json:"label_right_offset"`
	LabelTop         int           `yaml:"label_top" json:"label_top"`
}

// OutputConfig holds output file locations
type OutputConfig struct {
	FramesDir  string        `yaml:"frames_dir" json:"frames_dir"`
	GIFPath    string        `yaml:"gif_path" json:"gif_path"`
	FrameDelay time.Duration `yaml:"frame_delay" json:"frame_delay"`
	GeoJSON    string        `yaml:"geojson" json:"geojson"`
	Resume     bool          `yaml:"resume" json:"resume"`
}

// PresentConfig holds the presenter server options
type PresentConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// RetryConfig holds retry configuration for network operations
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the pipeline's stock constants
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			PageURL:      "https://www.acleddata.com/curated-data-files/",
			LinkSelector: "a.download-button",
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Timeout:      2 * time.Minute,
			DatasetPath:  "data/acled_data.xlsx",
			Country:      "Ethiopia",
		},
		Boundary: BoundaryConfig{
			Shapefile:     "data/ethiopia/ethiopia.shp",
			DissolveField: "COUNTRY",
		},
		Timeline: TimelineConfig{
			Origin: "Jan 1998",
			From:   "Jan 2015",
			Until:  "Feb 2019",
		},
		Map: MapConfig{
			Zoom:            5,
			TileURL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}.png",
			TileAttribution: "&copy; OpenStreetMap contributors &copy; CARTO",
			PopupWidth:      250,
			PopupHeight:     200,
		},
		Capture: CaptureConfig{
			Width:            1280,
			Height:           800,
			Delay:            5 * time.Second,
			NavigateTimeout:  30 * time.Second,
			Headless:         true,
			Workers:          1,
			CapturesPerMin:   30,
			MaxFailures:      3,
			LabelFontSize:    40,
			LabelColor:       "#ffffff",
			LabelRightOffset: 400,
			LabelTop:         20,
		},
		Output: OutputConfig{
			FramesDir:  "output/gif",
			GIFPath:    "conflict_ethiopia.gif",
			FrameDelay: 2 * time.Second,
		},
		Present: PresentConfig{
			Addr:   "127.0.0.1:8085",
			Width:  800,
			Height: 800,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from CONFLICTMAP_* environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CONFLICTMAP_PAGE_URL"); v != "" {
		c.Source.PageURL = v
	}
	if v := os.Getenv("CONFLICTMAP_DATASET_PATH"); v != "" {
		c.Source.DatasetPath = v
	}
	if v := os.Getenv("CONFLICTMAP_COUNTRY"); v != "" {
		c.Source.Country = v
	}
	if v := os.Getenv("CONFLICTMAP_SKIP_DOWNLOAD"); v != "" {
		c.Source.SkipDownload = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CONFLICTMAP_SHAPEFILE"); v != "" {
		c.Boundary.Shapefile = v
	}
	if v := os.Getenv("CONFLICTMAP_FROM"); v != "" {
		c.Timeline.From = v
	}
	if v := os.Getenv("CONFLICTMAP_UNTIL"); v != "" {
		c.Timeline.Until = v
	}
	if v := os.Getenv("CONFLICTMAP_TILE_URL"); v != "" {
		c.Map.TileURL = v
	}
	if v := os.Getenv("CONFLICTMAP_BROWSER_BIN"); v != "" {
		c.Capture.BrowserBin = v
	}
	if v := os.Getenv("CONFLICTMAP_CONTROL_URL"); v != "" {
		c.Capture.ControlURL = v
	}
	if v := os.Getenv("CONFLICTMAP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CONFLICTMAP_WORKERS %q: %w", v, err)
		}
		if n > 0 {
			c.Capture.Workers = n
		}
	}
	if v := os.Getenv("CONFLICTMAP_CAPTURE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CONFLICTMAP_CAPTURE_DELAY %q: %w", v, err)
		}
		c.Capture.Delay = d
	}
	if v := os.Getenv("CONFLICTMAP_FRAMES_DIR"); v != "" {
		c.Output.FramesDir = v
	}
	if v := os.Getenv("CONFLICTMAP_GIF_PATH"); v != "" {
		c.Output.GIFPath = v
	}
	if v := os.Getenv("CONFLICTMAP_PRESENT_ADDR"); v != "" {
		c.Present.Addr = v
	}
	if v := os.Getenv("CONFLICTMAP_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CONFLICTMAP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"conflictmap.yaml",
		"conflictmap.yml",
		".conflictmap.yaml",
		".conflictmap.yml",
		filepath.Join(home, ".config", "conflictmap", "config.yaml"),
		filepath.Join(home, ".config", "conflictmap", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Source.PageURL == "" && !c.Source.SkipDownload {
		errs = append(errs, errors.New("source page URL is required unless skip_download is set"))
	}
	if c.Source.LinkSelector == "" {
		errs = append(errs, errors.New("link selector is required"))
	}
	if c.Source.DatasetPath == "" {
		errs = append(errs, errors.New("dataset path is required"))
	}
	if c.Source.Country == "" {
		errs = append(errs, errors.New("country is required"))
	}
	if c.Boundary.Shapefile == "" {
		errs = append(errs, errors.New("boundary shapefile is required"))
	}

	for name, label := range map[string]string{
		"origin": c.Timeline.Origin,
		"from":   c.Timeline.From,
		"until":  c.Timeline.Until,
	} {
		if _, err := time.Parse("Jan 2006", label); err != nil {
			errs = append(errs, fmt.Errorf("timeline %s %q must look like \"Jan 2006\"", name, label))
		}
	}

	if c.Map.Zoom < 0 || c.Map.Zoom > 19 {
		errs = append(errs, errors.New("map zoom must be between 0 and 19"))
	}
	if c.Map.TileURL == "" {
		errs = append(errs, errors.New("tile URL is required"))
	}

	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, errors.New("capture viewport must be positive"))
	}
	if c.Capture.Delay < 0 {
		errs = append(errs, errors.New("capture delay cannot be negative"))
	}
	if c.Capture.Workers <= 0 {
		errs = append(errs, errors.New("capture workers must be positive"))
	}
	if c.Capture.Workers > 8 {
		errs = append(errs, errors.New("capture workers should not exceed 8"))
	}
	if c.Capture.CapturesPerMin <= 0 {
		errs = append(errs, errors.New("captures per minute must be positive"))
	}
	if c.Capture.LabelFontSize <= 0 {
		errs = append(errs, errors.New("label font size must be positive"))
	}

	if c.Output.FramesDir == "" {
		errs = append(errs, errors.New("frames directory is required"))
	}
	if c.Output.GIFPath == "" {
		errs = append(errs, errors.New("gif path is required"))
	}
	if c.Output.FrameDelay <= 0 {
		errs = append(errs, errors.New("frame delay must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map override values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["dataset"].(string); ok && v != "" {
		c.Source.DatasetPath = v
	}
	if v, ok := flags["country"].(string); ok && v != "" {
		c.Source.Country = v
	}
	if v, ok := flags["skip-download"].(bool); ok {
		c.Source.SkipDownload = v
	}
	if v, ok := flags["shapefile"].(string); ok && v != "" {
		c.Boundary.Shapefile = v
	}
	if v, ok := flags["from"].(string); ok && v != "" {
		c.Timeline.From = v
	}
	if v, ok := flags["until"].(string); ok && v != "" {
		c.Timeline.Until = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Capture.Workers = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v >= 0 {
		c.Capture.Delay = v
	}
	if v, ok := flags["frames-dir"].(string); ok && v != "" {
		c.Output.FramesDir = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.GIFPath = v
	}
	if v, ok := flags["geojson"].(string); ok && v != "" {
		c.Output.GeoJSON = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Output.Resume = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Present.Addr = v
	}
	if v, ok := flags["enabled"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".conflictmap.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
