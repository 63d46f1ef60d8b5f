package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"conflictmap/pkg/auth"
	"conflictmap/pkg/config"
	"conflictmap/pkg/ui"
)

const exampleHeader = `# conflictmap configuration
#
# Every value below is the built-in default. Remove what you do not change.
# Environment variables prefixed with CONFLICTMAP_ override this file, and
# command line flags override both. Secrets (the Mapbox token and the ACLED
# key) are not kept here: store them with 'conflictmap auth login'.
#
# Timeline labels use the "Jan 2006" form. from is inclusive, until is
# exclusive. A tile_url containing {accessToken} is filled from the stored
# mapbox token.

`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage conflictmap configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CONFLICTMAP_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'conflictmap.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source, and which
credentials are available. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields and value ranges
  - Input files and output directories`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "conflictmap.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Fprintln(ui.Output, "\nTo overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Output, "  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	data, err := exampleConfig()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Point boundary.shapefile at the country's admin boundary")
	fmt.Fprintln(ui.Output, "2. Run 'conflictmap config validate' to check the configuration")
	fmt.Fprintln(ui.Output, "3. Build the animation with 'conflictmap build'")
	return nil
}

// exampleConfig renders the defaults as YAML under a comment header
func exampleConfig() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(exampleHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("formatting configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nCredentials:")
	manager := credentials()
	for _, service := range auth.Services {
		cred, err := manager.Retrieve(service)
		if err != nil {
			fmt.Fprintf(ui.Output, "  %-7s (not set)\n", service)
			continue
		}
		fmt.Fprintf(ui.Output, "  %-7s %s\n", service, auth.Sanitize(cred).Token)
	}

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (CONFLICTMAP_*)")
	fmt.Fprintln(ui.Output, "3. .env and ~/.conflictmap.env")
	if configFile != "" {
		fmt.Fprintf(ui.Output, "4. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output, "4. Configuration file: (searched in standard locations)")
	}
	fmt.Fprintln(ui.Output, "5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = findConfigFile()
		if path == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			return fmt.Errorf("no configuration file found")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	warnings, problems := checkPaths(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Country: %s\n", cfg.Source.Country)
	fmt.Fprintf(ui.Output, "  Months: %s .. %s\n", cfg.Timeline.From, cfg.Timeline.Until)
	fmt.Fprintf(ui.Output, "  Frames: %s\n", cfg.Output.FramesDir)
	fmt.Fprintf(ui.Output, "  Animation: %s\n", cfg.Output.GIFPath)
	fmt.Fprintf(ui.Output, "  Capture workers: %d\n", cfg.Capture.Workers)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkPaths reports missing inputs as warnings and unusable outputs as errors
func checkPaths(cfg *config.Config) (warnings, problems []string) {
	if _, err := os.Stat(cfg.Source.DatasetPath); err != nil {
		if cfg.Source.SkipDownload {
			warnings = append(warnings, fmt.Sprintf("dataset %s is missing and will be downloaded", cfg.Source.DatasetPath))
		} else {
			warnings = append(warnings, fmt.Sprintf("dataset %s does not exist yet", cfg.Source.DatasetPath))
		}
	}
	if _, err := os.Stat(cfg.Boundary.Shapefile); err != nil {
		problems = append(problems, fmt.Sprintf("boundary shapefile %s: %v", cfg.Boundary.Shapefile, err))
	}

	if err := os.MkdirAll(cfg.Output.FramesDir, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create frames directory: %v", err))
	}
	if dir := filepath.Dir(cfg.Output.GIFPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create animation directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.Capture.BrowserBin != "" {
		if _, err := exec.LookPath(cfg.Capture.BrowserBin); err != nil {
			problems = append(problems, fmt.Sprintf("browser %s not found", cfg.Capture.BrowserBin))
		}
	}
	return warnings, problems
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	for _, path := range []string{
		"conflictmap.yaml",
		"conflictmap.yml",
		".conflictmap.yaml",
		".conflictmap.yml",
		filepath.Join(home, ".config", "conflictmap", "config.yaml"),
		filepath.Join(home, ".config", "conflictmap", "config.yml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
