package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"conflictmap/pkg/acled"
	"conflictmap/pkg/auth"
	"conflictmap/pkg/checkpoint"
	"conflictmap/pkg/config"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/metrics"
	"conflictmap/pkg/pipeline"
	"conflictmap/pkg/present"
	"conflictmap/pkg/snapshot"
	"conflictmap/pkg/ui"
	"conflictmap/pkg/ui/tui"
)

var (
	datasetPath  string
	country      string
	skipDownload bool
	shapefile    string
	fromMonth    string
	untilMonth   string
	workers      int
	captureDelay time.Duration
	framesDir    string
	gifPath      string
	geojsonPath  string
	resumeRun    bool
	useTUI       bool
	stubCapture  bool
	servePresent bool
	presentAddr  string
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch the dataset, render every month and write the animation",
	Long: `Run the whole pipeline:

  1. download the curated ACLED workbook (skipped with --skip-download)
  2. load the country's events and dissolve its boundary
  3. render one map per month and capture it with a headless browser
  4. join the labelled frames into an animated GIF

The frames directory is wiped first unless --resume is set, in which case
months recorded in the checkpoint are reused.`,
	Example: `  # Build the default Ethiopia animation
  conflictmap build

  # Reuse a downloaded workbook and render a shorter range
  conflictmap build --skip-download --from "Jan 2017" --until "Jan 2018"

  # Resume an interrupted run with the terminal UI
  conflictmap build --resume --tui

  # Render blank frames without a browser
  conflictmap build --stub-capture`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.RunOptions{})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addInputFlags(buildCmd.Flags())
	addFrameFlags(buildCmd.Flags())
	addOutputFlags(buildCmd.Flags())

	// build is the default command, so the root takes its flags too
	addInputFlags(rootCmd.Flags())
	addFrameFlags(rootCmd.Flags())
	addOutputFlags(rootCmd.Flags())
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
		}
		return buildCmd.RunE(cmd, args)
	}
	rootCmd.Args = cobra.ArbitraryArgs
}

func addInputFlags(fs *pflag.FlagSet) {
	fs.StringVar(&datasetPath, "dataset", "", "path of the ACLED workbook (default: data/acled_data.xlsx)")
	fs.StringVar(&country, "country", "", "country whose events are drawn (default: Ethiopia)")
	fs.BoolVar(&skipDownload, "skip-download", false, "use the existing workbook instead of downloading it")
	fs.StringVar(&shapefile, "shapefile", "", "administrative boundary shapefile")
	fs.StringVar(&fromMonth, "from", "", `first month, inclusive (e.g. "Jan 2015")`)
	fs.StringVar(&untilMonth, "until", "", `last month, exclusive (e.g. "Feb 2019")`)
}

func addFrameFlags(fs *pflag.FlagSet) {
	fs.IntVar(&workers, "workers", 0, "number of concurrent capture workers")
	fs.DurationVar(&captureDelay, "delay", 0, "wait after the page loads before capturing (e.g. 5s)")
	fs.StringVar(&framesDir, "frames-dir", "", "directory for the month frames (default: output/gif)")
	fs.BoolVar(&resumeRun, "resume", false, "reuse frames recorded in the checkpoint")
	fs.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	fs.BoolVar(&stubCapture, "stub-capture", false, "capture blank frames without launching a browser")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&gifPath, "output", "o", "", "animation output path (default: conflict_ethiopia.gif)")
	fs.StringVar(&geojsonPath, "geojson", "", "also write the loaded events as GeoJSON")
	fs.BoolVar(&servePresent, "present", false, "serve the animation after the build")
	fs.StringVar(&presentAddr, "addr", "", "presentation server address (default: 127.0.0.1:8085)")
}

// collectFlags maps the flags set on cmd onto config override keys.
// Flags left at their defaults are omitted so file and env values survive.
func collectFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	fs := cmd.Flags()
	flags := make(map[string]interface{})

	for _, name := range []string{"dataset", "country", "shapefile", "from", "until", "frames-dir", "output", "geojson", "addr"} {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}
	for _, name := range []string{"skip-download", "resume"} {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}
	if fs.Lookup("workers") != nil && fs.Changed("workers") {
		flags["workers"] = workers
	}
	if fs.Lookup("delay") != nil && fs.Changed("delay") {
		flags["delay"] = captureDelay
	}
	if fs.Changed("notifications") {
		flags["enabled"] = notifications
	}

	switch {
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	case fs.Changed("log-level"):
		flags["log-level"] = logLevel
	}
	return flags, nil
}

// loadConfig loads the configuration for cmd and initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags, err := collectFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

func credentials() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential stores unavailable, reading environment only")
		return auth.NewManagerWithStores(auth.NewEnvironmentStore())
	}
	return manager
}

// session holds the collaborators of one command invocation
type session struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
	closers  []func()
}

// openSession wires a pipeline for cfg. A browser is launched only when
// capture is set and --stub-capture is not.
func openSession(ctx context.Context, cfg *config.Config, reporter ui.Reporter, capture bool) (*session, error) {
	log := logger.GetLogger()
	s := &session{cfg: cfg, metrics: metrics.NewMetrics()}

	creds := credentials()
	key, email := creds.ACLED()
	fetcher := acled.NewClientFromConfig(cfg, acled.Credentials{Key: key, Email: email}, log)

	var capturer snapshot.Capturer = snapshot.Stub{Width: cfg.Capture.Width, Height: cfg.Capture.Height}
	if capture && !stubCapture {
		browser, err := snapshot.NewBrowser(ctx, snapshot.BrowserOptionsFromConfig(cfg.Capture, log))
		if err != nil {
			return nil, fmt.Errorf("starting browser: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := browser.Close(); err != nil {
				log.WithError(err).Warn("Failed to close browser")
			}
		})
		capturer = browser
	}

	checkpoints, err := checkpoint.NewManager(cfg.Source.Country)
	if err != nil {
		s.Close()
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "conflictmap-")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	s.closers = append(s.closers, func() { _ = os.RemoveAll(tempDir) })

	s.pipeline, err = pipeline.New(cfg, pipeline.Options{
		Fetcher:     fetcher,
		Capturer:    capturer,
		Reporter:    reporter,
		Notifier:    ui.NewNotifier(cfg.Notifications),
		Metrics:     s.metrics,
		Checkpoints: checkpoints,
		AccessToken: creds.AccessToken(),
		TempDir:     tempDir,
		Logger:      log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the session's resources in reverse order
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// frameTotal returns the number of months the configured range selects
func frameTotal(cfg *config.Config) (int, error) {
	probe, err := pipeline.New(cfg, pipeline.Options{Capturer: snapshot.Stub{}, Logger: logger.NewNopLogger()})
	if err != nil {
		return 0, err
	}
	_, selected, err := probe.Timeline()
	if err != nil {
		return 0, err
	}
	return len(selected), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type outcome struct {
	summary *present.RunSummary
	err     error
}

// runPipeline runs the pipeline for build and frames, with either the
// progress display or the terminal UI
func runPipeline(cmd *cobra.Command, ro pipeline.RunOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ro.Resume = cfg.Output.Resume
	ro.SkipDownload = cfg.Source.SkipDownload

	ctx, stop := signalContext()
	defer stop()

	total, err := frameTotal(cfg)
	if err != nil {
		return err
	}

	var out outcome
	var s *session
	if useTUI {
		terminal := tui.NewTUI(cfg.Capture.Workers, total)
		s, err = openSession(ctx, cfg, terminal, true)
		if err != nil {
			return err
		}
		defer s.Close()

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Run the pipeline in a goroutine
		runDone := make(chan outcome, 1)
		go func() {
			summary, err := s.pipeline.Run(runCtx, ro)
			runDone <- outcome{summary, err}
		}()

		tuiDone := make(chan error, 1)
		go func() {
			tuiDone <- terminal.Start()
		}()

		// Wait for either to finish
		select {
		case out = <-runDone:
			terminal.Stop()
			<-tuiDone
		case err := <-tuiDone:
			if err != nil {
				logger.WithError(err).Error("TUI failed")
			}
			cancel()
			out = <-runDone
		}
	} else {
		var reporter ui.Reporter = ui.NopReporter{}
		if !quiet {
			ui.PrintInfo("Country", cfg.Source.Country)
			ui.PrintInfo("Months", fmt.Sprintf("%s .. %s (%d frames)", cfg.Timeline.From, cfg.Timeline.Until, total))
			reporter = ui.NewProgressDisplay(cfg.Source.Country, total, verbose)
		}
		s, err = openSession(ctx, cfg, reporter, true)
		if err != nil {
			return err
		}
		defer s.Close()
		out.summary, out.err = s.pipeline.Run(ctx, ro)
	}

	if out.summary != nil {
		present.Summary(ui.Output, *out.summary)
	}
	if out.err != nil {
		return out.err
	}
	if ro.FramesOnly {
		ui.PrintSuccess(fmt.Sprintf("Frames written to %s", cfg.Output.FramesDir))
		return nil
	}
	ui.PrintSuccess(fmt.Sprintf("Animation written to %s", out.summary.GIFPath))

	if servePresent {
		return serve(ctx, cfg, s.metrics)
	}
	return nil
}
