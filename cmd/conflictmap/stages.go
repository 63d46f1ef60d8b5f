package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"conflictmap/pkg/pipeline"
	"conflictmap/pkg/ui"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the curated ACLED workbook",
	Long: `Resolve the download link on the ACLED curated data page and save the
workbook to the dataset path. An existing file is only replaced once the new
download has completed.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

// monthsCmd represents the months command
var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "Print the number of events in each month of the range",
	Args:  cobra.NoArgs,
	RunE:  runMonths,
}

// framesCmd represents the frames command
var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Render the month frames without building the animation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.RunOptions{FramesOnly: true})
	},
}

// animateCmd represents the animate command
var animateCmd = &cobra.Command{
	Use:   "animate",
	Short: "Join the frames directory into the animated GIF",
	Long: `Collect every PNG frame in the frames directory in chronological order and
encode them into the animation. Frames are not re-rendered.`,
	Args: cobra.NoArgs,
	RunE: runAnimate,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(monthsCmd)
	rootCmd.AddCommand(framesCmd)
	rootCmd.AddCommand(animateCmd)

	fetchCmd.Flags().StringVar(&datasetPath, "dataset", "", "path of the ACLED workbook")

	addInputFlags(monthsCmd.Flags())

	addInputFlags(framesCmd.Flags())
	addFrameFlags(framesCmd.Flags())

	animateCmd.Flags().StringVar(&framesDir, "frames-dir", "", "directory for the month frames (default: output/gif)")
	animateCmd.Flags().StringVarP(&gifPath, "output", "o", "", "animation output path (default: conflict_ethiopia.gif)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, cfg, nil, false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.pipeline.Fetch(ctx, false)
	if err != nil {
		return err
	}
	ui.PrintInfo("Source", res.DownloadURL)
	ui.PrintSuccess(fmt.Sprintf("Dataset saved to %s (%d bytes)", res.Path, res.Bytes))
	return nil
}

func runMonths(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, cfg, nil, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.pipeline.Fetch(ctx, cfg.Source.SkipDownload); err != nil {
		return err
	}
	in, err := s.pipeline.Prepare(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(ui.Output)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s: %d events", in.Table.Country, len(in.Table.Events)))
	t.AppendHeader(table.Row{"Month", "Events"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	drawn := 0
	for _, mc := range in.MonthCounts() {
		t.AppendRow(table.Row{mc.Label, mc.Events})
		drawn += mc.Events
	}
	t.AppendFooter(table.Row{"Drawn", drawn})
	t.Render()
	return nil
}

func runAnimate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, cfg, nil, false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.pipeline.Animate()
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Animation written to %s (%d frames, %d bytes)", res.Path, res.Frames, res.Bytes))
	return nil
}
