package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/config"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addInputFlags(cmd.Flags())
	addFrameFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	return cmd
}

func TestCollectFlagsOnlyChanged(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--country", "Kenya",
		"--workers", "2",
		"--delay", "3s",
		"--resume",
		"-o", "kenya.gif",
	}))

	flags, err := collectFlags(cmd)
	require.NoError(t, err)

	want := map[string]interface{}{
		"country": "Kenya",
		"workers": 2,
		"delay":   3 * time.Second,
		"resume":  true,
		"output":  "kenya.gif",
	}
	if diff := cmp.Diff(want, flags); diff != "" {
		t.Errorf("collectFlags() mismatch (-want +got):\n%s", diff)
	}

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, "Kenya", cfg.Source.Country)
	assert.Equal(t, 2, cfg.Capture.Workers)
	assert.Equal(t, 3*time.Second, cfg.Capture.Delay)
	assert.True(t, cfg.Output.Resume)
	assert.Equal(t, "kenya.gif", cfg.Output.GIFPath)
	assert.Equal(t, "output/gif", cfg.Output.FramesDir)
}

func TestCollectFlagsEmpty(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	flags, err := collectFlags(cmd)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestCollectFlagsSubsetCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "animate"}
	cmd.Flags().StringVar(&framesDir, "frames-dir", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--frames-dir", "frames"}))

	flags, err := collectFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"frames-dir": "frames"}, flags)
}

func TestExampleConfigRoundTrips(t *testing.T) {
	data, err := exampleConfig()
	require.NoError(t, err)
	assert.Contains(t, string(data), "# conflictmap configuration")

	path := filepath.Join(t.TempDir(), "conflictmap.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	got := &config.Config{}
	require.NoError(t, got.LoadFromFile(path))
	if diff := cmp.Diff(config.DefaultConfig(), got); diff != "" {
		t.Errorf("example config mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, got.Validate())
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	shp := filepath.Join(dir, "boundary.shp")
	require.NoError(t, os.WriteFile(shp, []byte("x"), 0644))

	cfg := config.DefaultConfig()
	cfg.Source.DatasetPath = filepath.Join(dir, "missing.xlsx")
	cfg.Boundary.Shapefile = shp
	cfg.Output.FramesDir = filepath.Join(dir, "output", "gif")
	cfg.Output.GIFPath = filepath.Join(dir, "out", "anim.gif")

	warnings, problems := checkPaths(cfg)
	assert.Len(t, warnings, 1)
	assert.Empty(t, problems)
	assert.DirExists(t, cfg.Output.FramesDir)
	assert.DirExists(t, filepath.Dir(cfg.Output.GIFPath))

	cfg.Boundary.Shapefile = filepath.Join(dir, "nope.shp")
	cfg.Capture.BrowserBin = filepath.Join(dir, "no-such-chromium")
	_, problems = checkPaths(cfg)
	assert.Len(t, problems, 2)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"animate", "auth", "build", "config", "fetch", "frames", "months", "present"}
	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" {
			continue
		}
		got = append(got, c.Name())
	}
	assert.Equal(t, want, got)
}
