package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"conflictmap/internal/renderpool"
	"conflictmap/pkg/acled"
	"conflictmap/pkg/animate"
	"conflictmap/pkg/boundary"
	"conflictmap/pkg/checkpoint"
	"conflictmap/pkg/config"
	"conflictmap/pkg/dataset"
	errs "conflictmap/pkg/errors"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/mapview"
	"conflictmap/pkg/metrics"
	"conflictmap/pkg/months"
	"conflictmap/pkg/present"
	"conflictmap/pkg/ratelimit"
	"conflictmap/pkg/snapshot"
	"conflictmap/pkg/storage"
	"conflictmap/pkg/ui"
)

// Stage names used in logs, metrics and the run summary
const (
	StageFetch    = "fetch"
	StageLoad     = "load"
	StageFrames   = "frames"
	StageAnimate  = "animate"
	StageGeoJSON  = "geojson"
	pausePollTime = 250 * time.Millisecond
)

// Fetcher downloads the dataset workbook to dest
type Fetcher interface {
	Fetch(ctx context.Context, dest string) (*acled.FetchResult, error)
}

// Options carries the collaborators of a Pipeline. Only Capturer is required.
type Options struct {
	Fetcher  Fetcher
	Capturer snapshot.Capturer
	// Reporter receives frame progress. A ui.TUI also gets pacing and
	// circuit updates and can pause submission.
	Reporter    ui.Reporter
	Notifier    *ui.Notifier
	Metrics     *metrics.Metrics
	Checkpoints *checkpoint.Manager
	Clock       clockwork.Clock
	// AccessToken fills the tile URL {accessToken} placeholder
	AccessToken string
	// TempDir holds the per-worker map pages
	TempDir string
	Logger  logger.Logger
}

// RunOptions selects how much of the pipeline Run executes
type RunOptions struct {
	Resume       bool
	SkipDownload bool
	// FramesOnly stops after the frames stage
	FramesOnly bool
}

// Inputs is everything the frames stage needs from the load stage
type Inputs struct {
	Table    *dataset.Table
	Boundary *boundary.Boundary
	Index    *months.Index
	Months   []int
}

// MonthCounts returns the number of events in each selected month
func (in *Inputs) MonthCounts() []present.MonthCount {
	counts := make([]present.MonthCount, 0, len(in.Months))
	for _, i := range in.Months {
		counts = append(counts, present.MonthCount{
			Label:  in.Index.Label(i),
			Events: len(in.Index.Select(in.Table.Events, i)),
		})
	}
	return counts
}

// FrameStats summarises a frames stage
type FrameStats struct {
	RunID    string
	Months   []present.MonthCount
	Rendered int
	Skipped  int
	Failed   int
}

// Pipeline runs fetch, load, frames and animate for one country
type Pipeline struct {
	cfg         *config.Config
	fetcher     Fetcher
	capturer    snapshot.Capturer
	reporter    ui.Reporter
	notifier    *ui.Notifier
	metrics     *metrics.Metrics
	checkpoints *checkpoint.Manager
	clock       clockwork.Clock
	token       string
	tempDir     string
	logger      logger.Logger

	mu     sync.Mutex
	stages []present.StageTiming
}

// New creates a pipeline for cfg
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline config is required")
	}
	if opts.Capturer == nil {
		return nil, errors.New("pipeline capturer is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = ui.NopReporter{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Pipeline{
		cfg:         cfg,
		fetcher:     opts.Fetcher,
		capturer:    opts.Capturer,
		reporter:    reporter,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		checkpoints: opts.Checkpoints,
		clock:       clock,
		token:       opts.AccessToken,
		tempDir:     opts.TempDir,
		logger:      log.WithField("component", "pipeline"),
	}, nil
}

// Run executes every stage in order and returns the run summary. A summary
// is returned alongside a frames stage error so partial progress can be shown.
func (p *Pipeline) Run(ctx context.Context, ro RunOptions) (summary *present.RunSummary, err error) {
	started := time.Now()
	if p.metrics != nil {
		p.metrics.PipelineRunning.Set(1)
		defer p.metrics.PipelineRunning.Set(0)
	}
	defer func() {
		if err != nil && p.notifier != nil {
			p.notifier.SendError("Conflict map failed", err.Error())
		}
	}()

	p.logger.InfoWithFields("Pipeline starting", map[string]interface{}{
		"country": p.cfg.Source.Country,
		"from":    p.cfg.Timeline.From,
		"until":   p.cfg.Timeline.Until,
		"resume":  ro.Resume,
	})

	if _, err := p.Fetch(ctx, ro.SkipDownload); err != nil {
		return nil, err
	}

	in, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := p.RenderFrames(ctx, in, ro.Resume)
	summary = &present.RunSummary{
		RunID:   stats.RunID,
		Country: in.Table.Country,
		From:    p.cfg.Timeline.From,
		Until:   p.cfg.Timeline.Until,
		Events:  len(in.Table.Events),
		Months:  stats.Months,
	}
	summary.Rendered, summary.Skipped, summary.Failed = stats.Rendered, stats.Skipped, stats.Failed
	if err != nil {
		summary.Stages, summary.Total = p.Stages(), time.Since(started)
		return summary, err
	}

	if !ro.FramesOnly {
		res, err := p.Animate()
		if err != nil {
			return summary, err
		}
		summary.GIFPath, summary.GIFBytes = res.Path, res.Bytes
	}

	if p.cfg.Output.GeoJSON != "" {
		if err := p.WriteGeoJSON(in); err != nil {
			return summary, err
		}
		summary.GeoJSON = p.cfg.Output.GeoJSON
	}

	if stats.Failed == 0 && p.checkpoints != nil {
		if err := p.checkpoints.Delete(); err != nil {
			p.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	summary.Stages, summary.Total = p.Stages(), time.Since(started)
	p.logger.InfoWithFields("Pipeline finished", map[string]interface{}{
		"rendered": stats.Rendered,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
		"gif":      summary.GIFPath,
		"duration": summary.Total,
	})
	if p.notifier != nil {
		p.notifier.SendSuccess("Conflict map ready",
			fmt.Sprintf("%s: %d frames", in.Table.Country, stats.Rendered+stats.Skipped))
	}
	return summary, nil
}

// Fetch downloads the dataset. With skip set an existing file is used as is.
// The result is nil when nothing was downloaded.
func (p *Pipeline) Fetch(ctx context.Context, skip bool) (*acled.FetchResult, error) {
	dest := p.cfg.Source.DatasetPath
	if skip {
		if _, err := os.Stat(dest); err == nil {
			p.logger.InfoWithFields("Using existing dataset", map[string]interface{}{
				"path": dest,
			})
			return nil, nil
		}
		p.logger.WarnWithFields("Dataset missing, downloading it", map[string]interface{}{
			"path": dest,
		})
	}
	if p.fetcher == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("dataset %s does not exist and downloads are disabled", dest))
	}

	started := time.Now()
	res, err := p.fetcher.Fetch(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset: %w", err)
	}
	if p.metrics != nil {
		p.metrics.FetchBytes.Add(float64(res.Bytes))
	}
	p.finishStage(StageFetch, started, map[string]interface{}{
		"url":   res.DownloadURL,
		"bytes": res.Bytes,
	})
	return res, nil
}

// Timeline builds the month index and the selected month range
func (p *Pipeline) Timeline() (*months.Index, []int, error) {
	var origin time.Time
	if p.cfg.Timeline.Origin != "" {
		t, err := months.ParseLabel(p.cfg.Timeline.Origin)
		if err != nil {
			return nil, nil, fmt.Errorf("timeline origin: %w", err)
		}
		origin = t
	}

	idx := months.NewIndex(origin, p.clock)
	selected, err := idx.Range(p.cfg.Timeline.From, p.cfg.Timeline.Until)
	if err != nil {
		return nil, nil, fmt.Errorf("timeline: %w", err)
	}
	return idx, selected, nil
}

// Prepare loads the dataset and the boundary concurrently and builds the
// month index
func (p *Pipeline) Prepare(ctx context.Context) (*Inputs, error) {
	started := time.Now()
	idx, selected, err := p.Timeline()
	if err != nil {
		return nil, err
	}

	var (
		table *dataset.Table
		bnd   *boundary.Boundary
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := dataset.Load(p.cfg.Source.DatasetPath, p.cfg.Source.Country)
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		table = t
		return nil
	})
	g.Go(func() error {
		b, err := boundary.Read(p.cfg.Boundary.Shapefile, p.cfg.Boundary.DissolveField)
		if err != nil {
			return fmt.Errorf("reading boundary: %w", err)
		}
		bnd = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.EventsLoaded.Add(float64(len(table.Events)))
		p.metrics.EventsSkipped.Add(float64(table.Skipped))
	}
	center := bnd.Center()
	p.finishStage(StageLoad, started, map[string]interface{}{
		"events":   len(table.Events),
		"skipped":  table.Skipped,
		"boundary": bnd.Name,
		"center":   fmt.Sprintf("%.4f,%.4f", center.Lat(), center.Lon()),
		"months":   len(selected),
	})

	return &Inputs{Table: table, Boundary: bnd, Index: idx, Months: selected}, nil
}

// RenderFrames renders and captures one frame per selected month. The frames
// directory is emptied first unless resume picks up a checkpoint of the same
// run, in which case months it lists whose frame still exists are reused.
func (p *Pipeline) RenderFrames(ctx context.Context, in *Inputs, resume bool) (*FrameStats, error) {
	started := time.Now()
	stats := &FrameStats{}

	frames, err := storage.NewManager(p.cfg.Output.FramesDir)
	if err != nil {
		return stats, err
	}

	cp, resumed, err := p.openCheckpoint(in, resume)
	if err != nil {
		return stats, err
	}
	if !resumed {
		if err := frames.Reset(); err != nil {
			return stats, err
		}
	}
	stats.RunID = cp.RunID

	labelOpts, err := snapshot.LabelOptionsFromConfig(p.cfg.Capture)
	if err != nil {
		return stats, err
	}

	var (
		window  *ratelimit.SlidingWindow
		limiter ratelimit.Limiter
	)
	if n := p.cfg.Capture.CapturesPerMin; n > 0 {
		window = ratelimit.PerMinute(n)
		limiter = window
	}
	guard := snapshot.NewGuard(p.capturer, limiter, p.cfg.Capture.MaxFailures, p.logger)

	view := mapview.NewView(p.cfg.Map, in.Boundary.Center(), p.token)
	view.Title = "Conflict events: " + in.Table.Country

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := renderpool.NewWorkerPool(renderpool.Options{
		Workers: p.cfg.Capture.Workers,
		TempDir: p.tempDir,
		View:    view,
		Label:   labelOpts,
		OnStart: func(job renderpool.Job, workerID int) {
			p.reporter.StartFrame(job.Label)
		},
		Metrics: p.metrics,
		Logger:  p.logger,
	}, guard, frames)
	pool.Start(runCtx)
	if tui, ok := p.reporter.(ui.TUI); ok {
		tui.LogInfo("Capturing with %d workers", pool.GetActiveWorkers())
	}

	var (
		rendered, failed int
		fatal            error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		circuit := guard.State()
		for r := range pool.Results() {
			if p.recordResult(r, cp) {
				rendered++
			} else {
				failed++
				if fatal == nil && snapshot.IsCircuitOpen(r.Error) {
					fatal = r.Error
					cancel()
				}
			}
			circuit = p.reportPacing(window, guard, circuit)
		}
	}()

	for _, i := range in.Months {
		label, frame := in.Index.Label(i), in.Index.FrameName(i)
		events := in.Index.Select(in.Table.Events, i)
		stats.Months = append(stats.Months, present.MonthCount{Label: label, Events: len(events)})
		p.reporter.QueueFrame(label, len(events))

		if resumed && cp.IsFrameCompleted(label) && frames.HasFrame(frame) {
			stats.Skipped++
			p.reporter.SkipFrame(label)
			if p.metrics != nil {
				p.metrics.FramesSkipped.Inc()
			}
			continue
		}

		if err := p.waitWhilePaused(runCtx); err != nil {
			break
		}
		if err := pool.Submit(renderpool.Job{Index: i, Label: label, Frame: frame, Events: events}); err != nil {
			p.logger.WithError(err).WithField("month", label).Warn("Frame not submitted")
			break
		}
		p.logger.DebugWithFields("Frame queued", map[string]interface{}{
			"month":  label,
			"queued": pool.GetQueueSize(),
		})
	}

	pool.Stop()
	<-done
	p.reporter.Complete()

	stats.Rendered, stats.Failed = rendered, failed
	p.finishStage(StageFrames, started, map[string]interface{}{
		"rendered": rendered,
		"skipped":  stats.Skipped,
		"failed":   failed,
		"workers":  pool.GetActiveWorkers(),
		"on_disk":  frames.FrameCount(),
	})

	if fatal != nil {
		return stats, fmt.Errorf("frames stage aborted: %w", fatal)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// openCheckpoint returns the checkpoint of this run and whether it was
// resumed from an earlier matching one
func (p *Pipeline) openCheckpoint(in *Inputs, resume bool) (*checkpoint.Checkpoint, bool, error) {
	if p.checkpoints == nil {
		mgr, err := checkpoint.NewManager(p.cfg.Source.Country)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create checkpoint manager: %w", err)
		}
		p.checkpoints = mgr
	}

	run := checkpoint.Run{
		Country:     p.cfg.Source.Country,
		DatasetPath: p.cfg.Source.DatasetPath,
		From:        p.cfg.Timeline.From,
		Until:       p.cfg.Timeline.Until,
		TotalMonths: len(in.Months),
	}
	if !resume {
		cp, err := p.checkpoints.Create(run)
		return cp, false, err
	}

	cp, resumed, err := p.checkpoints.Resume(run)
	if err != nil {
		return nil, false, err
	}
	if resumed {
		p.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"run_id":    cp.RunID,
			"completed": cp.TotalCompleted,
			"total":     cp.TotalMonths,
		})
	} else {
		p.logger.Info("No checkpoint matches this run, rendering every month")
	}
	return cp, resumed, nil
}

// recordResult reports one frame result and reports whether it succeeded
func (p *Pipeline) recordResult(r renderpool.Result, cp *checkpoint.Checkpoint) bool {
	if !r.Success {
		p.reporter.FailFrame(r.Job.Label, r.Error)
		if p.metrics != nil {
			p.metrics.FramesFailed.Inc()
		}
		p.logger.WithError(r.Error).WithFields(map[string]interface{}{
			"month":  r.Job.Label,
			"events": len(r.Job.Events),
		}).Error("Frame failed")
		return false
	}

	if err := p.checkpoints.RecordFrame(cp, r.Job.Label, r.Path); err != nil {
		p.logger.WithError(err).Warn("Failed to record frame in checkpoint")
	}
	p.reporter.CompleteFrame(r.Job.Label, r.Size)
	if p.metrics != nil {
		p.metrics.FramesRendered.Inc()
	}
	p.logger.DebugWithFields("Frame captured", map[string]interface{}{
		"month":    r.Job.Label,
		"events":   len(r.Job.Events),
		"worker":   r.WorkerID,
		"duration": r.Duration,
	})
	return true
}

// reportPacing forwards limiter usage and breaker changes to a TUI
func (p *Pipeline) reportPacing(window *ratelimit.SlidingWindow, guard *snapshot.Guard, last string) string {
	tui, ok := p.reporter.(ui.TUI)
	if !ok {
		return last
	}
	if window != nil {
		used, max, resetAt := window.Usage()
		tui.UpdatePacing(used, max, resetAt)
	}
	state := guard.State()
	if state != last {
		tui.CircuitChanged(state)
		if state == "open" {
			tui.LogError("Capture circuit opened after %d consecutive failures", p.cfg.Capture.MaxFailures)
		}
	}
	return state
}

// waitWhilePaused blocks while a TUI reporter is paused
func (p *Pipeline) waitWhilePaused(ctx context.Context) error {
	tui, ok := p.reporter.(ui.TUI)
	if !ok || !tui.IsPaused() {
		return ctx.Err()
	}

	p.logger.Info("Paused, waiting to resume")
	ticker := time.NewTicker(pausePollTime)
	defer ticker.Stop()
	for tui.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	p.logger.Info("Resumed")
	return ctx.Err()
}

// Animate encodes the frames of the selected months into the configured
// GIF. Other PNG files in the frames directory are ignored.
func (p *Pipeline) Animate() (*animate.Result, error) {
	started := time.Now()
	frames, wanted, err := p.selectedFrames()
	if err != nil {
		return nil, err
	}
	res, err := animate.Build(frames.GetOutputDir(), p.cfg.Output.GIFPath, p.cfg.Output.FrameDelay,
		func(name string) bool { return wanted[name] })
	if err != nil {
		return nil, fmt.Errorf("building animation: %w", err)
	}
	if p.metrics != nil {
		p.metrics.AnimationBytes.Set(float64(res.Bytes))
	}
	p.finishStage(StageAnimate, started, map[string]interface{}{
		"path":   res.Path,
		"frames": res.Frames,
		"bytes":  res.Bytes,
	})
	return res, nil
}

// selectedFrames returns the frames directory and the frame names of the
// selected months. Missing and extra frames are logged.
func (p *Pipeline) selectedFrames() (*storage.Manager, map[string]bool, error) {
	idx, selected, err := p.Timeline()
	if err != nil {
		return nil, nil, err
	}
	frames, err := storage.NewManager(p.cfg.Output.FramesDir)
	if err != nil {
		return nil, nil, err
	}

	wanted := make(map[string]bool, len(selected))
	var missing, extra int
	for _, i := range selected {
		name := idx.FrameName(i)
		wanted[name] = true
		if !frames.HasFrame(name) {
			missing++
		}
	}
	for _, name := range frames.Frames() {
		if !wanted[name] {
			extra++
		}
	}
	if missing > 0 || extra > 0 {
		p.logger.WarnWithFields("Frames directory does not match the month range", map[string]interface{}{
			"missing": missing,
			"ignored": extra,
		})
	}
	return frames, wanted, nil
}

// WriteGeoJSON writes the loaded events to the configured GeoJSON path
func (p *Pipeline) WriteGeoJSON(in *Inputs) error {
	started := time.Now()
	if err := in.Table.WriteGeoJSON(p.cfg.Output.GeoJSON); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	p.finishStage(StageGeoJSON, started, map[string]interface{}{
		"path":   p.cfg.Output.GeoJSON,
		"events": len(in.Table.Events),
	})
	return nil
}

// Stages returns the timings of the stages finished so far
func (p *Pipeline) Stages() []present.StageTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]present.StageTiming, len(p.stages))
	copy(out, p.stages)
	return out
}

func (p *Pipeline) finishStage(stage string, started time.Time, fields map[string]interface{}) {
	d := time.Since(started)
	p.metrics.ObserveStage(stage, started)

	p.mu.Lock()
	p.stages = append(p.stages, present.StageTiming{Stage: stage, Duration: d})
	p.mu.Unlock()

	p.logger.WithFields(fields).InfoWithFields("Stage finished", map[string]interface{}{
		"stage":    stage,
		"duration": d,
	})
}
