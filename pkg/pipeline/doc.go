// Package pipeline runs the conflict map build from dataset to animation.
//
// A Pipeline coordinates the other packages in a fixed order:
//   - fetch the ACLED workbook, unless an existing file may be reused
//   - load the country's events and read the boundary shapefile concurrently
//   - build the month index and select the animated range
//   - render and capture one frame per month through a worker pool
//   - encode the frames into a GIF and optionally write the events as GeoJSON
//
// Usage:
//
//	p, err := pipeline.New(cfg, pipeline.Options{
//	    Fetcher:  acled.NewClientFromConfig(cfg, creds, log),
//	    Capturer: browser,
//	    Reporter: ui.NewProgressDisplay(cfg.Source.Country, 0, false),
//	    Metrics:  metrics.NewMetrics(),
//	})
//	if err != nil {
//	    return err
//	}
//	summary, err := p.Run(ctx, pipeline.RunOptions{Resume: true})
//
// Checkpoints:
//
// Every captured month is recorded in a checkpoint. A resumed run reuses the
// frames the checkpoint lists as long as their files still exist, and the
// checkpoint is deleted once a run finishes without failed frames.
//
// Captures are paced per minute and pass through a circuit breaker. Once it
// opens the frames stage stops and Run returns the breaker error together
// with a partial summary.
package pipeline
