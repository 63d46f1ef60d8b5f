// Package renderpool renders and captures month frames concurrently.
package renderpool

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"conflictmap/pkg/dataset"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/mapview"
	"conflictmap/pkg/metrics"
	"conflictmap/pkg/snapshot"
)

// Job is one month to render
type Job struct {
	Index  int
	Label  string
	Frame  string
	Events []dataset.Event
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	Success  bool
	Path     string
	Size     int64
	Error    error
	Duration time.Duration
	WorkerID int
}

// FrameStorage stores captured frames
type FrameStorage interface {
	SaveFrame(name string, img image.Image) (string, error)
}

// Options configures a WorkerPool
type Options struct {
	Workers int
	// TempDir holds the per-worker map pages, tempmap-<worker>.html
	TempDir string
	View    mapview.View
	Label   snapshot.LabelOptions
	// OnStart is called when a worker picks up a job
	OnStart func(job Job, workerID int)
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// WorkerPool manages concurrent render workers
type WorkerPool struct {
	opts        Options
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	capturer    snapshot.Capturer
	storage     FrameStorage
	logger      logger.Logger
	stopOnce    sync.Once
}

// NewWorkerPool creates a new render worker pool
func NewWorkerPool(opts Options, capturer snapshot.Capturer, storage FrameStorage) *WorkerPool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		opts:        opts,
		jobQueue:    make(chan Job, opts.Workers*2),
		resultQueue: make(chan Result, opts.Workers),
		capturer:    capturer,
		storage:     storage,
		logger:      log,
	}
}

// Start launches the workers. Cancelling ctx stops them after their current job.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.InfoWithFields("Starting render pool", map[string]interface{}{
		"num_workers": wp.opts.Workers,
	})

	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for the workers and closes Results
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
		wp.logger.Debug("Render pool stopped")
	})
}

// Submit adds a job to the queue, blocking while it is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Frame queued", map[string]interface{}{
			"month":  job.Label,
			"events": len(job.Events),
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("render pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained until it closes after Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// TempPage returns the map page path used by a worker
func (wp *WorkerPool) TempPage(workerID int) string {
	return filepath.Join(wp.opts.TempDir, fmt.Sprintf("tempmap-%d.html", workerID))
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	defer os.Remove(wp.TempPage(id))

	for job := range wp.jobQueue {
		if err := wp.ctx.Err(); err != nil {
			// cancelled jobs still produce a result so the consumer sees every month
			wp.resultQueue <- Result{Job: job, Error: err, WorkerID: id}
			continue
		}
		wp.resultQueue <- wp.processJob(job, id)
	}
}

// processJob renders, captures, labels and saves one month
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job, WorkerID: workerID}
	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"month":     job.Label,
	})

	if wp.opts.OnStart != nil {
		wp.opts.OnStart(job, workerID)
	}

	page := wp.TempPage(workerID)
	if err := mapview.RenderFile(page, wp.opts.View, job.Events); err != nil {
		result.Error = fmt.Errorf("render %s: %w", job.Label, err)
		result.Duration = time.Since(start)
		log.WithError(err).Error("Failed to render map page")
		return result
	}

	img, err := wp.capturer.Capture(wp.ctx, page)
	wp.opts.Metrics.ObserveCapture(time.Since(start))
	if err != nil {
		result.Error = fmt.Errorf("capture %s: %w", job.Label, err)
		result.Duration = time.Since(start)
		log.WithError(err).Error("Failed to capture map")
		return result
	}

	labeled := snapshot.Label(img, job.Label, wp.opts.Label)
	path, err := wp.storage.SaveFrame(job.Frame, labeled)
	if err != nil {
		result.Error = fmt.Errorf("save %s: %w", job.Label, err)
		result.Duration = time.Since(start)
		log.WithError(err).Error("Failed to save frame")
		return result
	}

	result.Success = true
	result.Path = path
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	result.Duration = time.Since(start)

	log.DebugWithFields("Frame captured", map[string]interface{}{
		"events":   len(job.Events),
		"path":     path,
		"duration": result.Duration,
	})

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.opts.Workers
}
