package renderpool

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/dataset"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/mapview"
	"conflictmap/pkg/metrics"
	"conflictmap/pkg/snapshot"
	"conflictmap/pkg/storage"
)

// pageCapturer checks that each page exists with the expected markers
type pageCapturer struct {
	mu     sync.Mutex
	pages  map[string]int
	calls  int32
	failOn string
	delay  time.Duration
}

func (c *pageCapturer) Capture(ctx context.Context, htmlPath string) (image.Image, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		return nil, err
	}
	if c.failOn != "" && strings.Contains(string(data), c.failOn) {
		return nil, errors.New("tiles never loaded")
	}
	c.mu.Lock()
	c.pages[filepath.Base(htmlPath)]++
	c.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, 640, 400)), nil
}

func testView() mapview.View {
	return mapview.View{
		Center:      orb.Point{39.6, 8.6},
		Zoom:        5,
		TileURL:     "https://tiles.example/{z}/{x}/{y}.png",
		PopupWidth:  250,
		PopupHeight: 200,
	}
}

func monthJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		month := time.Date(2015, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		jobs[i] = Job{
			Index: i,
			Label: month.Format("Jan 2006"),
			Frame: month.Format("Jan_2006") + ".png",
			Events: []dataset.Event{{
				ID:        fmt.Sprintf("ETH%d", i),
				Date:      month.AddDate(0, 0, 3),
				EventType: "Battles",
				Notes:     fmt.Sprintf("clash near Town%d", i),
				Point:     orb.Point{38.7, 9.0},
			}},
		}
	}
	return jobs
}

func runPool(t *testing.T, pool *WorkerPool, ctx context.Context, jobs []Job) []Result {
	t.Helper()
	pool.Start(ctx)

	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()

	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %s: %v", job.Label, err)
		}
	}
	pool.Stop()
	<-done
	return results
}

func TestWorkerPoolRendersFrames(t *testing.T) {
	framesDir := t.TempDir()
	tempDir := t.TempDir()
	store, err := storage.NewManager(framesDir)
	require.NoError(t, err)

	capturer := &pageCapturer{pages: make(map[string]int)}
	var started int32
	m := metrics.NewMetricsForTesting()

	pool := NewWorkerPool(Options{
		Workers: 2,
		TempDir: tempDir,
		View:    testView(),
		Label:   snapshot.DefaultLabelOptions(),
		OnStart: func(job Job, workerID int) { atomic.AddInt32(&started, 1) },
		Metrics: m,
		Logger:  logger.NewNopLogger(),
	}, capturer, store)

	results := runPool(t, pool, context.Background(), monthJobs(5))

	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.Success, "month %s: %v", r.Job.Label, r.Error)
		assert.Equal(t, filepath.Join(framesDir, r.Job.Frame), r.Path)
		assert.Greater(t, r.Size, int64(0))
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&started))
	assert.Equal(t, 5, store.FrameCount())

	// each worker used its own page and removed it on exit
	for name := range capturer.pages {
		assert.Regexp(t, `^tempmap-[01]\.html$`, name)
	}
	leftovers, err := filepath.Glob(filepath.Join(tempDir, "tempmap-*.html"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWorkerPoolReportsFailures(t *testing.T) {
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	capturer := &pageCapturer{pages: make(map[string]int), failOn: "Town1"}
	pool := NewWorkerPool(Options{
		Workers: 1,
		TempDir: t.TempDir(),
		View:    testView(),
		Label:   snapshot.DefaultLabelOptions(),
		Logger:  logger.NewNopLogger(),
	}, capturer, store)

	results := runPool(t, pool, context.Background(), monthJobs(3))
	require.Len(t, results, 3)

	var failed []string
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.Job.Label)
			assert.ErrorContains(t, r.Error, "capture Feb 2015")
		}
	}
	assert.Equal(t, []string{"Feb 2015"}, failed)
	assert.False(t, store.HasFrame("Feb_2015.png"))
	assert.True(t, store.HasFrame("Mar_2015.png"))
}

type failingStore struct{}

func (failingStore) SaveFrame(name string, img image.Image) (string, error) {
	return "", errors.New("disk full")
}

func TestWorkerPoolSaveFailure(t *testing.T) {
	pool := NewWorkerPool(Options{
		TempDir: t.TempDir(),
		View:    testView(),
		Logger:  logger.NewNopLogger(),
	}, snapshot.Stub{Width: 100, Height: 100}, failingStore{})

	results := runPool(t, pool, context.Background(), monthJobs(1))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorContains(t, results[0].Error, "disk full")
}

func TestWorkerPoolCancellation(t *testing.T) {
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	capturer := &pageCapturer{pages: make(map[string]int), delay: 50 * time.Millisecond}
	pool := NewWorkerPool(Options{
		Workers: 1,
		TempDir: t.TempDir(),
		View:    testView(),
		Logger:  logger.NewNopLogger(),
	}, capturer, store)
	pool.Start(ctx)

	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()

	require.NoError(t, pool.Submit(monthJobs(1)[0]))
	cancel()

	err = pool.Submit(monthJobs(2)[1])
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	pool.Stop()
	<-done

	for _, r := range results {
		assert.False(t, r.Success)
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
	assert.Zero(t, store.FrameCount())
}

func TestDefaults(t *testing.T) {
	pool := NewWorkerPool(Options{}, snapshot.Stub{Width: 1, Height: 1}, failingStore{})
	assert.Equal(t, 1, pool.GetActiveWorkers())
	assert.Equal(t, filepath.Join(os.TempDir(), "tempmap-0.html"), pool.TempPage(0))
	assert.Zero(t, pool.GetQueueSize())
}
