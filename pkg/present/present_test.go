package present

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/config"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/metrics"
)

func writeGIF(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), []color.Color{color.Black, color.White})
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{img}, Delay: []int{200}}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func newTestServer(t *testing.T, gifPath string) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetricsForTesting()
	s := NewServer(ServerOptions{
		Addr:     "127.0.0.1:0",
		GIFPath:  gifPath,
		Title:    "Conflict events: Ethiopia",
		Gatherer: m.Gatherer(),
		Logger:   logger.NewNopLogger(),
	})
	return s, m
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "a.gif"))

	rec := do(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<img src="/animation.gif" width="800" height="800"`)
	assert.Contains(t, body, "<title>Conflict events: Ethiopia</title>")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestUnknownPath(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "a.gif"))
	assert.Equal(t, http.StatusNotFound, do(t, s, "/nope").Code)
}

func TestAnimation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflict_ethiopia.gif")
	s, _ := newTestServer(t, path)

	assert.Equal(t, http.StatusNotFound, do(t, s, "/animation.gif").Code)

	writeGIF(t, path)
	rec := do(t, s, "/animation.gif")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))

	decoded, err := gif.DecodeAll(rec.Body)
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 1)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestServer(t, "")
	m.FramesRendered.Add(3)

	rec := do(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "conflictmap_frames_rendered_total 3")
}

func TestServerOverRealListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.gif")
	writeGIF(t, path)
	s, _ := newTestServer(t, path)

	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/animation.gif")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := ServerOptionsFromConfig(cfg)

	assert.Equal(t, "127.0.0.1:8085", opts.Addr)
	assert.Equal(t, "conflict_ethiopia.gif", opts.GIFPath)
	assert.Equal(t, 800, opts.Width)
	assert.Equal(t, 800, opts.Height)
	assert.Equal(t, "Conflict events: Ethiopia", opts.Title)

	s := NewServer(opts)
	assert.Equal(t, "http://127.0.0.1:8085/", s.URL())
}

func TestSummary(t *testing.T) {
	var months []MonthCount
	for i := 0; i < 12; i++ {
		months = append(months, MonthCount{Label: time.Date(2015, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006"), Events: i})
	}

	var buf bytes.Buffer
	Summary(&buf, RunSummary{
		RunID:    "run-1",
		Country:  "Ethiopia",
		From:     "Feb 2015",
		Until:    "Jan 2016",
		Events:   66,
		Months:   months,
		Rendered: 11,
		Skipped:  1,
		GIFPath:  "conflict_ethiopia.gif",
		GIFBytes: 1536,
		Stages:   []StageTiming{{Stage: "load", Duration: 1500 * time.Millisecond}},
		Total:    3 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "Conflict map: Ethiopia")
	assert.Contains(t, out, "11 rendered, 1 reused, 0 failed")
	assert.Contains(t, out, "1.5 KiB")
	assert.Contains(t, out, "Dec 2015")
	assert.Contains(t, out, "+2 more")
	// the two quietest months are cut
	assert.NotContains(t, out, "Jan 2015")
	assert.Contains(t, out, "1.5s")
	assert.False(t, strings.Contains(out, "GeoJSON"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))
}
