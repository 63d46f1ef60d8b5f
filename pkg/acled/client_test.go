package acled

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conflictmap/pkg/config"
	errs "conflictmap/pkg/errors"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/retry"
)

const curatedPage = `<html><body>
<h1>Curated Data Files</h1>
<a class="other" href="/ignore.xlsx">Other</a>
<a class="download-button" href="/files/Africa_1997-2019.xlsx">Africa</a>
<a class="download-button" href="/files/Asia.xlsx">Asia</a>
</body></html>`

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func newTestClient(pageURL string, creds Credentials) *Client {
	return NewClient(Options{
		PageURL:     pageURL,
		UserAgent:   "conflictmap-test",
		Timeout:     5 * time.Second,
		Credentials: creds,
		Retry:       fastRetry(),
		Logger:      logger.NewNopLogger(),
	})
}

func TestResolveDownloadLink(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(curatedPage))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/curated-data-files/", Credentials{})
	link, err := client.ResolveDownloadLink(context.Background())
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/files/Africa_1997-2019.xlsx", link)
	assert.Equal(t, "conflictmap-test", userAgent)
}

func TestResolveDownloadLinkAbsoluteHref(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a class="download-button" href="https://cdn.example.test/data.xlsx">x</a>`))
	}))
	defer server.Close()

	link, err := newTestClient(server.URL, Credentials{}).ResolveDownloadLink(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/data.xlsx", link)
}

func TestResolveDownloadLinkErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  errs.ErrorType
		wantCalls int32
	}{
		{"no matching link", http.StatusOK, `<a class="other" href="/x">x</a>`, errs.ErrorTypeParsing, 1},
		{"empty href", http.StatusOK, `<a class="download-button" href="  ">x</a>`, errs.ErrorTypeParsing, 1},
		{"not found", http.StatusNotFound, "", errs.ErrorTypeNotFound, 1},
		{"forbidden", http.StatusForbidden, "", errs.ErrorTypeAuth, 1},
		{"server error retried", http.StatusBadGateway, "", errs.ErrorTypeServerError, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, Credentials{}).ResolveDownloadLink(context.Background())
			require.Error(t, err)

			var pipeErr *errs.Error
			require.True(t, errors.As(err, &pipeErr), "expected typed error, got %v", err)
			assert.Equal(t, tt.wantType, pipeErr.Type)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestResolveDownloadLinkWithoutPage(t *testing.T) {
	_, err := newTestClient("", Credentials{}).ResolveDownloadLink(context.Background())
	require.Error(t, err)
}

func TestDownload(t *testing.T) {
	payload := []byte("PK\x03\x04 fake workbook")
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "data", "acled_data.xlsx")
	client := newTestClient(server.URL, Credentials{Key: "k3y", Email: "analyst@example.test"})

	n, err := client.Download(context.Background(), server.URL+"/file.xlsx", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, content)
	assert.Contains(t, query, "key=k3y")
	assert.Contains(t, query, "email=analyst%40example.test")
}

func TestDownloadWithoutCredentialsSendsNoQuery(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte("x"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "acled_data.xlsx")
	_, err := newTestClient(server.URL, Credentials{Key: "only-key"}).Download(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.Empty(t, query)
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "acled_data.xlsx")
	n, err := newTestClient(server.URL, Credentials{}).Download(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownloadFailureKeepsExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "acled_data.xlsx")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0644))

	_, err := newTestClient(server.URL, Credentials{}).Download(context.Background(), server.URL, dest)
	require.Error(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/curated-data-files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(curatedPage))
	})
	mux.HandleFunc("/files/Africa_1997-2019.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("africa"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Source.PageURL = server.URL + "/curated-data-files/"
	cfg.Retry.BaseDelay = time.Millisecond
	client := NewClientFromConfig(cfg, Credentials{}, logger.NewNopLogger())

	dest := filepath.Join(t.TempDir(), "acled_data.xlsx")
	res, err := client.Fetch(context.Background(), dest)
	require.NoError(t, err)

	assert.Equal(t, &FetchResult{
		PageURL:     server.URL + "/curated-data-files/",
		DownloadURL: server.URL + "/files/Africa_1997-2019.xlsx",
		Path:        dest,
		Bytes:       6,
	}, res)
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(curatedPage))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, Credentials{}).Fetch(ctx, filepath.Join(t.TempDir(), "x.xlsx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
