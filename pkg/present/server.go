package present

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conflictmap/pkg/config"
	"conflictmap/pkg/logger"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{margin:0;background:#111;display:flex;justify-content:center;align-items:center;min-height:100vh}</style>
</head>
<body>
<img src="/animation.gif" width="{{.Width}}" height="{{.Height}}" alt="{{.Title}}">
</body>
</html>
`))

// ServerOptions configures the presentation server
type ServerOptions struct {
	Addr     string
	GIFPath  string
	Title    string
	Width    int
	Height   int
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

// ServerOptionsFromConfig maps the present and output sections onto ServerOptions
func ServerOptionsFromConfig(cfg *config.Config) ServerOptions {
	return ServerOptions{
		Addr:    cfg.Present.Addr,
		GIFPath: cfg.Output.GIFPath,
		Title:   "Conflict events: " + cfg.Source.Country,
		Width:   cfg.Present.Width,
		Height:  cfg.Present.Height,
	}
}

// Server exposes the animation page, the raw GIF, health and metrics.
type Server struct {
	httpServer *http.Server
	opts       ServerOptions
	logger     logger.Logger
}

// NewServer creates an HTTP server with /, /animation.gif, /healthz and /metrics routes.
func NewServer(opts ServerOptions) *Server {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 800
	}
	if opts.Title == "" {
		opts.Title = filepath.Base(opts.GIFPath)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		opts:   opts,
		logger: log.WithField("component", "present"),
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /animation.gif", s.handleGIF)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	return s
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.opts); err != nil {
		s.logger.WithError(err).Error("Failed to render index page")
	}
}

func (s *Server) handleGIF(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.opts.GIFPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "animation not built yet", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to open animation")
		http.Error(w, "cannot read animation", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "cannot read animation", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.InfoWithFields("Presentation server starting", map[string]interface{}{
		"addr": s.httpServer.Addr,
		"gif":  s.opts.GIFPath,
	})
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// URL is the address a browser should open
func (s *Server) URL() string {
	return "http://" + s.httpServer.Addr + "/"
}
