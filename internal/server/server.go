// Package server hosts the local preview: an HTML report of the most recent
// build and a WebSocket channel that tells open pages to reload.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/winforge/internal/build"
	"github.com/conneroisu/winforge/internal/config"
	"github.com/conneroisu/winforge/internal/logging"
	"github.com/conneroisu/winforge/internal/types"
)

// PreviewServer serves the build report page with live reload.
type PreviewServer struct {
	host    string
	port    int
	open    bool
	hub     *Hub
	logger  logging.Logger
	metrics *build.Metrics

	mu       sync.RWMutex
	result   *types.BuildResult
	document string

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewPreviewServer wires a preview server from configuration.
func NewPreviewServer(cfg *config.Config, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	return &PreviewServer{
		host:    cfg.Server.Host,
		port:    cfg.Server.Port,
		open:    cfg.Server.Open,
		hub:     NewHub(cfg.Server.AllowedOrigins, logger),
		logger:  logger,
		metrics: build.NewMetrics(),
	}
}

// Addr returns the host:port the server binds.
func (s *PreviewServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Metrics exposes the session build metrics.
func (s *PreviewServer) Metrics() *build.Metrics {
	return s.metrics
}

// Update records a finished build and refreshes every connected page.
func (s *PreviewServer) Update(result *types.BuildResult, document string) {
	s.mu.Lock()
	s.result = result
	s.document = document
	s.mu.Unlock()

	s.metrics.Record(result)
	s.hub.BroadcastReload()
}

// Start serves until ctx is cancelled or the listener fails.
func (s *PreviewServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := s.Addr()

	s.serverMu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if s.open {
		go s.openBrowser(fmt.Sprintf("http://%s", addr))
	}

	s.logger.Info(ctx, "preview server listening", "addr", addr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops the hub and the HTTP listener.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	_ = s.hub.Shutdown(ctx)

	s.serverMu.Lock()
	server := s.httpServer
	s.serverMu.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.result
	document := s.document
	s.mu.RUnlock()

	page := newReportPage(result, document, s.metrics.Snapshot())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, page); err != nil {
		s.logger.Error(r.Context(), err, "failed to render report page")
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// withRequestLog logs each request with its handling time.
func (s *PreviewServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *PreviewServer) openBrowser(url string) {
	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		s.logger.Warn(context.Background(), err, "failed to open browser", "url", url)
	}
}
