// Package bench serves the local benchmarking page: a static browser
// recorder plus a JSON endpoint that proxies audio to the upstream
// transcription server and reports timing. It is the interactive
// counterpart to the one-shot probe run.
package bench

import (
	"context"
	_ "embed"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
	"github.com/felixgeelhaar/soundcheck/internal/log"
)

//go:embed index.html
var indexHTML []byte

const (
	// DefaultMaxUploadMiB caps the /api/transcribe request body.
	DefaultMaxUploadMiB = 50

	// DefaultShutdownTimeout bounds connection draining on shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configures the bench server.
type Options struct {
	// Listen is the bind address, e.g. "127.0.0.1:7860".
	Listen string

	// Client talks to the upstream transcription server.
	Client *asr.Client

	// Model pins the model id sent upstream. Empty resolves it lazily
	// from the upstream model listing on first use.
	Model string

	// MaxUploadMiB caps the request body. Zero means DefaultMaxUploadMiB.
	MaxUploadMiB int

	// ShutdownTimeout bounds connection draining. Zero means
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger receives request and proxy logs. Defaults to the
	// process-wide logger.
	Logger *log.Logger
}

// Server is the bench HTTP server. It owns one upstream client and
// resolves the served model id at most once.
type Server struct {
	httpServer      *http.Server
	client          *asr.Client
	logger          *log.Logger
	maxUploadBytes  int64
	shutdownTimeout time.Duration
	inShutdown      atomic.Bool

	// model is resolved lazily from the upstream under modelMu so
	// concurrent first requests trigger a single lookup.
	modelMu sync.Mutex
	model   string
}

// New creates a bench server with the routes wired.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.MaxUploadMiB <= 0 {
		opts.MaxUploadMiB = DefaultMaxUploadMiB
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		client:          opts.Client,
		logger:          opts.Logger,
		maxUploadBytes:  int64(opts.MaxUploadMiB) * 1024 * 1024,
		shutdownTimeout: opts.ShutdownTimeout,
		model:           opts.Model,
	}

	s.httpServer = &http.Server{
		Addr:    opts.Listen,
		Handler: s.routes(),
		// Uploads are large and transcription is slow; only reads of the
		// request headers are bounded here. The proxy call carries its
		// own timeout through the upstream client.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/api/transcribe", s.handleTranscribe)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return r
}

// logRequests logs one line per request with the chi request id.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

// Start runs the server. It blocks until the listener fails or the
// server is shut down, in which case it returns nil.
func (s *Server) Start() error {
	s.logger.Info("bench server listening",
		"addr", s.httpServer.Addr,
		"upstream", s.client.BaseURL(),
	)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown reports whether Shutdown has begun.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// modelID returns the model id to send upstream, resolving it from the
// upstream model listing on first use.
func (s *Server) modelID(ctx context.Context) (string, error) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	if s.model != "" {
		return s.model, nil
	}

	id, ok, err := s.client.FirstModel(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errNoModels
	}

	s.model = id
	s.logger.Info("resolved upstream model", "model", id)
	return id, nil
}
