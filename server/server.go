// Package server exposes marketmaster pipelines over HTTP. Every session owns one pipeline and
// its charts, and requests on the same session run one at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/config"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxUploadBytes = 32 << 20

type Options struct {
	Logger *slog.Logger

	// Fetcher is the upstream shared by all sessions. Each session caches its own results.
	Fetcher source.Fetcher

	// Pipeline holds the stage defaults every new session starts from
	Pipeline *marketmaster.Options

	MaxUploadBytes int64
	Registry       *prometheus.Registry
}

func NewDefaultOptions() *Options {
	return &Options{
		Logger:         slog.Default(),
		Pipeline:       marketmaster.NewDefaultOptions(),
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

type Server struct {
	opt      *Options
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
	metrics  *Metrics
	registry *prometheus.Registry
	fetcher  source.Fetcher
	router   chi.Router
}

// New creates a server. If no options are provided a default is used.
func New(opt *Options) *Server {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Pipeline == nil {
		opt.Pipeline = marketmaster.NewDefaultOptions()
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = defaultMaxUploadBytes
	}
	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		opt:      opt,
		logger:   opt.Logger.With("component", "server"),
		store:    NewStore(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  NewMetrics(reg),
		registry: reg,
	}
	if opt.Fetcher != nil {
		s.fetcher = s.metrics.countFetches(opt.Fetcher)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/theme", s.setTheme)
			r.Post("/next", s.next)
			r.Post("/jump/{stage}", s.jump)
			r.Post("/reset", s.reset)
			r.Post("/load/upload", s.loadUpload)
			r.Post("/load/remote", s.loadRemote)
			r.Post("/preprocess", s.preprocess)
			r.Post("/features", s.features)
			r.Post("/split", s.split)
			r.Post("/train", s.train)
			r.Post("/evaluate", s.evaluate)
			r.Get("/results", s.results)
			r.Get("/export/{variant}", s.export)
			r.Get("/charts/{stage}", s.charts)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("unable to serve, %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down", "sessions", s.store.Len())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shutdown, %w", err)
	}
	return nil
}
