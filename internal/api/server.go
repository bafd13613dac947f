package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/plotter-web/internal/config"
	"github.com/JakeFAU/plotter-web/internal/gcode"
	"github.com/JakeFAU/plotter-web/internal/metrics"
	"github.com/JakeFAU/plotter-web/internal/plotter"
	"github.com/JakeFAU/plotter-web/internal/policy/ratelimit"
	"github.com/JakeFAU/plotter-web/internal/web"
)

// Archiver records accepted submissions and looks them up again.
type Archiver interface {
	Record(ctx context.Context, program string, summary gcode.Summary, remoteAddr string) (plotter.Submission, error)
	Get(ctx context.Context, id string) (plotter.Submission, error)
}

// ReadinessCheck reports whether a downstream dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Dependencies are the collaborators a Server routes requests to. Archive,
// Limiter, and Checks are optional.
type Dependencies struct {
	Pages   *web.Pages
	Archive Archiver
	Limiter *ratelimit.Limiter
	Checks  map[string]ReadinessCheck
}

// Server wires HTTP handlers to the G-code pipeline.
type Server struct {
	router  chi.Router
	pages   *web.Pages
	archive Archiver
	parser  *gcode.Parser
	checks  map[string]ReadinessCheck
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pages:   deps.Pages,
		archive: deps.Archive,
		parser:  gcode.NewParser(cfg.Plotter.PenUpZ),
		checks:  deps.Checks,
		cfg:     cfg,
		logger:  logger,
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(otelhttp.NewMiddleware("plotter-web"))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/", s.index)
	r.Handle("/static/*", http.StripPrefix("/static", web.StaticHandler()))
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware)
		}
		r.Post("/send_job", s.sendJob)
		r.Post("/analyze", s.analyze)
		r.Get("/jobs/{job_id}", s.getJob)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		writeError(w, http.StatusInternalServerError, "page templates not loaded")
		return
	}
	s.pages.Index(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
