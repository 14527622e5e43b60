// Package api serves the Air Quality public, admin and hook endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
	"github.com/mappingforchange/geokey-airquality/internal/metrics"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Service  *airquality.Service
	Tokens   *auth.Tokens
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   Pinger

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{deps: deps}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.deps.Tokens != nil {
			r.Use(s.deps.Tokens.Middleware(unauthorized))
		}

		r.Route("/api/airquality", func(r chi.Router) {
			r.Get("/sheet", s.sendSheet)
			r.Get("/projects", s.listProjects)
			r.Get("/locations", s.listLocations)
			r.Post("/locations", s.createLocation)
			r.Patch("/locations/{locationID}", s.updateLocation)
			r.Delete("/locations/{locationID}", s.deleteLocation)
			r.Post("/locations/{locationID}/measurements", s.createMeasurement)
			r.Patch("/locations/{locationID}/measurements/{measurementID}", s.updateMeasurement)
			r.Delete("/locations/{locationID}/measurements/{measurementID}", s.deleteMeasurement)
		})

		r.Route("/admin/airquality", func(r chi.Router) {
			r.Get("/", s.overview)
			r.Get("/add", s.choices)
			r.Post("/add", s.addProject)
			r.Get("/export/{file}", s.export)
			r.Get("/{projectID}", s.getProject)
			r.Post("/{projectID}", s.updateProject)
			r.Delete("/{projectID}", s.removeProject)
		})

		r.Route("/ajax/airquality/projects/{projectID}", func(r chi.Router) {
			r.Get("/", s.hostProject)
			r.Get("/categories/{categoryID}", s.hostCategory)
		})

		r.Route("/hooks/airquality/{kind}/{hostID}", func(r chi.Router) {
			r.Post("/", s.hostSaved)
			r.Delete("/", s.hostDeleted)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	zap.L().Info("api: server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
