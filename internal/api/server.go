package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"FrameForge/internal/api/handlers"
	"FrameForge/internal/config"
	"FrameForge/internal/job"
	"FrameForge/pkg/log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router     *chi.Mux
	processor  handlers.Processor
	tracker    *job.Tracker
	status     job.StatusStore
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(processor handlers.Processor, tracker *job.Tracker, status job.StatusStore, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		processor: processor,
		tracker:   tracker,
		status:    status,
		cfg:       cfg,
		logger:    logger,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	if s.cfg.HTTP.RequestLogger {
		s.router.Use(log.Logger(s.logger, "http"))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Job-ID", "X-Result-Key", "X-Result-URL"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	processHandler := handlers.NewProcessHandler(s.processor, s.cfg.HTTP.UploadDir, s.cfg.HTTP.MaxUploadMB, s.logger)
	jobsHandler := handlers.NewJobsHandler(s.tracker, s.status, s.logger)

	s.router.With(middleware.Timeout(10*time.Second)).Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// Upload is synchronous: the response is the archive, so no route timeout.
	// Stage timeouts bound the work instead.
	s.router.Post("/video/upload", processHandler.Handle)

	s.router.With(middleware.Timeout(30*time.Second)).Get("/jobs/{id}", jobsHandler.GetJob)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"service": "frameforge",
	})
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: s.router,
		// uploads and archive downloads can be large
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.cfg.HTTP.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
