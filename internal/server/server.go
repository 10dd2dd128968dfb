// Package server is the composition root: it wires stores, services,
// handlers and middleware into one router and runs the HTTP server.
//
// ROUTES:
//
//	public         POST /jwt, GET /, GET /health, GET /courses, GET /courses/{id}
//	authenticated  PUT /users, GET /users/role/{id}, POST /courses,
//	               PUT|DELETE /courses/{id}, POST /enroll, GET /enrolled/{email}
//	admin          GET /users, PATCH /users/role/{id}, PATCH /users/status/{id},
//	               PATCH /courses/{id}/status, GET /admin/stats
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/config"
	"github.com/sakif/learnloop/internal/handler"
	"github.com/sakif/learnloop/internal/middleware"
	"github.com/sakif/learnloop/internal/repository"
	"github.com/sakif/learnloop/internal/service"
)

// Server owns the router and the store; the store is closed on shutdown.
type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  config.Config
	logger  *slog.Logger
	store   *repository.Store
}

// New wires every layer on top of store. statsCache may be nil.
func New(cfg config.Config, logger *slog.Logger, store *repository.Store, statsCache service.StatsCache) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes(tokens, statsCache)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(s.router)

	return s, nil
}

// Handler returns the full middleware stack, CORS included. Tests drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes(tokens *auth.TokenService, statsCache service.StatsCache) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	roles := service.NewRoleAuthority(s.store.Users, s.logger)

	authHandler := handler.NewAuthHandler(service.NewAuthService(tokens, s.logger), s.logger)
	userHandler := handler.NewUserHandler(service.NewUserService(s.store.Users, s.logger), roles, s.logger)
	courseHandler := handler.NewCourseHandler(service.NewCourseService(s.store.Courses, roles, s.logger), s.logger)
	enrollHandler := handler.NewEnrollmentHandler(
		service.NewEnrollmentService(s.store.Courses, s.store.Enrollments, s.logger), s.logger)
	statsHandler := handler.NewStatsHandler(service.NewStatsService(s.store, statsCache, s.logger), s.logger)

	requireAuth := auth.RequireAuth(tokens)
	requireAdmin := auth.RequireAdmin(roles, s.logger)

	s.router.Get("/", handler.HandleRoot)
	s.router.Get("/health", handler.HandleHealth)
	s.router.Post("/jwt", authHandler.HandleIssueToken)
	s.router.Get("/courses", courseHandler.HandleList)
	s.router.Get("/courses/{id}", courseHandler.HandleGetByID)

	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Put("/users", userHandler.HandleUpsert)
		r.Get("/users/role/{id}", userHandler.HandleRole)
		r.Post("/courses", courseHandler.HandleCreate)
		r.Put("/courses/{id}", courseHandler.HandleUpdate)
		r.Delete("/courses/{id}", courseHandler.HandleDelete)
		r.Post("/enroll", enrollHandler.HandleEnroll)
		r.Get("/enrolled/{email}", enrollHandler.HandleListForUser)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/users", userHandler.HandleList)
			r.Patch("/users/role/{id}", userHandler.HandleSetRole)
			r.Patch("/users/status/{id}", userHandler.HandleSetStatus)
			r.Patch("/courses/{id}/status", courseHandler.HandleSetStatus)
			r.Get("/admin/stats", statsHandler.HandleStats)
		})
	})
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
			slog.String("env", s.config.AppEnv),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
