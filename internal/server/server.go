package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	_ "github.com/information-sharing-networks/wiki-harness/docs"
	"github.com/information-sharing-networks/wiki-harness/internal/auth"
	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/server/handlers"
	wikimiddleware "github.com/information-sharing-networks/wiki-harness/internal/server/middleware"
	"github.com/information-sharing-networks/wiki-harness/internal/version"
)

type Server struct {
	db      *database.DB
	queries *database.Queries
	config  *config.ServerEnvironment
	logger  *slog.Logger
	router  *chi.Mux
	tokens  *auth.TokenIssuer
}

func NewServer(
	db *database.DB,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
) *Server {
	server := &Server{
		db:      db,
		queries: db.Queries(),
		config:  cfg,
		logger:  logger,
		router:  chi.NewRouter(),
		tokens:  auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL()),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	if !s.config.SuppressLogging {
		s.router.Use(logger.RequestLogging(s.logger))
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(wikimiddleware.SecurityHeaders(s.config.Environment))
	s.router.Use(wikimiddleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst, "/health", "/ready"))
	s.router.Use(wikimiddleware.RequestSizeLimit(s.config.MaxRequestBodySize))
}

func (s *Server) registerRoutes() {
	info := version.Get()

	s.router.Get("/", handlers.HandleRoot(info))
	s.router.Get("/health", handlers.HandleHealth)
	s.router.Get("/ready", handlers.HandleReadiness(s.queries, s.config.DatabasePingTimeout))
	s.router.Get("/version", handlers.HandleVersion(info))
	s.router.Get("/openapi.json", handlers.HandleOpenAPI)
	s.router.Get("/scalar", handlers.HandleScalar)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/Auth/Login", handlers.HandleLogin(s.queries, s.tokens))
		r.Post("/Auth/Register", handlers.HandleRegister(s.queries, s.tokens, s.config.BcryptCost))

		r.Group(func(r chi.Router) {
			r.Use(wikimiddleware.RequireAuth(s.tokens))

			r.Get("/Auth/CurrentUser", handlers.HandleCurrentUser(s.queries))
			r.Get("/UserProfile/", handlers.HandleUserProfile(s.queries))
			r.Get("/Repository/RepositoryList", handlers.HandleRepositoryList(s.queries))
			r.Get("/Repository/{id}/Catalogs", handlers.HandleRepositoryCatalogs(s.queries))
		})
	})
}

// Handler exposes the router, e.g. for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is cancelled.
//
// The port may be handed over by a test harness that released it just before the
// server starts, so a failed bind is retried ListenRetries times.
func (s *Server) Start(ctx context.Context) error {
	serverAddr := s.config.Address()

	listener, err := s.listen(ctx, serverAddr)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

func (s *Server) listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	var lastErr error

	for attempt := 1; attempt <= s.config.ListenRetries; attempt++ {
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return listener, nil
		}
		lastErr = err

		s.logger.Warn("failed to bind",
			slog.String("address", addr),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt == s.config.ListenRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.config.ListenRetryDelay):
		}
	}
	return nil, fmt.Errorf("server failed to start: %w", lastErr)
}

func (s *Server) DatabaseShutdown() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close database", slog.String("error", err.Error()))
			return
		}
		s.logger.Info("database connection closed")
	}
}
