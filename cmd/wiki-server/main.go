package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/server"
	"github.com/information-sharing-networks/wiki-harness/internal/version"
)

//	@title			wiki-server
//	@description	wiki-server is the reference server driven by the wiki integration test harness.
//	@description	It implements the slice of the wiki API the integration tests use: authentication,
//	@description	the current user profile and the repository catalogue.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	## Response envelope
//	@description	Every /api response is wrapped as `{"code": <status>, "data": <payload>}`.
//	@description
//	@description	## Authentication
//	@description	Log in with /api/Auth/Login and send the returned token as `Authorization: Bearer <token>`.
//	@description
//	@license.name	MIT

//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from /api/Auth/Login

//	@tag.name			Auth
//	@tag.description	Login, registration and the current user

//	@tag.name			Repository
//	@tag.description	Catalogued git repositories

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version, etc.)

func main() {
	cmd := &cobra.Command{
		Use:   "wiki-server",
		Short: "Wiki reference server",
		Long:  `wiki-server serves the wiki API used by the integration test harness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	level := logger.ParseLogLevel(cfg.LogLevel)
	if cfg.SuppressLogging {
		level = logger.LevelNone
	}
	appLogger := logger.InitLogger(level, cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("DB_TYPE", cfg.DBType),
		slog.Bool("SEED_TEST_DATA", cfg.SeedTestData),
		slog.String("MODEL_PROVIDER", cfg.ModelProvider),
		slog.String("CHAT_MODEL", cfg.ChatModel),
		slog.String("ENDPOINT", cfg.Endpoint),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenDatabase(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to prepare database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	srv := server.NewServer(db, cfg, appLogger)
	defer srv.DatabaseShutdown()

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
