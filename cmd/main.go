package main

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

	"github.com/bracketops/tournament-engine/config"
	"github.com/bracketops/tournament-engine/db"
	"github.com/bracketops/tournament-engine/handlers"
	"github.com/bracketops/tournament-engine/middleware"
	"github.com/bracketops/tournament-engine/realtime"
	"github.com/bracketops/tournament-engine/repositories"
	api "github.com/bracketops/tournament-engine/routes"
	"github.com/bracketops/tournament-engine/scheduler"
	"github.com/bracketops/tournament-engine/services"
	"github.com/bracketops/tournament-engine/storage"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := db.RunMigrations(dbConn); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database schema up to date")

	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize cloudflare r2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("cloudflare r2 uploader initialized")
	} else {
		logger.Warn("r2 storage not configured, banner and logo uploads disabled")
	}

	hub := realtime.NewHub(logger)
	go hub.Run()

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	playoffRepo := repositories.NewPostgresPlayoffRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	mapRepo := repositories.NewPostgresMapRepository(dbConn)
	prizeRepo := repositories.NewPostgresPrizeRepository(dbConn)
	scheduleRepo := repositories.NewPostgresScheduledStartRepository(dbConn)

	sched := scheduler.NewTimerScheduler(clockwork.NewRealClock(), logger)

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo)
	teamService := services.NewTeamService(teamRepo, userRepo, tournamentRepo)
	gameService := services.NewGameService(gameRepo, uploader)
	bracketService := services.NewBracketService(tournamentRepo, groupRepo, playoffRepo, matchRepo, prizeRepo)
	tournamentService := services.NewTournamentService(
		dbConn,
		tournamentRepo,
		registrationRepo,
		groupRepo,
		playoffRepo,
		matchRepo,
		prizeRepo,
		scheduleRepo,
		gameRepo,
		userRepo,
		teamRepo,
		bracketService,
		uploader,
		sched,
		hub,
		logger,
	)
	matchService := services.NewMatchService(
		dbConn,
		tournamentRepo,
		matchRepo,
		mapRepo,
		groupRepo,
		playoffRepo,
		prizeRepo,
		userRepo,
		bracketService,
		hub,
	)

	// The scheduler and the tournament service are built independently, so
	// the start callback is wired after both exist.
	sched.SetStartFunc(tournamentService.StartScheduled)
	if err := tournamentService.RestoreSchedules(context.Background()); err != nil {
		logger.Error("failed to restore scheduled starts", slog.Any("error", err))
	}

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	teamHandler := handlers.NewTeamHandler(teamService, logger)
	gameHandler := handlers.NewGameHandler(gameService, logger)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, logger)
	matchHandler := handlers.NewMatchHandler(matchService, tournamentService, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, logger)

	authn := middleware.NewAuthenticator(cfg.JWTSecretKey)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authHandler,
		userHandler,
		teamHandler,
		gameHandler,
		tournamentHandler,
		matchHandler,
		wsHandler,
		authn,
		cfg.CORSAllowedOrigins,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		sched.Stop()
	}
	logger.Info("application exited")
}
