package main

import (
	"context"
	"ctchen222/tictactoe-minimax/internal/api/controller"
	apirepository "ctchen222/tictactoe-minimax/internal/api/repository"
	"ctchen222/tictactoe-minimax/internal/api/service"
	"ctchen222/tictactoe-minimax/internal/bot"
	"ctchen222/tictactoe-minimax/internal/config"
	"ctchen222/tictactoe-minimax/internal/db"
	"ctchen222/tictactoe-minimax/internal/events"
	"ctchen222/tictactoe-minimax/internal/hub"
	"ctchen222/tictactoe-minimax/internal/logger"
	"ctchen222/tictactoe-minimax/internal/repository"
	"ctchen222/tictactoe-minimax/internal/server"
	"ctchen222/tictactoe-minimax/internal/telemetry"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, telemetry.Config{
		OTLPEndpoint: cfg.OTLPEndpoint,
		StdoutTraces: cfg.StdoutTraces,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()
	logger.Init(cfg.LogLevel)
	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	// Initialize SQLite DB
	sqlDB, err := db.Connect(ctx, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite db: %v", err)
	}
	defer sqlDB.Close()
	if err := db.InitializeDB(ctx, sqlDB); err != nil {
		log.Fatalf("failed to initialize sqlite db: %v", err)
	}

	// Create repositories
	sessionRepo := repository.NewSessionRepository(rdb, cfg.SessionTTL)
	playerRepo := repository.NewPlayerRepository(rdb, cfg.SessionTTL)
	resultRepo := repository.NewResultRepository(sqlDB)
	userRepo := apirepository.NewUserRepository(sqlDB)

	// Create hub
	h := hub.NewHub(hub.Options{
		Sessions:      sessionRepo,
		Players:       playerRepo,
		Results:       resultRepo,
		Redis:         rdb,
		Publisher:     events.NewRedisPublisher(rdb),
		Calculator:    &bot.Calculator{},
		ComputerDelay: cfg.ComputerDelay,
		IdleTimeout:   cfg.SessionIdleTimeout,
	})
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		h.Run(ctx)
	}()

	// Create services
	userService := service.NewUserService(userRepo, []byte(cfg.JWTSecret))
	gameService := service.NewGameService(h, resultRepo)

	// Create controllers
	userController := controller.NewUserController(userService)
	gameController := controller.NewGameController(gameService)

	// Create the Gin-based server
	var serverOpts []server.Option
	if cfg.EnablePprof {
		serverOpts = append(serverOpts, server.WithProfiling())
	}
	srv := server.NewServer(h, userController, gameController, userService, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Engine(),
	}

	go func() {
		slog.Info("http server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-hubDone

	slog.Info("Server exiting")
}
