// Aplomb - safety-interlock gateway for guided emotional-relief sessions
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/aplomb-care/aplomb/internal/agent"
	"github.com/aplomb-care/aplomb/internal/api"
	"github.com/aplomb-care/aplomb/internal/config"
	"github.com/aplomb-care/aplomb/internal/identity"
	"github.com/aplomb-care/aplomb/internal/middleware"
	"github.com/aplomb-care/aplomb/internal/safety"
	"github.com/aplomb-care/aplomb/internal/session"
	"github.com/aplomb-care/aplomb/internal/turn"
	"github.com/aplomb-care/aplomb/internal/usage"
	"github.com/aplomb-care/aplomb/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	store, err := session.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := store.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Dialogue agent is optional: without a key the safety gates still run,
	// but passthrough turns are answered with 503.
	var gen agent.Generator
	if cfg.OpenAIAPIKey != "" {
		gen = agent.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AgentTimeout)
		defer gen.Close()
		slog.Info("Dialogue agent initialized", "model", cfg.OpenAIModel)
	} else {
		slog.Warn("Dialogue agent disabled (OPENAI_API_KEY not set)")
	}

	recorder, err := usage.NewRecorder(usage.RecorderConfig{
		Enabled:   cfg.UsageLog.Enabled,
		Dir:       cfg.UsageLog.Dir,
		QueueSize: cfg.UsageLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize usage recorder", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil {
			slog.Error("Failed to close usage recorder", "error", closeErr)
		}
	}()

	crisisGate := safety.CrisisGate(cfg.MonitorCleanTurns)
	medicalGate := safety.MedicalGate(cfg.MonitorCleanTurns)
	coordinator := turn.NewCoordinator(store, crisisGate, medicalGate, gen, recorder)

	// Initialize handlers.
	apiHandler := api.NewHandler(coordinator, store, cfg)
	defer apiHandler.Close()
	wsHandler := ws.NewHandler(coordinator, ws.NewRegistry(), apiHandler.RateLimiter(), cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/turn", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start session cleanup worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartCleanupWorker(ctx, store, cfg.SessionTTL)
	slog.Info("Session cleanup worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
