// Package main is the entry point for the inbox sync service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/counselhub/inbox-sync/internal/config"
	"github.com/counselhub/inbox-sync/internal/handler"
	"github.com/counselhub/inbox-sync/internal/inbox"
	"github.com/counselhub/inbox-sync/internal/middleware"
	"github.com/counselhub/inbox-sync/internal/model"
	natsclient "github.com/counselhub/inbox-sync/internal/nats"
	"github.com/counselhub/inbox-sync/internal/session"
	"github.com/counselhub/inbox-sync/internal/upstream"
	"github.com/counselhub/inbox-sync/pkg/logger"
	"github.com/counselhub/inbox-sync/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting inbox sync service")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "inbox-sync", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS for inbox event fan-out
	var events inbox.EventPublisher
	var nc *natsclient.Client
	if cfg.NATSEnabled {
		nc, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer nc.Close()

		publisher := natsclient.NewPublisher(nc)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		events = publisher
	}

	// Upstream counseling API client
	apiClient := upstream.NewHTTPClient(upstream.Config{
		BaseURL:    cfg.UpstreamBaseURL,
		Timeout:    cfg.UpstreamTimeout,
		MaxRetries: cfg.UpstreamMaxRetries,
	}, log)

	// Per-session engine registry
	sessions := session.NewManager(func(id model.Identity) *inbox.Engine {
		return inbox.New(id, apiClient.ForIdentity(id.ID, id.Role), events, log)
	}, cfg.SessionIdleTTL, log)
	defer sessions.Close()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(nc)
	inboxHandler := handler.NewInboxHandler(sessions, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/inbox", func(r chi.Router) {
			r.Post("/refresh", inboxHandler.Refresh)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", inboxHandler.ListConversations)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/messages", inboxHandler.ListMessages)
					r.Post("/messages", inboxHandler.Send)
					r.Post("/open", inboxHandler.Open)
					r.Post("/read", inboxHandler.MarkRead)
					r.Delete("/", inboxHandler.DeleteConversation)
				})
			})

			r.Route("/messages", func(r chi.Router) {
				r.Put("/{id}", inboxHandler.Edit)
				r.Delete("/{id}", inboxHandler.DeleteMessage)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
