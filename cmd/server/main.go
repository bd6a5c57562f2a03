package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/armada-ops/be-proc-approvals/internal/client"
	"github.com/armada-ops/be-proc-approvals/internal/config"
	"github.com/armada-ops/be-proc-approvals/internal/database"
	"github.com/armada-ops/be-proc-approvals/internal/handler"
	"github.com/armada-ops/be-proc-approvals/internal/logger"
	"github.com/armada-ops/be-proc-approvals/internal/middleware"
	"github.com/armada-ops/be-proc-approvals/internal/natsclient"
	"github.com/armada-ops/be-proc-approvals/internal/repository"
	"github.com/armada-ops/be-proc-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Procurement Approvals Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize NATS (optional; publishing is disabled without a URL)
	var nats *natsclient.Client
	if cfg.NATS.URL != "" {
		nats, err = natsclient.New(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nats.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set; notification publishing disabled")
	}

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	procurementRepo := repository.NewProcurementRepository(db)
	stepsRepo := repository.NewApprovalStepsRepository(db)
	configRepo := repository.NewApprovalConfigRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Initialize notification publisher
	publisher := client.NewNotificationPublisher(nats, log.Logger)

	// Initialize services
	flowService := service.NewFlowService(documentRepo, procurementRepo, stepsRepo, configRepo, offerRepo, auditRepo, publisher, log)
	gateService := service.NewGateService(documentRepo, procurementRepo, stepsRepo, auditRepo, publisher, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(flowService, gateService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Approval routes
	mux.HandleFunc("/api/v1/documents/submit", httpHandler.SubmitDocument)
	mux.HandleFunc("/api/v1/approvals/gate", httpHandler.ResolveGate)
	mux.HandleFunc("/api/v1/approvals/action", httpHandler.ApprovalAction)
	mux.HandleFunc("/api/v1/approvals/pending", httpHandler.PendingApprovals)
	mux.HandleFunc("/api/v1/approvals/history", httpHandler.ApprovalHistory)
	mux.HandleFunc("/api/v1/procurements/best-offer", httpHandler.BestOffer)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
