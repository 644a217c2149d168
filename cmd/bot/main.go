package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/communitypress/dispatch-bot/internal/config"
	"github.com/communitypress/dispatch-bot/internal/feed"
	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/communitypress/dispatch-bot/internal/notifications"
	"github.com/communitypress/dispatch-bot/internal/pipeline"
	"github.com/communitypress/dispatch-bot/internal/scheduler"
	"github.com/communitypress/dispatch-bot/internal/storage"
	"github.com/communitypress/dispatch-bot/internal/trending"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Community Dispatch Bot")

	// Initialize Azure storage
	storageClient, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	newsletterStore := storage.NewNewsletterStore(storageClient)
	profileStore := storage.NewProfileStore(storageClient, models.ServerProfile{
		Persona:             models.ParsePersona(cfg.DefaultPersona),
		NewsletterChannelID: cfg.DefaultChannelID,
		BlacklistedWords:    cfg.BlacklistedWords,
		MaxMessagesAnalysis: cfg.MaxMessagesAnalysis,
	})

	// Initialize the completion provider
	completionClient := llm.NewClient(llm.ClientOptions{
		Name:              cfg.ProviderName,
		Endpoint:          cfg.ProviderEndpoint,
		Model:             cfg.ProviderModel,
		APIKey:            cfg.ProviderAPIKey,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	// Initialize collaborators
	messageFeed := feed.NewHTTPFeed(cfg.FeedBaseURL, cfg.FeedAPIKey)
	trendingProvider := trending.NewHTTPProvider(cfg.TrendingBaseURL)
	notificationService := notifications.NewService(cfg)

	orchestrator := pipeline.NewOrchestrator(completionClient, pipeline.OrchestratorOptions{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: time.Duration(cfg.BackoffSeconds) * time.Second,
	})

	var trendingIface trending.Provider
	if trendingProvider != nil {
		trendingIface = trendingProvider
	}
	pipelineService := pipeline.NewService(cfg, messageFeed, trendingIface,
		newsletterStore, profileStore, notificationService, orchestrator)

	// Initialize scheduler
	schedulerService, err := scheduler.NewService(cfg, pipelineService)
	if err != nil {
		logrus.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics endpoint
	router.HandleFunc("/metrics", metricsHandler(pipelineService)).Methods("GET")

	// Manual trigger endpoint (for testing)
	router.HandleFunc("/trigger", triggerHandler(pipelineService)).Methods("POST")

	// On-demand breaking news endpoint
	router.HandleFunc("/breaking", breakingHandler(pipelineService)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(pipelineService *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := pipelineService.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	}
}

func triggerHandler(pipelineService *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := pipelineService.RunDaily(); err != nil {
				logrus.Errorf("Manual newsletter trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Newsletter run triggered successfully"}`))
	}
}

type breakingRequest struct {
	ServerID  string `json:"server_id"`
	ChannelID string `json:"channel_id"`
}

func breakingHandler(pipelineService *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req breakingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ServerID == "" {
			http.Error(w, `{"error":"server_id is required"}`, http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		bulletin, err := pipelineService.BreakingNews(ctx, req.ServerID, req.ChannelID)
		if err != nil {
			logrus.Errorf("Breaking news request failed: %v", err)
			http.Error(w, `{"error":"breaking news generation failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"bulletin": bulletin})
	}
}
