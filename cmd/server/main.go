package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-docs/pkg/simpledocs/api"
	"github.com/tendant/simple-docs/pkg/simpledocs/config"
)

func main() {
	// Load configuration from environment
	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	// Verify database connectivity before serving
	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			log.Fatalf("Database check failed: %v", err)
		}
	}

	// Build service from configuration
	svc, err := serverConfig.BuildService()
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	documentHandler := api.NewDocumentHandler(svc)

	// Set up router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "environment": "%s", "default_storage": "%s"}`,
			serverConfig.Environment, serverConfig.DefaultStorageBackend)
	})

	r.Mount("/api/v1/documents", documentHandler.Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Simple Docs Server starting on port %s (env: %s)", serverConfig.Port, serverConfig.Environment)
		log.Printf("Default storage backend: %s", serverConfig.DefaultStorageBackend)
		if serverConfig.DatabaseType == "memory" {
			log.Printf("Memory mode: tenant %s, document type %s", config.DevTenantID, config.DevDocumentTypeID)
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
