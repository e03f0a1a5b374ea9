package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/labetl/internal/config"
	"github.com/rpattn/labetl/internal/db"
	"github.com/rpattn/labetl/internal/etl"
	"github.com/rpattn/labetl/internal/ingest"
	"github.com/rpattn/labetl/internal/middleware"
	"github.com/rpattn/labetl/internal/repository"
	"github.com/rpattn/labetl/internal/sink"

	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration (config.yaml + env overrides)
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Ensure the run log table exists
	if err := repository.Ensure(ctx, conn.Pool); err != nil {
		log.Fatalf("Failed to prepare run log storage: %v", err)
	}

	// Create sink, repositories, and the ETL facade
	featureSink := sink.NewPostgresSink(conn)
	runLogRepo := repository.NewRunLogRepository(conn.Pool)
	service := etl.NewService(cfg.DataDir, ingest.LoadTable, featureSink, runLogRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	handler := middleware.LoggingMiddleware(
		corsHandler.Handler(etl.NewHTTPHandler(service)),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a trigger request runs the full ETL chain
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting ETL server on %s", cfg.ListenAddr)
		log.Printf("Trigger endpoint available at http://localhost%s/trigger-etl", cfg.ListenAddr)
		log.Printf("Results endpoint available at http://localhost%s/etl-results", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
