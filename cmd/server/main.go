// Package main is the entry point for the encaissement API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"encaissement/internal/domain/auth"
	"encaissement/internal/domain/payment"
	"encaissement/internal/domain/student"
	"encaissement/internal/infrastructure/blob"
	v1 "encaissement/internal/infrastructure/http/v1"
	"encaissement/internal/infrastructure/http/v1/handlers"
	"encaissement/internal/infrastructure/storage/postgres"
	"encaissement/internal/infrastructure/storage/postgres/auth_repo"
	"encaissement/internal/infrastructure/storage/postgres/migrations"
	"encaissement/pkg/logger"
	"encaissement/pkg/sequence"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting encaissement server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")

	if getEnv("RUN_MIGRATIONS", "true") == "true" {
		if err := migrations.Run(ctx, dsn); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("migrations applied")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Attachment storage (optional) ---
	var attachments handlers.AttachmentStore
	if bucket := getEnv("S3_BUCKET", ""); bucket != "" {
		store, err := blob.NewAttachmentStore(ctx, blob.Config{
			Region:       getEnv("S3_REGION", "us-east-1"),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			Bucket:       bucket,
			AccessKey:    mustEnv("S3_ACCESS_KEY"),
			SecretKey:    mustEnv("S3_SECRET_KEY"),
			UsePathStyle: getEnv("S3_PATH_STYLE", "true") == "true",
		})
		if err != nil {
			log.Fatalw("failed to initialize attachment storage", "error", err)
		}
		attachments = store
		log.Infow("attachment storage initialized", "bucket", bucket)
	} else {
		log.Warn("S3_BUCKET not set, attachment uploads disabled")
	}

	// --- JWT ---
	jwtSecret := mustEnv("JWT_SECRET")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Services ---
	authService := auth.NewService(
		auth_repo.NewUserRepo(txManager),
		auth_repo.NewTokenRepo(txManager),
		txManager,
		jwtService,
		auth.DefaultServiceConfig(),
	)

	allocator := sequence.New(pool)
	paymentService := payment.NewService(postgres.NewPaymentRepo(txManager), allocator, txManager)
	studentService := student.NewService(postgres.NewStudentRepo(txManager))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		JWTValidator:   jwtService,
		AuthService:    authService,
		PaymentService: paymentService,
		StudentService: studentService,
		Attachments:    attachments,
		AllowedOrigins: splitEnv("CORS_ALLOWED_ORIGINS"),
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func splitEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
