package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "coreshare-backend/internal/api/http"
	"coreshare-backend/internal/chat"
	"coreshare-backend/internal/config"
	"coreshare-backend/internal/jobs"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/mpesa"
	"coreshare-backend/internal/repository/postgres"
	"coreshare-backend/internal/scheduler"
	"coreshare-backend/internal/security"
	"coreshare-backend/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	migrate := flag.Bool("migrate", false, "Apply the database schema before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting CoreShare Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("M-Pesa configuration", "environment", cfg.Mpesa.Environment, "test_mode", cfg.Mpesa.TestMode)

	// Initialize Database
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info("Database schema applied")
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Out-of-band delivery
	push, err := service.NewFirebasePush(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to initialize push notifications: %v", err)
	}
	if push == nil {
		logger.Warn("Firebase credentials not configured; push notifications disabled")
	}
	email := service.NewSendGridEmail(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	if email == nil {
		logger.Warn("SendGrid API key not configured; billing emails disabled")
	}
	deliveryCtx, stopDelivery := context.WithCancel(context.Background())
	delivery := service.NewDeliveryQueue(push, email, store.Users, 2, 256, 3)
	delivery.Start(deliveryCtx)

	// Payment gateway
	gateway := mpesa.NewClient(mpesa.Config{
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		ShortCode:       cfg.Mpesa.ShortCode,
		PassKey:         cfg.Mpesa.PassKey,
		CallbackBaseURL: cfg.Mpesa.CallbackBaseURL,
		Environment:     cfg.Mpesa.Environment,
		TestMode:        cfg.Mpesa.TestMode,
		Timeout:         time.Duration(cfg.Mpesa.TimeoutSeconds) * time.Second,
	})

	// Initialize Services
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	authSvc := service.NewAuthService(store.Users, tokenManager)
	userSvc := service.NewUserService(store.Users)
	gpuSvc := service.NewGpuService(store.Gpus, store.Rentals, store.Users, int32(cfg.Rental.PopularGpusLimit))
	rentalSvc := service.NewRentalService(store, store.Repositories, delivery)
	paymentSvc := service.NewPaymentService(store, store.Repositories, gateway, delivery, cfg.PaymentClaimTTL())
	reviewSvc := service.NewReviewService(store.Reviews, store.Rentals, store.Gpus)
	noteSvc := service.NewNotificationService(store.Notifications)
	chatSvc := service.NewChatService(chat.NewMemoryStore(0), gpuSvc, rentalSvc, cfg.ChatSessionTTL())

	// Background jobs run in-process so chat sessions can be expired
	jobRunner := jobs.NewJobRunner(&jobs.Services{Rental: rentalSvc, Payment: paymentSvc, Chat: chatSvc}, cfg)
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to configure scheduler: %v", err)
	}
	cronScheduler.Start()

	router := httpapi.NewRouter(httpapi.Handlers{
		Auth:          httpapi.NewAuthHandler(authSvc, userSvc),
		Gpus:          httpapi.NewGpuHandler(gpuSvc, reviewSvc),
		Rentals:       httpapi.NewRentalHandler(rentalSvc, paymentSvc),
		Reviews:       httpapi.NewReviewHandler(reviewSvc),
		Notifications: httpapi.NewNotificationHandler(noteSvc),
		Chat:          httpapi.NewChatHandler(chatSvc),
	}, httpapi.NewAuthMiddleware(tokenManager))

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	cronScheduler.Stop()
	stopDelivery()
	delivery.Wait()
	logger.Info("Server stopped. Goodbye!")
}
