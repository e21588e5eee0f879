package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"activation-server/config"
	"activation-server/internal/api"
	"activation-server/internal/auth"
	"activation-server/internal/database"
	"activation-server/internal/entitlement"
	"activation-server/internal/events"
	"activation-server/internal/logging"
	"activation-server/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx := context.Background()

	// Initialize Vault for operational secrets
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}

	jwtSecret := cfg.AuthConfig.JWTSecret
	dbPassword := getEnv("DB_PASSWORD", "activation_password")
	if vaultClient.IsEnabled() {
		if err := vaultClient.Health(ctx); err != nil {
			log.Fatalf("Vault health check failed: %v", err)
		}
		if secret, err := vaultClient.GetSecret(ctx, "jwt-secret"); err == nil {
			jwtSecret = secret
		} else {
			logger.Warn("JWT secret not found in vault, falling back to config", "error", err.Error())
		}
		if secret, err := vaultClient.GetSecret(ctx, "db-password"); err == nil {
			dbPassword = secret
		}
		logger.Info("Vault secrets loaded")
	}

	// Initialize database
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "activation"),
		Password: dbPassword,
		Database: getEnv("DB_NAME", "activation"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repository
	repo := database.NewRepository(db)

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize credential hashing
	passwordManager := auth.NewPasswordManager(auth.DefaultBcryptCost, cfg.AuthConfig.MinPasswordLength)

	// Initialize the entitlement service
	service := entitlement.NewService(repo, passwordManager, entitlement.SystemClock(), entitlement.Config{
		TrialDays: cfg.LicensingConfig.TrialDays,
	})
	service.SetEventSink(eventBus)
	logger.Info("Entitlement service initialized", "trial_days", service.TrialDays())

	// Optional Redis status cache for edge readers
	if cfg.RedisConfig.Enabled {
		statusCache := database.NewRedisStatusCache(
			cfg.RedisConfig.Address,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			zlog,
		)
		defer statusCache.Close()
		service.SetStatusCache(statusCache)
		logger.Info("Redis status cache enabled", "addr", cfg.RedisConfig.Address)
	}

	// Ensure an admin account exists
	if err := auth.SeedAdminUser(ctx, db, cfg.AuthConfig.DefaultAdminEmail, cfg.AuthConfig.DefaultAdminPassword); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	// Initialize authentication
	authService := auth.NewService(repo, passwordManager, auth.Config{
		JWTSecret:           jwtSecret,
		AccessTokenDuration: cfg.AuthConfig.AccessTokenDuration,
		MinPasswordLength:   cfg.AuthConfig.MinPasswordLength,
	})

	// Initialize web server
	serverConfig := api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowOrigins:   cfg.ServerConfig.AllowedOriginList(),
	}

	server := api.NewServer(serverConfig, repo, service, eventBus, authService)

	// Start web server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	log.Printf("Activation server listening on http://%s:%d", serverConfig.Host, serverConfig.Port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down web server: %v", err)
	}

	log.Println("Shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
