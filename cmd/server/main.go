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

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dentistplus/clinic-api/internal/admin"
	"github.com/dentistplus/clinic-api/internal/api"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/billing"
	"github.com/dentistplus/clinic-api/internal/config"
	"github.com/dentistplus/clinic-api/internal/database"
	"github.com/dentistplus/clinic-api/internal/patient"
	"github.com/dentistplus/clinic-api/internal/record"
	"github.com/dentistplus/clinic-api/internal/scheduling"
	"github.com/dentistplus/clinic-api/internal/store"
	"github.com/dentistplus/clinic-api/internal/treatment"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()
	client, err := database.NewMongoClient(ctx, &database.Config{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		MinPoolSize:            cfg.Mongo.MinPoolSize,
		ConnectTimeout:         cfg.Mongo.ConnTimeout,
		ServerSelectionTimeout: cfg.Mongo.SelectionTimeout,
		TLSEnabled:             cfg.Mongo.TLS.Enabled,
		TLSCAFile:              cfg.Mongo.TLS.CAFile,
		TLSCertFile:            cfg.Mongo.TLS.CertFile,
		TLSKeyFile:             cfg.Mongo.TLS.KeyFile,
	})
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Disconnect(client)

	db := client.Database(cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("Failed to ensure indexes", zap.Error(err))
	}
	st := store.NewMongo(db)

	var auditService audit.Service
	if cfg.Elasticsearch.URL != "" {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{cfg.Elasticsearch.URL},
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
		}
		auditService = audit.NewService(esClient)
	} else {
		logger.Warn("Elasticsearch URL not configured, audit events will be discarded")
		auditService = audit.NewNop()
	}

	jwtSecret := cfg.JWT.Secret
	if fromEnv := os.Getenv("JWT_SECRET"); fromEnv != "" {
		jwtSecret = fromEnv
	}
	if jwtSecret == "" {
		logger.Fatal("JWT secret is required (jwt.secret or JWT_SECRET)")
	}

	authService := auth.NewService(st, auditService, auth.Config{
		JWTSecret:   jwtSecret,
		TokenExpiry: cfg.JWT.TokenExpiry,
	})

	adminService := admin.NewService(st, authService, auditService)
	patientService := patient.NewService(st, authService, auditService)
	recordService := record.NewService(st, authService, auditService)
	treatmentService := treatment.NewService(st, authService, auditService)
	schedulingService := scheduling.NewService(st, authService, auditService)
	billingService := billing.NewService(st, authService, auditService)

	handler := api.NewHandler(
		authService,
		adminService,
		patientService,
		recordService,
		treatmentService,
		schedulingService,
		billingService,
	)

	router := api.NewRouter(handler, authService, cfg.CORS.AllowOrigins)
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if cfg.Server.TLS.Enabled {
			if err := srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		} else {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
