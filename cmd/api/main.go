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

	"github.com/tomw/raglift/internal/api"
	"github.com/tomw/raglift/internal/api/handler"
	"github.com/tomw/raglift/internal/api/middleware"
	"github.com/tomw/raglift/internal/config"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
	"github.com/tomw/raglift/internal/service"
	"github.com/tomw/raglift/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(nil)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	datasetRepo := repository.NewDatasetRepository(db)
	configRepo := repository.NewEmbeddingConfigRepository(db)
	generationRepo := repository.NewGenerationRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	corpusStorage, err := storage.NewS3Storage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize corpus storage")
	}

	ctx := context.Background()
	if err := corpusStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure corpus bucket")
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	lifecycleService := service.NewLifecycleService(
		datasetRepo,
		configRepo,
		generationRepo,
		appLogger,
		&service.LifecycleConfig{
			StrictTransitions: cfg.Lifecycle.StrictTransitions,
			QueryTimeout:      cfg.Database.QueryTimeout,
		},
	)

	retrievalService := service.NewRetrievalService(
		lifecycleService,
		qdrantRepo,
		embeddingService,
		appLogger,
		&service.RetrievalConfig{
			DefaultTopK:    cfg.Search.DefaultTopK,
			ScoreThreshold: cfg.Search.ScoreThreshold,
		},
	)

	indexerService := service.NewIndexerService(
		lifecycleService,
		corpusStorage,
		embeddingService,
		qdrantRepo,
		appLogger,
		&service.IndexerServiceConfig{
			Workers:   cfg.Indexer.Workers,
			BatchSize: cfg.Indexer.BatchSize,
		},
	)

	router := api.SetupRouter(&api.RouterConfig{
		Health:    handler.NewHealthHandler(db, qdrantRepo),
		Lifecycle: handler.NewLifecycleHandler(lifecycleService),
		Search:    handler.NewSearchHandler(retrievalService, indexerService),
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
