package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tomw/raglift/internal/config"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
	"github.com/tomw/raglift/internal/service"
	"github.com/tomw/raglift/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:          "raglift",
	Short:        "raglift: index generation lifecycle manager for retrieval pipelines",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `raglift manages versioned search indexes: register datasets and embedding
configs, build index generations, promote one to production per dataset,
and query whatever is currently live.`,
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired services a command needs. Metadata-only commands use
// Lifecycle; build and search commands use the full set.
type app struct {
	Config    *config.Config
	Lifecycle *service.LifecycleService
	Retrieval *service.RetrievalService
	Indexer   *service.IndexerService
	Storage   *storage.S3Storage

	qdrant *repository.QdrantRepository
}

func (a *app) Close() {
	if a.qdrant != nil {
		a.qdrant.Close()
	}
	logger.Sync()
}

// newLifecycleApp wires the metadata store only. Enough for dataset, config,
// generation, and resolution commands.
func newLifecycleApp() (*app, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}

	log := logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "raglift",
	})

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("cannot open metadata store: %w", err)
	}

	lifecycle := service.NewLifecycleService(
		repository.NewDatasetRepository(db),
		repository.NewEmbeddingConfigRepository(db),
		repository.NewGenerationRepository(db),
		log,
		&service.LifecycleConfig{
			StrictTransitions: cfg.Lifecycle.StrictTransitions,
			QueryTimeout:      cfg.Database.QueryTimeout,
		},
	)

	return &app{Config: cfg, Lifecycle: lifecycle}, nil
}

// newFullApp additionally wires the search engine, corpus storage, and the
// embedding provider.
func newFullApp() (*app, error) {
	a, err := newLifecycleApp()
	if err != nil {
		return nil, err
	}
	cfg := a.Config

	log := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "raglift",
	})

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to search engine: %w", err)
	}
	a.qdrant = qdrantRepo

	corpusStorage, err := storage.NewS3Storage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to corpus storage: %w", err)
	}
	a.Storage = corpusStorage

	embedding := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	a.Retrieval = service.NewRetrievalService(a.Lifecycle, qdrantRepo, embedding, log, &service.RetrievalConfig{
		DefaultTopK:    cfg.Search.DefaultTopK,
		ScoreThreshold: cfg.Search.ScoreThreshold,
	})
	a.Indexer = service.NewIndexerService(a.Lifecycle, corpusStorage, embedding, qdrantRepo, log, &service.IndexerServiceConfig{
		Workers:   cfg.Indexer.Workers,
		BatchSize: cfg.Indexer.BatchSize,
	})

	return a, nil
}
