package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
	"github.com/tomw/raglift/internal/storage"
)

// IndexWriter is the engine capability the indexer needs: collection
// provisioning and point writes. Implemented by repository.QdrantRepository.
type IndexWriter interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string) error
	UpsertDocument(ctx context.Context, collection, pointID string, vector []float32, payload *repository.DocumentPayload) error
	DropCollection(ctx context.Context, name string) error
}

// IndexerService populates the physical collection of a DRAFT generation:
// it streams the dataset's corpus documents from object storage, chunks them
// per the generation's embedding config, embeds the chunks, and upserts the
// vectors. The generation moves DRAFT -> INDEXING when the build starts and
// INDEXING -> STAGING when it completes.
type IndexerService struct {
	lifecycle *LifecycleService
	corpus    storage.CorpusStorage
	embedding EmbeddingProvider
	engine    IndexWriter
	logger    *logger.Logger
	workers   int
	batchSize int
}

// IndexerServiceConfig holds configuration for the indexer.
type IndexerServiceConfig struct {
	Workers   int
	BatchSize int
}

// NewIndexerService creates a new indexer service.
func NewIndexerService(
	lifecycle *LifecycleService,
	corpus storage.CorpusStorage,
	embedding EmbeddingProvider,
	engine IndexWriter,
	log *logger.Logger,
	cfg *IndexerServiceConfig,
) *IndexerService {
	workers := 4
	batchSize := 16
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.BatchSize > 0 {
			batchSize = cfg.BatchSize
		}
	}
	return &IndexerService{
		lifecycle: lifecycle,
		corpus:    corpus,
		embedding: embedding,
		engine:    engine,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
	}
}

func (s *IndexerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// BuildStats holds statistics for one build run.
type BuildStats struct {
	Documents int64
	Chunks    int64
	Failed    int64
	StartTime time.Time
	EndTime   time.Time
}

// corpusPrefix is where a dataset's raw documents live in object storage.
func corpusPrefix(datasetID string) string {
	return "datasets/" + datasetID + "/"
}

// BuildGeneration populates the physical collection for a generation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - generationID: generation to build.
// Returns:
//   - *BuildStats: counts for the run.
//   - error: non-nil if the build could not run; per-document failures are
//     counted in stats and logged, not fatal.
func (s *IndexerService) BuildGeneration(ctx context.Context, generationID string) (*BuildStats, error) {
	gen, err := s.lifecycle.GetIndexGeneration(ctx, generationID)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	cfg, err := s.lifecycle.GetEmbeddingConfig(ctx, gen.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("build generation %s: %w", generationID, err)
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldGenerationID: gen.ID,
		logger.FieldDatasetID:    gen.DatasetID,
		logger.FieldCollection:   gen.CollectionName,
		logger.FieldComponent:    "indexer",
	})

	if _, err := s.lifecycle.PromoteIndex(ctx, gen.ID, domain.StateIndexing); err != nil {
		return nil, fmt.Errorf("build generation %s: %w", generationID, err)
	}

	exists, err := s.engine.CollectionExists(ctx, gen.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("build generation %s: %w", generationID, err)
	}
	if !exists {
		if err := s.engine.CreateCollection(ctx, gen.CollectionName); err != nil {
			return nil, fmt.Errorf("build generation %s: %w", generationID, err)
		}
	}

	keys, err := s.corpus.List(ctx, corpusPrefix(gen.DatasetID))
	if err != nil {
		return nil, fmt.Errorf("build generation %s: list corpus: %w", generationID, err)
	}

	stats := &BuildStats{StartTime: time.Now()}
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(keys),
		"chunk_size":      cfg.ChunkSize,
		"chunk_overlap":   cfg.ChunkOverlap,
	}).Info("Starting index build")

	keysChan := make(chan string, s.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range keysChan {
				if err := s.indexDocument(ctx, gen.CollectionName, key, cfg, stats); err != nil {
					atomic.AddInt64(&stats.Failed, 1)
					s.log(ctx).WithField("key", key).WithError(err).Error("Failed to index document")
					continue
				}
				atomic.AddInt64(&stats.Documents, 1)
			}
		}()
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		keysChan <- key
	}
	close(keysChan)
	wg.Wait()

	stats.EndTime = time.Now()
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("build generation %s interrupted: %w", generationID, err)
	}

	if _, err := s.lifecycle.PromoteIndex(ctx, gen.ID, domain.StateStaging); err != nil {
		return stats, fmt.Errorf("build generation %s: %w", generationID, err)
	}

	logger.With(logger.Fields{
		"documents":             atomic.LoadInt64(&stats.Documents),
		"chunks":                atomic.LoadInt64(&stats.Chunks),
		"failed":                atomic.LoadInt64(&stats.Failed),
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info(ctx, "Index build completed")

	return stats, nil
}

// indexDocument downloads one corpus document, chunks and embeds it, and
// upserts the chunk vectors.
func (s *IndexerService) indexDocument(ctx context.Context, collection, key string, cfg *domain.EmbeddingConfig, stats *BuildStats) error {
	reader, err := s.corpus.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	chunks := ChunkText(string(content), cfg.ChunkSize, cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := s.embedding.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("embed %s: %w", key, err)
		}

		for i, vector := range vectors {
			chunkIndex := start + i
			pointID := chunkPointID(collection, key, chunkIndex)
			payload := &repository.DocumentPayload{
				DocID:      key,
				Source:     key,
				ChunkIndex: chunkIndex,
				Text:       batch[i],
			}
			if err := s.engine.UpsertDocument(ctx, collection, pointID, vector, payload); err != nil {
				return fmt.Errorf("upsert chunk %d of %s: %w", chunkIndex, key, err)
			}
			atomic.AddInt64(&stats.Chunks, 1)
		}
	}

	return nil
}

// ArchiveGeneration marks a generation ARCHIVED and drops its physical
// collection to reclaim engine resources. Nothing moves a generation to
// ARCHIVED automatically; this is an explicit operator action.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - generationID: generation to archive.
// Returns:
//   - error: non-nil if the promotion or the collection drop fails.
func (s *IndexerService) ArchiveGeneration(ctx context.Context, generationID string) error {
	gen, err := s.lifecycle.GetIndexGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	if _, err := s.lifecycle.PromoteIndex(ctx, gen.ID, domain.StateArchived); err != nil {
		return fmt.Errorf("archive generation %s: %w", generationID, err)
	}

	exists, err := s.engine.CollectionExists(ctx, gen.CollectionName)
	if err != nil {
		return fmt.Errorf("archive generation %s: %w", generationID, err)
	}
	if exists {
		if err := s.engine.DropCollection(ctx, gen.CollectionName); err != nil {
			return fmt.Errorf("archive generation %s: %w", generationID, err)
		}
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldGenerationID: gen.ID,
		logger.FieldCollection:   gen.CollectionName,
	}).Info("Generation archived, collection dropped")

	return nil
}

// chunkPointID derives a stable point id so a rebuilt document overwrites its
// previous chunks instead of duplicating them.
func chunkPointID(collection, key string, chunkIndex int) string {
	seed := collection + "/" + key + "#" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}
