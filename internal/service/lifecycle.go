package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
)

const defaultQueryTimeout = 5 * time.Second

// LifecycleConfig holds configuration for the lifecycle service.
type LifecycleConfig struct {
	// StrictTransitions rejects promotions that do not move forward in the
	// lifecycle ordering. Off by default: any target state is accepted from
	// any current state.
	StrictTransitions bool

	// QueryTimeout bounds every metadata store round trip.
	QueryTimeout time.Duration
}

// LifecycleService owns the index generation lifecycle: dataset and embedding
// config registration, generation creation, promotion with demotion of the
// previous production generation, and production resolution.
//
// All methods are safe for concurrent use. The demote+promote sequence is
// serialized per dataset id within this process; concurrent writers in other
// processes can still race the two store round trips.
type LifecycleService struct {
	datasets    *repository.DatasetRepository
	configs     *repository.EmbeddingConfigRepository
	generations *repository.GenerationRepository
	logger      *logger.Logger

	strict       bool
	queryTimeout time.Duration
	datasetLocks *keyedMutex
}

// NewLifecycleService creates a new lifecycle service.
// Parameters:
//   - datasets: dataset repository.
//   - configs: embedding config repository.
//   - generations: generation repository.
//   - log: logger instance.
//   - cfg: lifecycle settings; nil uses permissive defaults.
// Returns:
//   - *LifecycleService: initialized service.
func NewLifecycleService(
	datasets *repository.DatasetRepository,
	configs *repository.EmbeddingConfigRepository,
	generations *repository.GenerationRepository,
	log *logger.Logger,
	cfg *LifecycleConfig,
) *LifecycleService {
	strict := false
	timeout := defaultQueryTimeout
	if cfg != nil {
		strict = cfg.StrictTransitions
		if cfg.QueryTimeout > 0 {
			timeout = cfg.QueryTimeout
		}
	}
	return &LifecycleService{
		datasets:     datasets,
		configs:      configs,
		generations:  generations,
		logger:       log,
		strict:       strict,
		queryTimeout: timeout,
		datasetLocks: newKeyedMutex(),
	}
}

// log returns a logger from context if available, otherwise the default.
func (s *LifecycleService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

func (s *LifecycleService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// CreateDataset registers a new dataset version snapshot.
// Repeated calls with the same (name, version) create distinct records; the
// production resolver operates at the name level across all of them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: logical dataset name.
//   - version: version tag.
// Returns:
//   - *domain.Dataset: persisted record.
//   - error: non-nil if the insert fails.
func (s *LifecycleService) CreateDataset(ctx context.Context, name, version string) (*domain.Dataset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	dataset := &domain.Dataset{
		ID:        uuid.New().String(),
		Name:      name,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.datasets.Create(ctx, dataset); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldDatasetID: dataset.ID,
		"name":                name,
		"version":             version,
	}).Info("Dataset created")

	return dataset, nil
}

// RegisterEmbeddingConfig registers an embedding configuration, deduplicated
// by its content-addressed id. Registering an identical triple again returns
// the same id and persists nothing new.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: embedding model name.
//   - chunkSize: chunk size in runes, must be positive.
//   - chunkOverlap: overlap between consecutive chunks, must not be negative.
// Returns:
//   - *domain.EmbeddingConfig: config built from the derived id and the
//     supplied parameters.
//   - error: non-nil on invalid parameters or store failure.
func (s *LifecycleService) RegisterEmbeddingConfig(ctx context.Context, modelName string, chunkSize, chunkOverlap int) (*domain.EmbeddingConfig, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cfg := &domain.EmbeddingConfig{
		ID:           domain.EmbeddingConfigID(modelName, chunkSize, chunkOverlap),
		ModelName:    modelName,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		CreatedAt:    time.Now().UTC(),
	}

	// Insert-if-absent on the content-addressed primary key: concurrent
	// registrations of the same triple converge on one stored record.
	if err := s.configs.CreateIfAbsent(ctx, cfg); err != nil {
		return nil, fmt.Errorf("register embedding config: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		"config_id": cfg.ID,
		"model":     modelName,
	}).Info("Embedding config registered")

	return cfg, nil
}

// GetEmbeddingConfig retrieves an embedding config by id.
func (s *LifecycleService) GetEmbeddingConfig(ctx context.Context, id string) (*domain.EmbeddingConfig, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.configs.GetByID(ctx, id)
}

// CreateIndexGeneration creates a DRAFT generation bound to a dataset and
// config, with its physical collection name derived from the generation id.
// Both references must resolve; the physical collection itself is created
// later by the indexer, this call only records metadata.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetID: dataset the generation indexes.
//   - configID: embedding config the generation is built with.
// Returns:
//   - *domain.IndexGeneration: persisted DRAFT record.
//   - error: wraps domain.ErrDatasetNotFound or domain.ErrConfigNotFound on a
//     dangling reference, otherwise non-nil if the insert fails.
func (s *LifecycleService) CreateIndexGeneration(ctx context.Context, datasetID, configID string) (*domain.IndexGeneration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, fmt.Errorf("create index generation: %w", err)
	}
	if _, err := s.configs.GetByID(ctx, configID); err != nil {
		return nil, fmt.Errorf("create index generation: %w", err)
	}

	now := time.Now().UTC()
	gen := &domain.IndexGeneration{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		ConfigID:  configID,
		Status:    domain.StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	gen.CollectionName = domain.CollectionNameFor(gen.ID)

	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("create index generation: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldGenerationID: gen.ID,
		logger.FieldDatasetID:    datasetID,
		logger.FieldCollection:   gen.CollectionName,
	}).Info("Index generation created")

	return gen, nil
}

// GetIndexGeneration retrieves a generation by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: generation id.
// Returns:
//   - *domain.IndexGeneration: record if found.
//   - error: wraps domain.ErrGenerationNotFound when absent.
func (s *LifecycleService) GetIndexGeneration(ctx context.Context, id string) (*domain.IndexGeneration, error) {
	return s.lookupGeneration(ctx, id)
}

// lookupGeneration is a point lookup under its own store timeout.
func (s *LifecycleService) lookupGeneration(ctx context.Context, id string) (*domain.IndexGeneration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.generations.GetByID(ctx, id)
}

// PromoteIndex transitions a generation to a new lifecycle state. Promoting
// to PRODUCTION first demotes every other PRODUCTION generation of the same
// dataset to DEPRECATED; that demote+promote sequence holds the dataset's
// lock so in-process promotions cannot interleave.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: generation id.
//   - target: target lifecycle state.
// Returns:
//   - *domain.IndexGeneration: updated record.
//   - error: wraps domain.ErrGenerationNotFound when the id never resolved,
//     domain.ErrInvalidTransition in strict mode, and
//     domain.ErrStoreInconsistent when the record vanished mid-operation.
func (s *LifecycleService) PromoteIndex(ctx context.Context, id string, target domain.LifecycleState) (*domain.IndexGeneration, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("promote generation %s: unknown target state %q", id, target)
	}

	// The timeout bounds store round trips, not the wait on the dataset
	// lock, so each trip gets its own deadline instead of one shared budget.
	gen, err := s.lookupGeneration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}

	if s.strict && !gen.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("promote generation %s from %s to %s: %w",
			id, gen.Status, target, domain.ErrInvalidTransition)
	}

	if target == domain.StateProduction {
		s.datasetLocks.Lock(gen.DatasetID)
		defer s.datasetLocks.Unlock(gen.DatasetID)

		if err := s.demotePreviousProduction(ctx, gen.DatasetID, id); err != nil {
			return nil, fmt.Errorf("promote generation %s: %w", id, err)
		}
	}

	// Second round trip re-resolves the record by id. Zero rows means it
	// existed at lookup time and is gone now, which is a store-side fault,
	// not a user error.
	updateCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, promotedAt, err := s.generations.UpdateStatus(updateCtx, id, target)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("promote generation %s to %s: %w", id, target, domain.ErrStoreInconsistent)
	}

	gen.Status = target
	gen.UpdatedAt = promotedAt

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldGenerationID: id,
		logger.FieldDatasetID:    gen.DatasetID,
		logger.FieldStatus:       string(target),
	}).Info("Index generation promoted")

	return gen, nil
}

// demotePreviousProduction marks every other PRODUCTION generation of the
// dataset as DEPRECATED. A zero-row update here means a concurrent writer
// already moved that generation on; the demotion's goal is met either way.
// Each store round trip runs under its own timeout.
func (s *LifecycleService) demotePreviousProduction(ctx context.Context, datasetID, excludeID string) error {
	scanCtx, cancel := s.withTimeout(ctx)
	gens, err := s.generations.ListProductionByDataset(scanCtx, datasetID, excludeID)
	cancel()
	if err != nil {
		return err
	}

	for i := range gens {
		updateCtx, cancel := s.withTimeout(ctx)
		rows, _, err := s.generations.UpdateStatus(updateCtx, gens[i].ID, domain.StateDeprecated)
		cancel()
		if err != nil {
			return fmt.Errorf("demote generation %s: %w", gens[i].ID, err)
		}
		if rows == 0 {
			s.log(ctx).WithField(logger.FieldGenerationID, gens[i].ID).
				Warn("Generation disappeared during demotion scan")
			continue
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldGenerationID: gens[i].ID,
			logger.FieldDatasetID:    datasetID,
		}).Info("Previous production generation deprecated")
	}
	return nil
}

// GetProductionIndex resolves the generation currently serving production
// traffic for a dataset name. All versions of the name are considered; the
// most recently promoted PRODUCTION generation wins, ties broken by
// generation id. A nil result with nil error is a soft miss: nothing is in
// production, which is a valid state and not a failure.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetName: logical dataset name.
// Returns:
//   - *domain.IndexGeneration: production generation, or nil on a soft miss.
//   - error: non-nil only on store failure.
func (s *LifecycleService) GetProductionIndex(ctx context.Context, datasetName string) (*domain.IndexGeneration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	datasets, err := s.datasets.ListByName(ctx, datasetName)
	if err != nil {
		return nil, fmt.Errorf("resolve production index for %q: %w", datasetName, err)
	}
	if len(datasets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(datasets))
	for i := range datasets {
		ids[i] = datasets[i].ID
	}

	gen, err := s.generations.FindLatestProduction(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve production index for %q: %w", datasetName, err)
	}
	return gen, nil
}

// ListGenerations returns every generation of a dataset in creation order.
func (s *LifecycleService) ListGenerations(ctx context.Context, datasetID string) ([]domain.IndexGeneration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.generations.ListByDataset(ctx, datasetID)
}
