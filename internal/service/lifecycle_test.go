package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomw/raglift/internal/config"
	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
	"gorm.io/gorm"
)

type lifecycleFixture struct {
	svc     *LifecycleService
	configs *repository.EmbeddingConfigRepository
	db      *gorm.DB
}

// newLifecycleFixture builds a lifecycle service on a throwaway SQLite store.
func newLifecycleFixture(t *testing.T, cfg *LifecycleConfig) *lifecycleFixture {
	t.Helper()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}

	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	configs := repository.NewEmbeddingConfigRepository(db)
	svc := NewLifecycleService(
		repository.NewDatasetRepository(db),
		configs,
		repository.NewGenerationRepository(db),
		log,
		cfg,
	)
	return &lifecycleFixture{svc: svc, configs: configs, db: db}
}

func TestRegisterEmbeddingConfigIdempotent(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("ids differ for identical parameters: %s vs %s", first.ID, second.ID)
	}

	count, err := f.configs.CountByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one stored record, got %d", count)
	}

	// A different parameter set must get a different identity.
	other, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 51)
	if err != nil {
		t.Fatalf("third registration: %v", err)
	}
	if other.ID == first.ID {
		t.Errorf("different parameters produced the same id %s", first.ID)
	}
}

func TestRegisterEmbeddingConfigValidation(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 0, 50); err == nil {
		t.Error("expected error for zero chunk size")
	}
	if _, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
}

func TestCreateIndexGenerationStartsAsDraft(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, err := f.svc.CreateDataset(ctx, "Docs", "v1")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	cfg, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	if err != nil {
		t.Fatalf("register config: %v", err)
	}

	gen, err := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)
	if err != nil {
		t.Fatalf("create generation: %v", err)
	}

	if gen.Status != domain.StateDraft {
		t.Errorf("new generation status = %s, want %s", gen.Status, domain.StateDraft)
	}
	if gen.CollectionName != domain.CollectionNameFor(gen.ID) {
		t.Errorf("collection name %s not derived from generation id", gen.CollectionName)
	}

	stored, err := f.svc.GetIndexGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("get generation: %v", err)
	}
	if stored.CollectionName != gen.CollectionName {
		t.Errorf("stored collection name %s != %s", stored.CollectionName, gen.CollectionName)
	}
}

func TestPromoteDemotesPreviousProduction(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	g1, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)
	g2, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	if _, err := f.svc.PromoteIndex(ctx, g1.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote g1: %v", err)
	}
	// Distinct updated_at timestamps keep the resolver's ordering unambiguous.
	time.Sleep(10 * time.Millisecond)
	if _, err := f.svc.PromoteIndex(ctx, g2.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote g2: %v", err)
	}

	first, _ := f.svc.GetIndexGeneration(ctx, g1.ID)
	second, _ := f.svc.GetIndexGeneration(ctx, g2.ID)

	if first.Status != domain.StateDeprecated {
		t.Errorf("g1 status = %s, want %s", first.Status, domain.StateDeprecated)
	}
	if second.Status != domain.StateProduction {
		t.Errorf("g2 status = %s, want %s", second.Status, domain.StateProduction)
	}

	resolved, err := f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == nil || resolved.ID != g2.ID {
		t.Errorf("resolver returned %+v, want g2 %s", resolved, g2.ID)
	}
}

func TestGetProductionIndexAcrossVersions(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	v1, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	v2, _ := f.svc.CreateDataset(ctx, "Docs", "v2")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)

	g1, _ := f.svc.CreateIndexGeneration(ctx, v1.ID, cfg.ID)
	g2, _ := f.svc.CreateIndexGeneration(ctx, v2.ID, cfg.ID)

	if _, err := f.svc.PromoteIndex(ctx, g1.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote g1: %v", err)
	}
	resolved, err := f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == nil || resolved.ID != g1.ID {
		t.Fatalf("resolver before v2 promotion returned %+v, want g1", resolved)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := f.svc.PromoteIndex(ctx, g2.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote g2: %v", err)
	}

	// g1 belongs to a different dataset record, so it is untouched by the
	// demotion scan; the resolver still moves to the newer promotion.
	first, _ := f.svc.GetIndexGeneration(ctx, g1.ID)
	if first.Status != domain.StateProduction {
		t.Errorf("g1 status = %s, want untouched %s", first.Status, domain.StateProduction)
	}

	resolved, err = f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("resolve after v2 promotion: %v", err)
	}
	if resolved == nil || resolved.ID != g2.ID {
		t.Errorf("resolver after v2 promotion returned %+v, want g2 %s", resolved, g2.ID)
	}
}

func TestGetProductionIndexSoftMiss(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	gen, err := f.svc.GetProductionIndex(ctx, "never-registered")
	if err != nil {
		t.Fatalf("unexpected error for unknown name: %v", err)
	}
	if gen != nil {
		t.Errorf("expected nil generation for unknown name, got %+v", gen)
	}

	// A registered dataset with only non-production generations is also a
	// soft miss, not an error.
	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	draft, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)
	if _, err := f.svc.PromoteIndex(ctx, draft.ID, domain.StateStaging); err != nil {
		t.Fatalf("promote to staging: %v", err)
	}

	gen, err = f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("unexpected error with nothing in production: %v", err)
	}
	if gen != nil {
		t.Errorf("expected nil generation with nothing in production, got %+v", gen)
	}
}

func TestCreateIndexGenerationDanglingReferences(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)

	_, err := f.svc.CreateIndexGeneration(ctx, "no-such-dataset", cfg.ID)
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
	_, err = f.svc.CreateIndexGeneration(ctx, dataset.ID, "no-such-config")
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestPromoteUnknownGeneration(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	existing, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	_, err := f.svc.PromoteIndex(ctx, "00000000-0000-0000-0000-000000000000", domain.StateProduction)
	if !errors.Is(err, domain.ErrGenerationNotFound) {
		t.Fatalf("expected ErrGenerationNotFound, got %v", err)
	}

	// The failed promotion must not have touched anything else.
	stored, _ := f.svc.GetIndexGeneration(ctx, existing.ID)
	if stored.Status != domain.StateDraft {
		t.Errorf("existing generation mutated to %s by a failed promotion", stored.Status)
	}
}

func TestPromoteSurfacesVanishedRecordDistinctly(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	// Delete the row after the promotion's lookup but before its status
	// update, through an update-callback that fires once.
	vanished := false
	err := f.db.Callback().Update().Before("gorm:update").Register("vanish_row", func(tx *gorm.DB) {
		if vanished {
			return
		}
		vanished = true
		f.db.Exec("DELETE FROM index_generations WHERE id = ?", gen.ID)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = f.svc.PromoteIndex(ctx, gen.ID, domain.StateStaging)
	if !errors.Is(err, domain.ErrStoreInconsistent) {
		t.Fatalf("expected ErrStoreInconsistent, got %v", err)
	}
	if errors.Is(err, domain.ErrGenerationNotFound) {
		t.Error("a vanished record must not read as never-existed")
	}
	if !vanished {
		t.Fatal("update callback never fired; the fault was not injected")
	}
}

func TestConcurrentProductionPromotions(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	g1, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)
	g2, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{g1.ID, g2.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.PromoteIndex(ctx, id, domain.StateProduction)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent promotion failed: %v", err)
		}
	}

	gens, err := f.svc.ListGenerations(ctx, dataset.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	var production int
	for _, g := range gens {
		if g.Status == domain.StateProduction {
			production++
		}
	}
	if production != 1 {
		t.Errorf("%d generations in production after concurrent promotions, want exactly 1", production)
	}
}

func TestPromoteReturnsPersistedTimestamp(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	promoted, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateProduction)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	stored, err := f.svc.GetIndexGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("get generation: %v", err)
	}
	if !promoted.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("returned updated_at %v differs from stored %v", promoted.UpdatedAt, stored.UpdatedAt)
	}
}

func TestPromoteTimeoutExcludesLockWait(t *testing.T) {
	f := newLifecycleFixture(t, &LifecycleConfig{QueryTimeout: 100 * time.Millisecond})
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	// Hold the dataset lock longer than the store timeout; the promotion's
	// store deadlines must start after the lock is acquired, so it still
	// succeeds.
	f.svc.datasetLocks.Lock(dataset.ID)
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateProduction)
		done <- err
	}()
	time.Sleep(250 * time.Millisecond)
	f.svc.datasetLocks.Unlock(dataset.ID)

	if err := <-done; err != nil {
		t.Fatalf("promotion failed after waiting on the dataset lock: %v", err)
	}
	stored, _ := f.svc.GetIndexGeneration(ctx, gen.ID)
	if stored.Status != domain.StateProduction {
		t.Errorf("status = %s, want %s", stored.Status, domain.StateProduction)
	}
}

func TestPromoteUnknownTargetState(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	_, err := f.svc.PromoteIndex(context.Background(), "irrelevant", domain.LifecycleState("bogus"))
	if err == nil {
		t.Fatal("expected error for unknown target state")
	}
}

func TestPermissiveTransitionsAllowBackwardMoves(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	if _, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote to production: %v", err)
	}
	if _, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateDraft); err != nil {
		t.Fatalf("permissive mode rejected a backward move: %v", err)
	}
}

func TestStrictTransitionsRejectBackwardMoves(t *testing.T) {
	f := newLifecycleFixture(t, &LifecycleConfig{StrictTransitions: true})
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	if _, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateStaging); err != nil {
		t.Fatalf("forward move rejected: %v", err)
	}
	_, err := f.svc.PromoteIndex(ctx, gen.ID, domain.StateDraft)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored, _ := f.svc.GetIndexGeneration(ctx, gen.ID)
	if stored.Status != domain.StateStaging {
		t.Errorf("rejected transition still mutated status to %s", stored.Status)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, err := f.svc.CreateDataset(ctx, "Docs", "v1")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	cfg, err := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	if err != nil {
		t.Fatalf("register config: %v", err)
	}
	gen, err := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)
	if err != nil {
		t.Fatalf("create generation: %v", err)
	}

	for _, state := range []domain.LifecycleState{
		domain.StateIndexing,
		domain.StateStaging,
		domain.StateProduction,
	} {
		if _, err := f.svc.PromoteIndex(ctx, gen.ID, state); err != nil {
			t.Fatalf("promote to %s: %v", state, err)
		}
	}

	resolved, err := f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected a production generation after promotion")
	}
	if resolved.ID != gen.ID {
		t.Errorf("resolved %s, want %s", resolved.ID, gen.ID)
	}
	if resolved.CollectionName != domain.CollectionNameFor(gen.ID) {
		t.Errorf("resolved collection %s not derived from generation id", resolved.CollectionName)
	}

	gens, err := f.svc.ListGenerations(ctx, dataset.ID)
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(gens) != 1 {
		t.Errorf("expected 1 generation, got %d", len(gens))
	}

	// Rebuild with a different config and roll it into production; the first
	// generation must step aside.
	cfg2, err := f.svc.RegisterEmbeddingConfig(ctx, "model-b", 256, 32)
	if err != nil {
		t.Fatalf("register second config: %v", err)
	}
	gen2, err := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg2.ID)
	if err != nil {
		t.Fatalf("create second generation: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := f.svc.PromoteIndex(ctx, gen2.ID, domain.StateProduction); err != nil {
		t.Fatalf("promote second generation: %v", err)
	}

	first, _ := f.svc.GetIndexGeneration(ctx, gen.ID)
	if first.Status != domain.StateDeprecated {
		t.Errorf("first generation status = %s, want %s", first.Status, domain.StateDeprecated)
	}
	resolved, err = f.svc.GetProductionIndex(ctx, "Docs")
	if err != nil {
		t.Fatalf("resolve after rollover: %v", err)
	}
	if resolved == nil || resolved.ID != gen2.ID {
		t.Errorf("resolver after rollover returned %+v, want %s", resolved, gen2.ID)
	}
}
