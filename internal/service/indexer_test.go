package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/repository"
)

type memoryCorpus struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryCorpus() *memoryCorpus {
	return &memoryCorpus{objects: make(map[string][]byte)}
}

func (m *memoryCorpus) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryCorpus) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memoryCorpus) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memoryCorpus) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryCorpus) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

type fakeIndexWriter struct {
	mu          sync.Mutex
	collections map[string]bool
	points      map[string]int // collection -> point count
	dropped     []string
}

func newFakeIndexWriter() *fakeIndexWriter {
	return &fakeIndexWriter{
		collections: make(map[string]bool),
		points:      make(map[string]int),
	}
}

func (f *fakeIndexWriter) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[name], nil
}

func (f *fakeIndexWriter) CreateCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	f.collections[name] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeIndexWriter) UpsertDocument(ctx context.Context, collection, pointID string, vector []float32, payload *repository.DocumentPayload) error {
	f.mu.Lock()
	f.points[collection]++
	f.mu.Unlock()
	return nil
}

func (f *fakeIndexWriter) DropCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	delete(f.collections, name)
	f.dropped = append(f.dropped, name)
	f.mu.Unlock()
	return nil
}

func TestBuildGeneration(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 8, 2)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	corpus := newMemoryCorpus()
	for key, content := range map[string]string{
		"datasets/" + dataset.ID + "/a.txt": "the quick brown fox jumps over the lazy dog",
		"datasets/" + dataset.ID + "/b.txt": "hello",
		"datasets/other/ignored.txt":        "must not be indexed",
	} {
		if err := corpus.Upload(ctx, key, strings.NewReader(content), int64(len(content)), "text/plain"); err != nil {
			t.Fatalf("seed corpus: %v", err)
		}
	}

	writer := newFakeIndexWriter()
	indexer := NewIndexerService(f.svc, corpus, &fakeEmbedder{}, writer, testLogger(),
		&IndexerServiceConfig{Workers: 2, BatchSize: 4})

	stats, err := indexer.BuildGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if stats.Documents != 2 {
		t.Errorf("documents = %d, want 2", stats.Documents)
	}
	if stats.Failed != 0 {
		t.Errorf("failed = %d, want 0", stats.Failed)
	}
	if stats.Chunks == 0 {
		t.Error("expected chunks to be written")
	}

	if !writer.collections[gen.CollectionName] {
		t.Errorf("collection %s was not created", gen.CollectionName)
	}
	if int64(writer.points[gen.CollectionName]) != stats.Chunks {
		t.Errorf("engine holds %d points, stats report %d chunks",
			writer.points[gen.CollectionName], stats.Chunks)
	}

	stored, _ := f.svc.GetIndexGeneration(ctx, gen.ID)
	if stored.Status != domain.StateStaging {
		t.Errorf("status after build = %s, want %s", stored.Status, domain.StateStaging)
	}
}

func TestBuildGenerationUnknownID(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	indexer := NewIndexerService(f.svc, newMemoryCorpus(), &fakeEmbedder{}, newFakeIndexWriter(), testLogger(), nil)

	_, err := indexer.BuildGeneration(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown generation")
	}
}

func TestArchiveGenerationDropsCollection(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	writer := newFakeIndexWriter()
	writer.CreateCollection(ctx, gen.CollectionName)

	indexer := NewIndexerService(f.svc, newMemoryCorpus(), &fakeEmbedder{}, writer, testLogger(), nil)
	if err := indexer.ArchiveGeneration(ctx, gen.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	stored, _ := f.svc.GetIndexGeneration(ctx, gen.ID)
	if stored.Status != domain.StateArchived {
		t.Errorf("status = %s, want %s", stored.Status, domain.StateArchived)
	}
	if len(writer.dropped) != 1 || writer.dropped[0] != gen.CollectionName {
		t.Errorf("dropped collections = %v, want [%s]", writer.dropped, gen.CollectionName)
	}
}

func TestArchiveGenerationMissingCollection(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	ctx := context.Background()

	dataset, _ := f.svc.CreateDataset(ctx, "Docs", "v1")
	cfg, _ := f.svc.RegisterEmbeddingConfig(ctx, "model-a", 512, 50)
	gen, _ := f.svc.CreateIndexGeneration(ctx, dataset.ID, cfg.ID)

	writer := newFakeIndexWriter()
	indexer := NewIndexerService(f.svc, newMemoryCorpus(), &fakeEmbedder{}, writer, testLogger(), nil)

	// A generation whose collection was never materialized still archives.
	if err := indexer.ArchiveGeneration(ctx, gen.ID); err != nil {
		t.Fatalf("archive without collection: %v", err)
	}
	if len(writer.dropped) != 0 {
		t.Errorf("dropped %v, want nothing", writer.dropped)
	}
}
