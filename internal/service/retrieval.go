package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomw/raglift/internal/domain"
	"github.com/tomw/raglift/internal/logger"
	"github.com/tomw/raglift/internal/repository"
)

// SearchMode selects how a query is executed against the resolved collection.
type SearchMode string

const (
	ModeKeyword SearchMode = "keyword"
	ModeVector  SearchMode = "vector"
	ModeHybrid  SearchMode = "hybrid"
)

// ParseSearchMode converts a string into a SearchMode, defaulting empty
// input to hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case ModeKeyword, ModeVector, ModeHybrid:
		return SearchMode(s), nil
	case "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}

// ProductionResolver is the narrow capability the retrieval facade needs
// from the lifecycle controller.
type ProductionResolver interface {
	GetProductionIndex(ctx context.Context, datasetName string) (*domain.IndexGeneration, error)
}

// SearchEngine abstracts the physical engine operations the facade delegates
// to. Implemented by repository.QdrantRepository.
type SearchEngine interface {
	SearchVector(ctx context.Context, collection string, vector []float32, limit int) ([]repository.SearchResult, error)
	SearchKeyword(ctx context.Context, collection, query string, limit int) ([]repository.SearchResult, error)
}

// EmbeddingProvider turns text into vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// RetrievalConfig holds configuration for the retrieval service.
type RetrievalConfig struct {
	DefaultTopK    int
	ScoreThreshold float32
}

// RetrievalService answers queries against whatever generation is currently
// in production for a dataset name. Resolution happens on every call, never
// cached, so a promotion is visible to the very next query.
type RetrievalService struct {
	resolver  ProductionResolver
	engine    SearchEngine
	embedding EmbeddingProvider
	logger    *logger.Logger

	defaultTopK    int
	scoreThreshold float32
}

// NewRetrievalService creates a new retrieval service.
// Parameters:
//   - resolver: production resolution capability.
//   - engine: physical search engine client.
//   - embedding: embedding provider for vector and hybrid modes.
//   - log: logger instance.
//   - cfg: retrieval settings; nil uses defaults.
// Returns:
//   - *RetrievalService: initialized service.
func NewRetrievalService(
	resolver ProductionResolver,
	engine SearchEngine,
	embedding EmbeddingProvider,
	log *logger.Logger,
	cfg *RetrievalConfig,
) *RetrievalService {
	topK := 10
	var threshold float32
	if cfg != nil {
		if cfg.DefaultTopK > 0 {
			topK = cfg.DefaultTopK
		}
		threshold = cfg.ScoreThreshold
	}
	return &RetrievalService{
		resolver:       resolver,
		engine:         engine,
		embedding:      embedding,
		logger:         log,
		defaultTopK:    topK,
		scoreThreshold: threshold,
	}
}

func (s *RetrievalService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// RetrieveRequest describes one retrieval query.
type RetrieveRequest struct {
	DatasetName string     `json:"dataset_name" binding:"required"`
	Query       string     `json:"query" binding:"required"`
	Mode        SearchMode `json:"mode"`
	TopK        int        `json:"top_k"`
}

// RetrievedDocument is one hit returned to the caller.
type RetrievedDocument struct {
	ID         string  `json:"id"`
	DocID      string  `json:"doc_id"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// RetrieveResponse is the retrieval result set plus resolution metadata.
type RetrieveResponse struct {
	Results      []RetrievedDocument `json:"results"`
	Total        int                 `json:"total"`
	Query        string              `json:"query"`
	Mode         SearchMode          `json:"mode"`
	GenerationID string              `json:"generation_id,omitempty"`
	Collection   string              `json:"collection,omitempty"`
}

// Retrieve resolves the production generation for the dataset name and runs
// the query against its collection. No production generation is a soft miss:
// the response is empty, a warning is logged, and no error is returned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: retrieval request.
// Returns:
//   - *RetrieveResponse: results; empty on a soft miss.
//   - error: non-nil on resolution store failure or engine failure.
func (s *RetrievalService) Retrieve(ctx context.Context, req *RetrieveRequest) (*RetrieveResponse, error) {
	if req.TopK <= 0 {
		req.TopK = s.defaultTopK
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}

	gen, err := s.resolver.GetProductionIndex(ctx, req.DatasetName)
	if err != nil {
		return nil, fmt.Errorf("retrieve from %q: %w", req.DatasetName, err)
	}
	if gen == nil {
		s.log(ctx).WithField("dataset_name", req.DatasetName).
			Warn("No production generation resolvable, returning empty results")
		return &RetrieveResponse{
			Results: []RetrievedDocument{},
			Query:   req.Query,
			Mode:    req.Mode,
		}, nil
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldGenerationID: gen.ID,
		logger.FieldCollection:   gen.CollectionName,
	})

	hits, err := s.search(ctx, gen.CollectionName, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve from %q: %w", req.DatasetName, err)
	}

	results := make([]RetrievedDocument, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload == nil {
			continue
		}
		results = append(results, RetrievedDocument{
			ID:         hit.ID,
			DocID:      hit.Payload.DocID,
			Source:     hit.Payload.Source,
			ChunkIndex: hit.Payload.ChunkIndex,
			Text:       hit.Payload.Text,
			Score:      hit.Score,
		})
	}

	logger.With(logger.Fields{logger.FieldCount: len(results)}).
		Info(ctx, "Retrieval completed: dataset=%s, mode=%s", req.DatasetName, req.Mode)

	return &RetrieveResponse{
		Results:      results,
		Total:        len(results),
		Query:        req.Query,
		Mode:         req.Mode,
		GenerationID: gen.ID,
		Collection:   gen.CollectionName,
	}, nil
}

func (s *RetrievalService) search(ctx context.Context, collection string, req *RetrieveRequest) ([]repository.SearchResult, error) {
	switch req.Mode {
	case ModeKeyword:
		return s.engine.SearchKeyword(ctx, collection, req.Query, req.TopK)

	case ModeVector:
		vector, err := s.embedding.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err := s.engine.SearchVector(ctx, collection, vector, req.TopK)
		if err != nil {
			return nil, err
		}
		return s.applyThreshold(hits), nil

	case ModeHybrid:
		vector, err := s.embedding.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		dense, err := s.engine.SearchVector(ctx, collection, vector, req.TopK)
		if err != nil {
			return nil, err
		}
		sparse, err := s.engine.SearchKeyword(ctx, collection, req.Query, req.TopK)
		if err != nil {
			// Keyword side is best-effort in hybrid mode; dense results
			// still answer the query.
			s.log(ctx).WithError(err).Warn("Keyword side of hybrid search failed, using dense results only")
			return s.applyThreshold(dense), nil
		}
		return fuseResults(req.TopK, dense, sparse), nil

	default:
		return nil, fmt.Errorf("unknown search mode %q", req.Mode)
	}
}

func (s *RetrievalService) applyThreshold(hits []repository.SearchResult) []repository.SearchResult {
	if s.scoreThreshold <= 0 {
		return hits
	}
	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Score >= s.scoreThreshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered
}

// rrfK dampens the rank contribution in reciprocal rank fusion; 60 is the
// value from the original RRF paper and works well untuned.
const rrfK = 60

// fuseResults merges ranked lists with reciprocal rank fusion and returns the
// top limit hits. Scores are replaced by the fused score; payloads come from
// whichever list saw the hit first.
func fuseResults(limit int, lists ...[]repository.SearchResult) []repository.SearchResult {
	type fused struct {
		result repository.SearchResult
		score  float32
	}
	byID := make(map[string]*fused)

	for _, list := range lists {
		for rank, hit := range list {
			contribution := float32(1.0) / float32(rrfK+rank+1)
			if entry, ok := byID[hit.ID]; ok {
				entry.score += contribution
			} else {
				byID[hit.ID] = &fused{result: hit, score: contribution}
			}
		}
	}

	merged := make([]repository.SearchResult, 0, len(byID))
	for _, entry := range byID {
		entry.result.Score = entry.score
		merged = append(merged, entry.result)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
