package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 1024

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	APIKey          string // Qdrant Cloud API key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds the API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository talks to the physical search engine. Unlike a single-index
// client it is collection-per-call: each index generation owns its own
// collection and callers pass the resolved name on every operation.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		// TLS 1.3 minimum for Qdrant Cloud
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// Ping verifies the engine answers; used by the readiness probe.
func (r *QdrantRepository) Ping(ctx context.Context) error {
	if _, err := r.collectClient.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

// CollectionExists reports whether a collection is present in the engine.
func (r *QdrantRepository) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := r.collectClient.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: name,
	})
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return resp.GetResult().GetExists(), nil
}

// CreateCollection creates a cosine-distance collection for one index
// generation and indexes the text payload field for keyword matching.
func (r *QdrantRepository) CreateCollection(ctx context.Context, name string) error {
	_, err := r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}

	fieldType := pb.FieldType_FieldTypeText
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "text",
		FieldType:      &fieldType,
	})
	if err != nil {
		return fmt.Errorf("index text field of %s: %w", name, err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func optionalUint32(v uint32) *uint32 {
	return &v
}

// DocumentPayload is the payload stored with each chunk vector.
type DocumentPayload struct {
	DocID      string `json:"doc_id"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// UpsertDocument inserts or updates one chunk vector in a collection.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: physical collection name.
//   - pointID: UUID identifying the chunk.
//   - vector: embedding of the chunk text.
//   - payload: chunk payload stored alongside the vector.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *QdrantRepository) UpsertDocument(ctx context.Context, collection, pointID string, vector []float32, payload *DocumentPayload) error {
	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: map[string]*pb.Value{
				"doc_id":      {Kind: &pb.Value_StringValue{StringValue: payload.DocID}},
				"source":      {Kind: &pb.Value_StringValue{StringValue: payload.Source}},
				"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(payload.ChunkIndex)}},
				"text":        {Kind: &pb.Value_StringValue{StringValue: payload.Text}},
			},
		},
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert point into %s: %w", collection, err)
	}

	return nil
}

// SearchResult represents one hit from the engine.
type SearchResult struct {
	ID      string
	Score   float32
	Payload *DocumentPayload
}

// SearchVector performs a dense similarity search in one collection.
func (r *QdrantRepository) SearchVector(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vector search in %s: %w", collection, err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = SearchResult{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: parsePayload(scored.Payload),
		}
	}
	return results, nil
}

// SearchKeyword performs a full-text match scroll against the text payload
// field. Scroll carries no engine score; hits come back in scroll order with
// a zero score and callers rank them positionally.
func (r *QdrantRepository) SearchKeyword(ctx context.Context, collection, query string, limit int) ([]SearchResult, error) {
	resp, err := r.pointsClient.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: collection,
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "text",
							Match: &pb.Match{
								MatchValue: &pb.Match_Text{Text: query},
							},
						},
					},
				},
			},
		},
		Limit: optionalUint32(uint32(limit)),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search in %s: %w", collection, err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, point := range resp.Result {
		results[i] = SearchResult{
			ID:      point.Id.GetUuid(),
			Payload: parsePayload(point.Payload),
		}
	}
	return results, nil
}

// DropCollection removes a generation's physical collection.
func (r *QdrantRepository) DropCollection(ctx context.Context, name string) error {
	_, err := r.collectClient.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func parsePayload(payload map[string]*pb.Value) *DocumentPayload {
	if payload == nil {
		return nil
	}

	p := &DocumentPayload{}
	if v, ok := payload["doc_id"]; ok {
		p.DocID = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		p.Source = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["text"]; ok {
		p.Text = v.GetStringValue()
	}
	return p
}
