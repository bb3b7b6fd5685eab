package service

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openAIEndpoint = "https://api.openai.com/v1/embeddings"
)

// EmbeddingService generates text embeddings through an OpenAI-compatible
// HTTP API. Implements EmbeddingProvider.
type EmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// EmbeddingServiceConfig holds configuration for the embedding service.
type EmbeddingServiceConfig struct {
	Provider   string // "jina" or "openai"; anything else uses BaseURL as-is
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingServiceConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	endpoint := cfg.BaseURL
	if endpoint == "" {
		switch cfg.Provider {
		case "openai":
			endpoint = openAIEndpoint
		default:
			endpoint = jinaEndpoint
		}
	}

	return &EmbeddingService{
		client:     client,
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Model returns the model name being used.
func (s *EmbeddingService) Model() string {
	return s.model
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
	Input      []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates an embedding for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
// Result order matches input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result embeddingResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&embeddingRequest{
			Model:      s.model,
			Dimensions: s.dimensions,
			Input:      texts,
		}).
		SetResult(&result).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding API returned %s: %s", resp.Status(), result.Detail)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}
