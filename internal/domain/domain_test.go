package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEmbeddingConfigIDDeterministic(t *testing.T) {
	testCases := []struct {
		name    string
		model   string
		size    int
		overlap int
	}{
		{name: "basic", model: "text-embedding-3-small", size: 512, overlap: 50},
		{name: "zero overlap", model: "text-embedding-3-small", size: 512, overlap: 0},
		{name: "other model", model: "jina-embeddings-v3", size: 256, overlap: 32},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			first := EmbeddingConfigID(tc.model, tc.size, tc.overlap)
			second := EmbeddingConfigID(tc.model, tc.size, tc.overlap)
			if first != second {
				t.Errorf("id not stable: %s != %s", first, second)
			}
			if _, err := uuid.Parse(first); err != nil {
				t.Errorf("id is not a valid UUID: %v", err)
			}
		})
	}
}

func TestEmbeddingConfigIDUniqueness(t *testing.T) {
	base := EmbeddingConfigID("model-a", 512, 50)
	if other := EmbeddingConfigID("model-b", 512, 50); other == base {
		t.Errorf("different models should produce different ids: %s", base)
	}
	if other := EmbeddingConfigID("model-a", 256, 50); other == base {
		t.Errorf("different chunk sizes should produce different ids: %s", base)
	}
	if other := EmbeddingConfigID("model-a", 512, 0); other == base {
		t.Errorf("different overlaps should produce different ids: %s", base)
	}
}

func TestCollectionNameFor(t *testing.T) {
	genID := uuid.New().String()
	name := CollectionNameFor(genID)

	if !strings.HasPrefix(name, "idx_") {
		t.Errorf("collection name must be letter-leading, got %q", name)
	}
	if strings.Contains(name, "-") {
		t.Errorf("collection name must not contain dashes, got %q", name)
	}
	if name != CollectionNameFor(genID) {
		t.Error("collection name derivation is not deterministic")
	}
	if name == CollectionNameFor(uuid.New().String()) {
		t.Error("different generations must map to different collections")
	}
}

func TestLifecycleStateTransitions(t *testing.T) {
	testCases := []struct {
		name    string
		from    LifecycleState
		to      LifecycleState
		allowed bool
	}{
		{name: "draft to indexing", from: StateDraft, to: StateIndexing, allowed: true},
		{name: "draft skips to staging", from: StateDraft, to: StateStaging, allowed: true},
		{name: "staging to production", from: StateStaging, to: StateProduction, allowed: true},
		{name: "production to deprecated", from: StateProduction, to: StateDeprecated, allowed: true},
		{name: "production back to draft", from: StateProduction, to: StateDraft, allowed: false},
		{name: "no self transition", from: StateStaging, to: StateStaging, allowed: false},
		{name: "anything to archived", from: StateDraft, to: StateArchived, allowed: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
				t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestParseLifecycleState(t *testing.T) {
	state, err := ParseLifecycleState("production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != StateProduction {
		t.Errorf("expected %s, got %s", StateProduction, state)
	}

	if _, err := ParseLifecycleState("launched"); err == nil {
		t.Error("expected error for unknown state")
	}
}
