package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CosineSimilarity(tc.a, tc.b)
			if err != nil {
				t.Fatalf("CosineSimilarity failed: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("similarity = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
}

func TestFindTopKRanking(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{0, 1},    // orthogonal
		{1, 0},    // identical
		{1, 1},    // 45 degrees
		{-1, 0},   // opposite
		{0.9, .1}, // close
	}

	results, err := FindTopK(query, vectors, 3)
	if err != nil {
		t.Fatalf("FindTopK failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", results[0].Index)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not in descending order at %d", i)
		}
	}
}

func TestFindTopKStableTies(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{2, 0}, // same direction as query
		{3, 0},
		{4, 0},
	}

	results, err := FindTopK(query, vectors, 3)
	if err != nil {
		t.Fatalf("FindTopK failed: %v", err)
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("tied results should keep input order: position %d has index %d", i, r.Index)
		}
	}
}

func TestFindTopKBounds(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{{1, 0}, {0, 1}}

	results, err := FindTopK(query, vectors, 10)
	if err != nil {
		t.Fatalf("FindTopK failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("k larger than corpus should return all %d, got %d", len(vectors), len(results))
	}

	if _, err := FindTopK(query, vectors, 0); err == nil {
		t.Error("k=0 should be rejected")
	}
}

func TestFindTopKSkipsMismatchedVectors(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{1, 0},
		{1, 0, 0}, // wrong dimension
		{0, 1},
	}

	results, err := FindTopK(query, vectors, 5)
	if err != nil {
		t.Fatalf("FindTopK failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results after skipping bad vector, got %d", len(results))
	}
}

func TestNewEngineUnsupportedProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "pinecone"
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestOllamaEngineEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "embeddinggemma" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	vec, err := engine.Embed(context.Background(), "좌회전 중 충돌")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("embedding length = %d, want 3", len(vec))
	}
}

func TestOllamaEngineServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for server failure")
	}
}
