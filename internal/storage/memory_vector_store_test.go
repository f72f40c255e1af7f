package storage

import (
	"testing"

	"docchat/internal/models"
)

func TestMemoryVectorStoreRanking(t *testing.T) {
	store := NewMemoryVectorStore()

	segs := []models.Segment{
		{Index: 0, Content: "north"},
		{Index: 1, Content: "east"},
	}
	vectors := [][]float32{
		{1.0, 0.0},
		{0.0, 1.0},
	}
	if err := store.AddSegments("doc-a", segs, vectors); err != nil {
		t.Fatalf("AddSegments failed: %v", err)
	}

	results, err := store.SearchNamespace("doc-a", []float32{0.9, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Content != "north" {
		t.Errorf("Expected most similar segment first, got %q", results[0].Content)
	}
}

func TestMemoryVectorStoreNamespaceScoping(t *testing.T) {
	store := NewMemoryVectorStore()

	_ = store.AddSegments("doc-a", []models.Segment{{Content: "a"}}, [][]float32{{1}})
	_ = store.AddSegments("doc-b", []models.Segment{{Content: "b"}}, [][]float32{{1}})

	results, err := store.SearchNamespace("doc-a", []float32{1}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Content != "a" {
		t.Errorf("Expected only doc-a content, got %v", results)
	}

	results, _ = store.SearchNamespace("doc-unknown", []float32{1}, 10)
	if len(results) != 0 {
		t.Errorf("Expected empty result for unknown namespace, got %d", len(results))
	}
}

func TestMemoryVectorStoreDelete(t *testing.T) {
	store := NewMemoryVectorStore()

	_ = store.AddSegments("doc-a", []models.Segment{{Content: "a"}, {Content: "b"}}, [][]float32{{1}, {2}})

	removed, err := store.DeleteNamespace("doc-a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	removed, _ = store.DeleteNamespace("doc-a")
	if removed != 0 {
		t.Errorf("Expected 0 on repeat delete, got %d", removed)
	}
}

func TestMemoryVectorStoreMismatchedInput(t *testing.T) {
	store := NewMemoryVectorStore()

	err := store.AddSegments("doc-a", []models.Segment{{Content: "a"}, {Content: "b"}}, [][]float32{{1}})
	if err == nil {
		t.Error("Expected error for segment/vector count mismatch")
	}

	// Nothing is stored on a rejected write.
	results, _ := store.SearchNamespace("doc-a", []float32{1}, 10)
	if len(results) != 0 {
		t.Errorf("Expected rejected write to store nothing, got %d segments", len(results))
	}

	if err := store.AddSegments("doc-a", nil, nil); err != nil {
		t.Errorf("Expected adding nothing to succeed, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("Expected ~1 for identical vectors, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("Expected 0 for orthogonal vectors, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("Expected 0 for mismatched lengths, got %f", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("Expected 0 for zero vector, got %f", got)
	}
}
