package storage

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"docchat/internal/models"
)

// VectorStore persists (segment, vector) pairs partitioned by namespace
// and supports nearest-neighbour search scoped to one namespace.
type VectorStore interface {
	// AddSegments stores all segments and their vectors under the
	// namespace. vectors[i] belongs to segs[i].
	AddSegments(namespace string, segs []models.Segment, vectors [][]float32) error

	// SearchNamespace returns up to topK segments from the namespace
	// ranked by similarity, best first. An unknown or empty namespace
	// yields an empty result, not an error.
	SearchNamespace(namespace string, vector []float32, topK int) ([]models.Segment, error)

	// DeleteNamespace removes every segment in the namespace and
	// reports how many were removed. Zero is not an error.
	DeleteNamespace(namespace string) (int, error)

	Close() error
}

// MemoryVectorStore is an in-memory VectorStore keyed by namespace,
// ranking by cosine similarity. Used in tests and as a non-persistent
// fallback.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string][]memoryEntry
}

type memoryEntry struct {
	segment models.Segment
	vector  []float32
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		namespaces: make(map[string][]memoryEntry),
	}
}

func (m *MemoryVectorStore) AddSegments(namespace string, segs []models.Segment, vectors [][]float32) error {
	if len(segs) != len(vectors) {
		return fmt.Errorf("segment/vector count mismatch: %d segments, %d vectors", len(segs), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range segs {
		m.namespaces[namespace] = append(m.namespaces[namespace], memoryEntry{segment: segs[i], vector: vectors[i]})
	}
	return nil
}

func (m *MemoryVectorStore) SearchNamespace(namespace string, vector []float32, topK int) ([]models.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.namespaces[namespace]
	if len(entries) == 0 {
		return []models.Segment{}, nil
	}

	type scored struct {
		segment models.Segment
		score   float32
	}

	scores := make([]scored, 0, len(entries))
	for _, e := range entries {
		scores = append(scores, scored{segment: e.segment, score: cosineSimilarity(vector, e.vector)})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if topK > len(scores) {
		topK = len(scores)
	}

	results := make([]models.Segment, topK)
	for i := 0; i < topK; i++ {
		results[i] = scores[i].segment
	}

	return results, nil
}

func (m *MemoryVectorStore) DeleteNamespace(namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := len(m.namespaces[namespace])
	delete(m.namespaces, namespace)
	return removed, nil
}

func (m *MemoryVectorStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
