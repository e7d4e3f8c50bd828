package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/vitaehq/vitae/internal/models"
)

// MemoryStore is a process-local vector store with brute-force cosine
// search. It backs tests and single-machine development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string][]memoryPoint
}

type memoryPoint struct {
	chunk  models.Chunk
	vector []float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string][]memoryPoint),
	}
}

func (s *MemoryStore) EnsureIndex(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dimension {
		return &ConfigError{Index: "memory", Want: dimension, Got: s.dimension}
	}
	s.dimension = dimension

	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return &RetrievalError{
			Op:  "upsert",
			Err: fmt.Errorf("%d chunks with %d vectors", len(chunks), len(vectors)),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.namespaces[namespace]

	for i, chunk := range chunks {
		point := memoryPoint{chunk: chunk, vector: vectors[i]}

		replaced := false
		for j := range points {
			if points[j].chunk.ID == chunk.ID {
				points[j] = point
				replaced = true
				break
			}
		}
		if !replaced {
			points = append(points, point)
		}
	}

	s.namespaces[namespace] = points

	return nil
}

func (s *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.namespaces[namespace]
	if !ok || k <= 0 {
		return []models.ScoredChunk{}, nil
	}

	results := make([]models.ScoredChunk, 0, len(points))
	for _, point := range points {
		results = append(results, models.ScoredChunk{
			Chunk: point.chunk,
			Score: cosineSimilarity(vector, point.vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

func (s *MemoryStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, namespace)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
