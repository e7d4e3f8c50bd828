package types

import (
	"context"

	"github.com/vitaehq/vitae/internal/models"
)

// Core interfaces
type Ingestor interface {
	Process(data []byte, source string) ([]models.Chunk, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type VectorStore interface {
	EnsureIndex(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.ScoredChunk, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

type Generator interface {
	Answer(ctx context.Context, question string, sections []models.ScoredChunk) (string, error)
}
