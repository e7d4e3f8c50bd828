package store

import (
	"fmt"

	"github.com/vitaehq/vitae/internal/types"
)

// ConfigError means the index exists with a different dimension than
// the embedder produces. Fatal: re-create the index or fix the config.
type ConfigError struct {
	Index string
	Want  int
	Got   int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("index %s has dimension %d, want %d", e.Index, e.Got, e.Want)
}

// RetrievalError wraps a failed vector store operation. Not retried;
// the caller re-initiates the request.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("vector store: %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

const (
	StoreTypeQdrant = iota
	StoreTypePgvector
	StoreTypeMemory
)

type StoreType int

var storeTypeMap = map[string]StoreType{
	"qdrant":   StoreTypeQdrant,
	"pgvector": StoreTypePgvector,
	"memory":   StoreTypeMemory,
}

type StoreConfig struct {
	Type  string
	Index string

	// qdrant
	Host   string
	Port   int
	APIKey string

	// pgvector
	ConnString string
}

// NewWithConfig builds the vector store backend named by config.Type.
func NewWithConfig(config StoreConfig) (types.VectorStore, error) {
	storeType, ok := storeTypeMap[config.Type]
	if !ok {
		return nil, fmt.Errorf("no vector store found for type %q", config.Type)
	}

	switch storeType {
	case StoreTypeQdrant:
		return NewQdrantStore(config)
	case StoreTypePgvector:
		return NewPgvectorStore(config)
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("no vector store found for type %q", config.Type)
	}
}
