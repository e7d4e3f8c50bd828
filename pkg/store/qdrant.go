package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"github.com/vitaehq/vitae/internal/models"
)

// QdrantStore keeps all namespaces in one collection and scopes every
// read and write with a namespace payload filter.
type QdrantStore struct {
	config     StoreConfig
	client     *qdrant.Client
	waitUpsert bool
}

func NewQdrantStore(config StoreConfig) (*QdrantStore, error) {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		config:     config,
		client:     client,
		waitUpsert: true,
	}, nil
}

func (s *QdrantStore) EnsureIndex(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Index)
	if err != nil {
		return &RetrievalError{Op: "check collection", Err: err}
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Index,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return &RetrievalError{Op: "create collection", Err: err}
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.config.Index)
	if err != nil {
		return &RetrievalError{Op: "describe collection", Err: err}
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if int(size) != dimension {
		return &ConfigError{Index: s.config.Index, Want: dimension, Got: int(size)}
	}

	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return &RetrievalError{
			Op:  "upsert",
			Err: fmt.Errorf("%d chunks with %d vectors", len(chunks), len(vectors)),
		}
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunk.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"namespace":   namespace,
				"text":        chunk.Text,
				"source":      chunk.Source,
				"page":        chunk.Page,
				"chunk_index": chunk.Index,
				"chunk_size":  chunk.Size,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Index,
		Wait:           &s.waitUpsert,
		Points:         points,
	})
	if err != nil {
		return &RetrievalError{Op: "upsert points", Err: err}
	}

	return nil
}

func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.ScoredChunk, error) {
	limit := uint64(k)

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Index,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("namespace", namespace),
			},
		},
	})
	if err != nil {
		return nil, &RetrievalError{Op: "query points", Err: err}
	}

	results := make([]models.ScoredChunk, 0, len(res))
	for _, sp := range res {
		payload := sp.GetPayload()
		results = append(results, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:     sp.GetId().GetUuid(),
				Source: payload["source"].GetStringValue(),
				Page:   int(payload["page"].GetIntegerValue()),
				Index:  int(payload["chunk_index"].GetIntegerValue()),
				Size:   int(payload["chunk_size"].GetIntegerValue()),
				Text:   payload["text"].GetStringValue(),
			},
			Score: sp.GetScore(),
		})
	}

	return results, nil
}

func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.Index,
		Wait:           &s.waitUpsert,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("namespace", namespace),
			},
		}),
	})
	if err != nil {
		return &RetrievalError{Op: "delete namespace", Err: err}
	}

	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
