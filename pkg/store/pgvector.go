package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/vitaehq/vitae/internal/models"
)

// PgvectorStore keeps chunks in a single table with a namespace column.
type PgvectorStore struct {
	config StoreConfig
	table  string
	pool   *pgxpool.Pool
}

func NewPgvectorStore(config StoreConfig) (*PgvectorStore, error) {
	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PgvectorStore{
		config: config,
		// index names may carry dashes, SQL identifiers may not
		table: strings.ReplaceAll(config.Index, "-", "_"),
		pool:  pool,
	}, nil
}

func (s *PgvectorStore) EnsureIndex(ctx context.Context, dimension int) error {
	// Enable pgvector extension
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return &RetrievalError{Op: "create vector extension", Err: err}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			source TEXT,
			page INTEGER,
			chunk_index INTEGER,
			chunk_size INTEGER,
			content TEXT,
			embedding vector(%d)
		)`, s.table, dimension)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return &RetrievalError{Op: "create table", Err: err}
	}

	// A pre-existing table keeps its original dimension; the vector
	// typmod is the declared dimension.
	var typmod int
	row := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'`, s.table)
	if err := row.Scan(&typmod); err != nil {
		return &RetrievalError{Op: "describe table", Err: err}
	}
	if typmod > 0 && typmod != dimension {
		return &ConfigError{Index: s.table, Want: dimension, Got: typmod}
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, s.table, s.table)

	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return &RetrievalError{Op: "create vector index", Err: err}
	}

	createNamespaceIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_namespace_idx
		ON %s (namespace)`, s.table, s.table)

	if _, err := s.pool.Exec(ctx, createNamespaceIndex); err != nil {
		return &RetrievalError{Op: "create namespace index", Err: err}
	}

	return nil
}

func (s *PgvectorStore) Upsert(ctx context.Context, namespace string, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return &RetrievalError{
			Op:  "upsert",
			Err: fmt.Errorf("%d chunks with %d vectors", len(chunks), len(vectors)),
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &RetrievalError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, source, page, chunk_index, chunk_size, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, s.table)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, stmt,
			chunk.ID,
			namespace,
			chunk.Source,
			chunk.Page,
			chunk.Index,
			chunk.Size,
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return &RetrievalError{Op: "insert chunk", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &RetrievalError{Op: "commit transaction", Err: err}
	}

	return nil
}

func (s *PgvectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.ScoredChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, source, page, chunk_index, chunk_size, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), namespace, k)
	if err != nil {
		return nil, &RetrievalError{Op: "query chunks", Err: err}
	}
	defer rows.Close()

	results := make([]models.ScoredChunk, 0, k)
	for rows.Next() {
		var chunk models.Chunk
		var score float64

		err := rows.Scan(
			&chunk.ID,
			&chunk.Source,
			&chunk.Page,
			&chunk.Index,
			&chunk.Size,
			&chunk.Text,
			&score,
		)
		if err != nil {
			return nil, &RetrievalError{Op: "scan row", Err: err}
		}
		results = append(results, models.ScoredChunk{Chunk: chunk, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, &RetrievalError{Op: "read rows", Err: err}
	}

	return results, nil
}

func (s *PgvectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1", s.table)

	if _, err := s.pool.Exec(ctx, stmt, namespace); err != nil {
		return &RetrievalError{Op: "delete namespace", Err: err}
	}

	return nil
}

func (s *PgvectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
