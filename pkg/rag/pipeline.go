package rag

import (
	"context"
	"log/slog"

	"github.com/vitaehq/vitae/internal/models"
	"github.com/vitaehq/vitae/internal/types"
)

// Pipeline connects ingestion, embedding, retrieval and generation.
// Every component is built once at startup and shared across requests.
type Pipeline struct {
	Ingestor  types.Ingestor
	Embedder  types.Embedder
	Store     types.VectorStore
	Generator types.Generator
	TopK      int
}

// Answer is a generated reply with the chunks it was grounded in.
type Answer struct {
	Text    string
	Sources []models.ScoredChunk
}

// Ingest replaces a namespace's vectors with chunks from the given PDF
// and reports how many chunks were written.
func (p *Pipeline) Ingest(ctx context.Context, namespace, source string, data []byte) (int, error) {
	// Clear old vectors first so re-uploading never duplicates. The
	// namespace may not exist yet; that is fine.
	if err := p.Store.DeleteNamespace(ctx, namespace); err != nil {
		slog.Warn("could not clear namespace before ingest",
			"namespace", namespace, "error", err)
	}

	chunks, err := p.Ingestor.Process(data, source)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.Embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := p.Store.Upsert(ctx, namespace, chunks, vectors); err != nil {
		return 0, err
	}

	slog.Info("ingested resume",
		"namespace", namespace, "source", source, "chunks", len(chunks))

	return len(chunks), nil
}

// Ask embeds the question, retrieves the top-k most similar chunks from
// the namespace and asks the generator for an answer grounded in them.
func (p *Pipeline) Ask(ctx context.Context, namespace, question string) (*Answer, error) {
	vectors, err := p.Embedder.CreateEmbedding(ctx, []string{question})
	if err != nil {
		return nil, err
	}

	sources, err := p.Store.Query(ctx, namespace, vectors[0], p.TopK)
	if err != nil {
		return nil, err
	}

	text, err := p.Generator.Answer(ctx, question, sources)
	if err != nil {
		return nil, err
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// Reset removes every vector in the namespace. Resetting a namespace
// that does not exist succeeds.
func (p *Pipeline) Reset(ctx context.Context, namespace string) error {
	return p.Store.DeleteNamespace(ctx, namespace)
}
