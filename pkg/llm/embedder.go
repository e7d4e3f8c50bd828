package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// EmbeddingError reports input that could not be embedded. Err is nil
// when the input itself was rejected before any request was made.
type EmbeddingError struct {
	Reason string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("embedding: %s", e.Reason)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// BadInput reports whether the error was caused by the caller's input
// rather than the embedding backend.
func (e *EmbeddingError) BadInput() bool {
	return e.Err == nil
}

type EmbedderConfig struct {
	Provider  string
	Model     string
	Dimension int
	BaseURL   string // Ollama server URL
	APIKey    string // OpenAI API key
	RateLimit float64
}

// EmbeddingClient is the minimal surface the Embedder needs from a
// backend; the Ollama client satisfies it directly.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns text into fixed-dimension vectors. The model is loaded
// once and shared read-only across requests.
type Embedder struct {
	config  EmbedderConfig
	client  EmbeddingClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		switch config.Provider {
		case ProviderOpenAI:
			config.Model = "text-embedding-3-small"
		default:
			config.Model = "nomic-embed-text:latest"
		}
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}

	var client EmbeddingClient

	switch config.Provider {
	case "", ProviderOllama:
		emb, err := ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
		}
		client = emb
	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI embeddings require an API key")
		}
		client = &openaiEmbeddingClient{
			client:    openai.NewClient(config.APIKey),
			model:     config.Model,
			dimension: config.Dimension,
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}

	return NewEmbedderWithClient(config, client), nil
}

// NewEmbedderWithClient wires an Embedder over an already-built backend
// client. Tests use it to substitute a deterministic fake.
func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// CreateEmbedding embeds every input text, one vector per text, in
// input order. Blank inputs are rejected before any request is made.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &EmbeddingError{Reason: "no input texts"}
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, &EmbeddingError{Reason: fmt.Sprintf("input %d is empty", i)}
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, &EmbeddingError{Reason: "rate limit wait", Err: err}
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Reason: "embedding request failed", Err: err}
	}

	if len(vectors) != len(texts) {
		return nil, &EmbeddingError{
			Reason: fmt.Sprintf("got %d vectors for %d inputs", len(vectors), len(texts)),
			Err:    errBackendMismatch,
		}
	}
	for i, vector := range vectors {
		if len(vector) != e.config.Dimension {
			return nil, &EmbeddingError{
				Reason: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(vector), e.config.Dimension),
				Err:    errBackendMismatch,
			}
		}
	}

	return vectors, nil
}

func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

var errBackendMismatch = fmt.Errorf("embedding backend returned unexpected shape")

type openaiEmbeddingClient struct {
	client    *openai.Client
	model     string
	dimension int
}

func (c *openaiEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := c.client.CreateEmbeddings(ctx, &openai.EmbeddingRequestStrings{
		Input:          texts,
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     c.dimension,
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(res.Data))
	for i, item := range res.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
