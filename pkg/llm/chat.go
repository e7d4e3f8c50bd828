package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/vitaehq/vitae/internal/models"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
)

const defaultSystemTemplate = `You are an expert AI assistant that answers questions about a candidate's resume.
You have access to the resume content below. Answer questions accurately and helpfully.

Guidelines:
- Be specific and cite details from the resume when possible
- If asked about skills, experience, or education, pull exact details
- If the resume doesn't contain the answer, say "This information isn't in the resume"
- Keep answers concise but thorough
- Speak as if you are a helpful recruiter who knows this candidate well

Resume Content (retrieved relevant sections):
%s`

const defaultQuestionTemplate = `Based on the resume information above, please answer this question:
%s`

const noSectionsFound = "No relevant sections found in the resume."

// GenerationError reports a failed completion request.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider         string
	Model            string
	Temperature      float64
	MaxTokens        int
	SystemTemplate   string
	QuestionTemplate string
	APIKey           string
	BaseURL          string
}

// CompletionClient is the minimal surface the ChatEngine needs from a
// hosted LLM.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatEngine builds the resume prompt and requests a completion. A
// single attempt per question; failed requests surface as
// GenerationError and the caller re-asks.
type ChatEngine struct {
	config ChatConfig
	client CompletionClient
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.QuestionTemplate == "" {
		config.QuestionTemplate = defaultQuestionTemplate
	}

	var client CompletionClient

	switch config.Provider {
	case "", ProviderGroq:
		if config.APIKey == "" {
			return nil, fmt.Errorf("groq requires an API key")
		}
		if config.Model == "" {
			config.Model = "llama-3.3-70b-versatile"
		}
		if config.BaseURL == "" {
			config.BaseURL = "https://api.groq.com/openai/v1"
		}
		cfg := openai.DefaultConfig(config.APIKey)
		cfg.BaseURL = config.BaseURL
		client = &groqClient{
			client:      openai.NewClientWithConfig(cfg),
			model:       config.Model,
			temperature: float32(config.Temperature),
			maxTokens:   config.MaxTokens,
		}
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "llama3"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		llm, err := ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		client = &ollamaClient{
			llm:         llm,
			temperature: config.Temperature,
			maxTokens:   config.MaxTokens,
		}
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", config.Provider)
	}

	return &ChatEngine{
		config: config,
		client: client,
	}, nil
}

// NewWithClient wires a ChatEngine over an already-built completion
// client. Tests use it to substitute a canned backend.
func NewWithClient(config ChatConfig, client CompletionClient) *ChatEngine {
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.QuestionTemplate == "" {
		config.QuestionTemplate = defaultQuestionTemplate
	}

	return &ChatEngine{
		config: config,
		client: client,
	}
}

// Answer generates a reply to the question grounded in the retrieved
// sections. With no sections the model is still asked, and the system
// prompt steers it to a "not in the resume" reply.
func (ce *ChatEngine) Answer(ctx context.Context, question string, sections []models.ScoredChunk) (string, error) {
	system := fmt.Sprintf(ce.config.SystemTemplate, formatSections(sections))
	user := fmt.Sprintf(ce.config.QuestionTemplate, question)

	answer, err := ce.client.Complete(ctx, system, user)
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	return answer, nil
}

// formatSections turns retrieved chunks into the context block injected
// into the system prompt.
func formatSections(sections []models.ScoredChunk) string {
	if len(sections) == 0 {
		return noSectionsFound
	}

	parts := make([]string, len(sections))
	for i, section := range sections {
		parts[i] = fmt.Sprintf("[Section %d - Page %d]\n%s", i+1, section.Page, section.Text)
	}

	return strings.Join(parts, "\n\n---\n\n")
}

type groqClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func (c *groqClient) Complete(ctx context.Context, system, user string) (string, error) {
	res, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return res.Choices[0].Message.Content, nil
}

type ollamaClient struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func (c *ollamaClient) Complete(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	res, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return res.Choices[0].Content, nil
}
