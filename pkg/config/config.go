package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	StoreQdrant   = "qdrant"
	StorePgvector = "pgvector"
	StoreMemory   = "memory"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type EmbeddingConfig struct {
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	Dimension int     `yaml:"dimension"`
	BaseURL   string  `yaml:"base_url"`
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type StoreConfig struct {
	Type        string `yaml:"type"`
	Index       string `yaml:"index"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	DatabaseURL string `yaml:"database_url"`
}

type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/vitae/config.yaml"),
			"/etc/vitae/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = ProviderOllama
	}
	if config.Embedding.Model == "" {
		switch config.Embedding.Provider {
		case ProviderOpenAI:
			config.Embedding.Model = "text-embedding-3-small"
		default:
			config.Embedding.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 768
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == ProviderOllama {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 10.0
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderGroq
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case ProviderOllama:
			config.LLM.Model = "llama3"
		default:
			config.LLM.Model = "llama-3.3-70b-versatile"
		}
	}
	if config.LLM.BaseURL == "" {
		switch config.LLM.Provider {
		case ProviderOllama:
			config.LLM.BaseURL = "http://localhost:11434"
		default:
			config.LLM.BaseURL = "https://api.groq.com/openai/v1"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}

	if config.Store.Type == "" {
		config.Store.Type = StoreQdrant
	}
	if config.Store.Index == "" {
		config.Store.Index = "resume-index"
	}
	if config.Store.Host == "" {
		config.Store.Host = "localhost"
	}
	if config.Store.Port == 0 {
		config.Store.Port = 6334
	}

	if config.Ingest.ChunkSize == 0 {
		config.Ingest.ChunkSize = 500
	}
	if config.Ingest.ChunkOverlap == 0 {
		config.Ingest.ChunkOverlap = 100
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 4
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		config.Store.APIKey = key
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Store.Host = host
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.DatabaseURL = dbURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		if config.LLM.Provider == ProviderOllama {
			config.LLM.BaseURL = baseURL
		}
	}
	if index := os.Getenv("VITAE_INDEX"); index != "" {
		config.Store.Index = index
	}
	if model := os.Getenv("VITAE_EMBED_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if size := os.Getenv("VITAE_CHUNK_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.Ingest.ChunkSize = n
		}
	}
	if overlap := os.Getenv("VITAE_CHUNK_OVERLAP"); overlap != "" {
		if n, err := strconv.Atoi(overlap); err == nil {
			config.Ingest.ChunkOverlap = n
		}
	}
	if topK := os.Getenv("VITAE_TOP_K"); topK != "" {
		if n, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.TopK = n
		}
	}
}
