package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid marks configuration that cannot be used to start the process.
var ErrInvalid = errors.New("invalid configuration")

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	MaxTokens      int    `toml:"max_tokens"`
}

type StoreConfig struct {
	// Backend is one of memory, sqlite, postgres, neo4j.
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	DatabaseURL   string `toml:"database_url"`
	Neo4jURI      string `toml:"neo4j_uri"`
	Neo4jUser     string `toml:"neo4j_user"`
	Neo4jPassword string `toml:"neo4j_password"`
	Neo4jDatabase string `toml:"neo4j_database"`
}

// ExtractionPrompts are fmt templates. Entities receives (title, text);
// Metadata receives (text).
type ExtractionPrompts struct {
	Entities     string `toml:"entities"`
	Metadata     string `toml:"metadata"`
	MaxTextChars int    `toml:"max_text_chars"`
}

type LinkingConfig struct {
	// Strategy is "shared" (shared-neighbor pruning) or "similarity".
	Strategy             string  `toml:"strategy"`
	TopK                 int     `toml:"top_k"`
	MinSimilarity        float64 `toml:"min_similarity"`
	OracleTimeoutSeconds int     `toml:"oracle_timeout_seconds"`
	Workers              int     `toml:"workers"`
	MaxContextChars      int     `toml:"max_context_chars"`
	// Prompt receives (paper 1 context, paper 2 context, concepts, methods).
	Prompt string `toml:"prompt"`
}

type QAConfig struct {
	// Prompt receives (question, context).
	Prompt string `toml:"prompt"`
	TopK   int    `toml:"top_k"`
	// Rerank asks the LLM to reorder retrieved papers before answering.
	Rerank bool `toml:"rerank"`
}

type ConcurrencyConfig struct {
	BulkIngest int `toml:"bulk_ingest"`
}

type LogConfig struct {
	Level string `toml:"level"`
	Debug bool   `toml:"debug"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Store       StoreConfig       `toml:"store"`
	Extraction  ExtractionPrompts `toml:"extraction"`
	Linking     LinkingConfig     `toml:"linking"`
	QA          QAConfig          `toml:"qa"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      4096,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "data/papergraph.db",
			Neo4jURI:   "bolt://localhost:7687",
		},
		Extraction: ExtractionPrompts{
			Entities:     DefaultEntitiesPrompt,
			Metadata:     DefaultMetadataPrompt,
			MaxTextChars: 15000,
		},
		Linking: LinkingConfig{
			Strategy:             "shared",
			TopK:                 10,
			OracleTimeoutSeconds: 120,
			Workers:              1,
			MaxContextChars:      8000,
			Prompt:               DefaultLinkingPrompt,
		},
		QA: QAConfig{
			Prompt: DefaultQAPrompt,
			TopK:   3,
		},
		Concurrency: ConcurrencyConfig{BulkIngest: 1},
		Log:         LogConfig{Level: "info"},
		Server:      ServerConfig{Port: "8080"},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads path when it exists and falls back to the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")

	set(&c.Store.Backend, "PAPERGRAPH_STORE")
	set(&c.Store.SQLitePath, "SQLITE_PATH")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Store.Neo4jURI, "NEO4J_URI")
	set(&c.Store.Neo4jUser, "NEO4J_USER")
	set(&c.Store.Neo4jPassword, "NEO4J_PASSWORD")
	set(&c.Store.Neo4jDatabase, "NEO4J_DATABASE")

	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Server.Port, "PORT")

	if v := os.Getenv("LINKING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Linking.Workers = n
		}
	}
}

func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Linking.OracleTimeoutSeconds) * time.Second
}

// Validate reports the first unusable setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini", "claude":
		if c.LLM.APIKey == "" {
			return invalid("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			return invalid("llm.base_url is required for provider ollama")
		}
	default:
		return invalid("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return invalid("llm.model is required")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return invalid("store.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return invalid("store.database_url (DATABASE_URL) is required for the postgres backend")
		}
	case "neo4j":
		if c.Store.Neo4jURI == "" {
			return invalid("store.neo4j_uri is required for the neo4j backend")
		}
	default:
		return invalid("unsupported store.backend %q", c.Store.Backend)
	}

	switch c.Linking.Strategy {
	case "shared", "similarity":
	default:
		return invalid("linking.strategy must be shared or similarity, got %q", c.Linking.Strategy)
	}
	if c.Linking.TopK <= 0 {
		return invalid("linking.top_k must be positive")
	}
	if c.Linking.Workers <= 0 {
		return invalid("linking.workers must be positive")
	}
	if c.Linking.OracleTimeoutSeconds <= 0 {
		return invalid("linking.oracle_timeout_seconds must be positive")
	}
	if c.Extraction.Entities == "" || c.Linking.Prompt == "" || c.QA.Prompt == "" {
		return invalid("prompt templates must not be empty")
	}

	return nil
}
