// Package config loads the process configuration: defaults → TOML file →
// environment overrides (env wins). The resulting Config value is passed
// explicitly into the Indexer and CoverageRetriever; the algorithmic core
// never reads ambient state.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Corpus    CorpusConfig    `toml:"corpus"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Store     StoreConfig     `toml:"store"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Observer  ObserverConfig  `toml:"observer"`
}

type CorpusConfig struct {
	Root       string `toml:"root"`
	ReportPath string `toml:"report_path"`
}

type EmbeddingConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// Namespaced enables the "openai/<model>" retry variant for gateways
	// that require provider-prefixed model names (e.g. OpenRouter).
	Namespaced bool `toml:"namespaced"`
}

type StoreConfig struct {
	Backend     string `toml:"backend"` // "qdrant", "postgres", or "memory"
	QdrantURL   string `toml:"qdrant_url"`
	QdrantKey   string `toml:"qdrant_api_key"`
	Collection  string `toml:"collection"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type ChunkingConfig struct {
	MaxTokensPerChunk int `toml:"max_tokens_per_chunk"`
	OverlapTokens     int `toml:"overlap_tokens"`
}

type RetrievalConfig struct {
	TopK            int            `toml:"top_k"`
	RequiredSources []string       `toml:"required_sources"`
	SourceQuotas    map[string]int `toml:"source_quotas"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Corpus: CorpusConfig{
			Root:       "data/source",
			ReportPath: "data/index_coverage.json",
		},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-large"},
		Store: StoreConfig{
			Backend:    "qdrant",
			QdrantURL:  "http://localhost:6333",
			Collection: "groundrag",
		},
		Chunking:  ChunkingConfig{MaxTokensPerChunk: 800, OverlapTokens: 100},
		Retrieval: RetrievalConfig{TopK: 8},
	}
}

// Load reads config: .env file (if present) → defaults → TOML file → env
// vars. Path "" tries "groundrag.toml".
func Load(path string) Config {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = "groundrag.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
		cfg.Embedding.Namespaced = true
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = "https://openrouter.ai/api/v1"
		}
	}
	if v := os.Getenv("EMBEDDINGS_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Store.QdrantURL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Store.QdrantKey = v
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		cfg.Store.Collection = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Store.PostgresDSN = v
		if os.Getenv("GROUNDRAG_STORE") == "" {
			cfg.Store.Backend = "postgres"
		}
	}
	if v := os.Getenv("GROUNDRAG_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SOURCE_DIR"); v != "" {
		cfg.Corpus.Root = v
	}
	if v := os.Getenv("MAX_TOKENS_PER_CHUNK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunking.MaxTokensPerChunk = n
		}
	}
	if v := os.Getenv("OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Chunking.OverlapTokens = n
		}
	}
	if os.Getenv("GROUNDRAG_OBSERVER") == "true" || os.Getenv("GROUNDRAG_OBSERVER") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
