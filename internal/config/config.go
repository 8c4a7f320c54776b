// Package config loads and validates sunwellmem's configuration: where the
// journal/cache/lineage stores live on disk, how the embedding backend is
// reached, and the tunable thresholds the retriever and awareness extractor
// use. Mirrors the teacher's config package (YAML file + env var overrides,
// defaults-first Load), trimmed to the memory core's own concerns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sunwellmem/internal/awareness"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/unifiedstore"
)

// Config holds all sunwellmem configuration.
type Config struct {
	// Workspace is the root directory under which the journal, cache,
	// lineage store, and logs live (each as a fixed subpath, mirroring the
	// teacher's single DatabasePath-under-workspace convention).
	Workspace string `yaml:"workspace"`

	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Focus     FocusConfig     `yaml:"focus"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Awareness AwarenessConfig `yaml:"awareness"`
	Cache     CacheConfig     `yaml:"cache"`
	Lineage   LineageConfig   `yaml:"lineage"`
	Decisions DecisionsConfig `yaml:"decisions"`
	Graph     GraphConfig     `yaml:"graph"`
	Logging   logging.Config  `yaml:"logging"`
}

// GraphConfig configures the unified memory store's on-disk persistence and
// query-time ranking.
type GraphConfig struct {
	Directory  string `yaml:"directory" json:"directory"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // embedding width; 0 disables the embedding index

	// Weights combine Query's per-dimension scores into one ranking score
	// (spec §4.5's weighted sum, defaults w_text=w_facet=1.0, w_spatial=0.5).
	WeightText    float64 `yaml:"weight_text" json:"weight_text"`
	WeightFacet   float64 `yaml:"weight_facet" json:"weight_facet"`
	WeightSpatial float64 `yaml:"weight_spatial" json:"weight_spatial"`
}

// Weights returns this config's weights as a unifiedstore.QueryWeights.
func (g GraphConfig) Weights() unifiedstore.QueryWeights {
	return unifiedstore.QueryWeights{Text: g.WeightText, Facet: g.WeightFacet, Spatial: g.WeightSpatial}
}

// FocusConfig configures the focus tracker's topic-weight decay.
type FocusConfig struct {
	DecayRate float64 `yaml:"decay_rate" json:"decay_rate"` // not read by focus.New, which always uses focus.DefaultDecay
}

// RetrievalConfig configures the parallel retriever's context assembly.
type RetrievalConfig struct {
	MaxContextTokens int  `yaml:"max_context_tokens" json:"max_context_tokens"`
	Parallel         bool `yaml:"parallel" json:"parallel"` // false forces the sequential fallback
}

// AwarenessConfig wraps the awareness extractor's threshold configuration
// (internal/awareness.Config) so it can be loaded/saved alongside the rest
// of sunwellmem's config in a single YAML document.
type AwarenessConfig struct {
	awareness.Config `yaml:",inline"`
}

// CacheConfig configures the SQLite learning cache read model.
type CacheConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
}

// LineageConfig configures the artifact lineage store.
type LineageConfig struct {
	Directory              string  `yaml:"directory" json:"directory"`
	DeletedRetentionHours  float64 `yaml:"deleted_retention_hours" json:"deleted_retention_hours"`
}

// DecisionsConfig configures the decision memory store.
type DecisionsConfig struct {
	LogPath       string `yaml:"log_path" json:"log_path"`
	EmbeddingPath string `yaml:"embedding_path" json:"embedding_path"`
}

// DefaultConfig returns the default configuration, rooted at ".sunwell"
// relative to the current working directory.
func DefaultConfig() *Config {
	workspace := ".sunwell"
	return &Config{
		Workspace: workspace,

		Memory: MemoryConfig{
			WorkingMemorySize: 200,
			SessionTTL:        "24h",
			ContextWindow: ContextWindowConfig{
				MaxTokens: 8000,
			},
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		Focus: FocusConfig{
			DecayRate: 0.9,
		},

		Retrieval: RetrievalConfig{
			MaxContextTokens: 8000,
			Parallel:         true,
		},

		Awareness: AwarenessConfig{Config: awareness.DefaultConfig()},

		Cache: CacheConfig{
			DatabasePath: filepath.Join(workspace, "cache.db"),
		},

		Lineage: LineageConfig{
			Directory:             filepath.Join(workspace, "lineage"),
			DeletedRetentionHours: 30 * 24,
		},

		Decisions: DecisionsConfig{
			LogPath:       filepath.Join(workspace, "decisions.jsonl"),
			EmbeddingPath: filepath.Join(workspace, "decisions_embeddings.json"),
		},

		Graph: GraphConfig{
			Directory:     filepath.Join(workspace, "graph"),
			Dimensions:    256,
			WeightText:    unifiedstore.DefaultQueryWeights().Text,
			WeightFacet:   unifiedstore.DefaultQueryWeights().Facet,
			WeightSpatial: unifiedstore.DefaultQueryWeights().Spatial,
		},

		Logging: logging.Config{
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// (with env overrides still applied) when the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating its parent directory
// if needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides layers environment variables over whatever Load parsed,
// mirroring the teacher's provider-credential-from-env pattern.
func (c *Config) applyEnvOverrides() {
	if ws := os.Getenv("SUNWELLMEM_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if model := os.Getenv("OLLAMA_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}
	if path := os.Getenv("SUNWELLMEM_CACHE_DB"); path != "" {
		c.Cache.DatabasePath = path
	}
}

// GetSessionTTL returns the session TTL as a duration, defaulting to 24h on
// a parse failure.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Memory.SessionTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ValidEmbeddingProviders lists the supported embedding backends.
var ValidEmbeddingProviders = []string{"ollama", "genai"}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidEmbeddingProviders {
		if c.Embedding.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("config: invalid embedding provider %q (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}
	if c.Embedding.Provider == "genai" && c.Embedding.GenAIAPIKey == "" {
		return fmt.Errorf("config: embedding provider genai requires GENAI_API_KEY")
	}
	if c.Memory.WorkingMemorySize <= 0 {
		return fmt.Errorf("config: memory.working_memory_size must be positive")
	}
	return nil
}
