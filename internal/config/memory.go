package config

// MemoryConfig configures the in-process memory kinds a simulacrum owns.
type MemoryConfig struct {
	// WorkingMemorySize is the configured bound on turns kept in working
	// memory. Validate requires it to be positive; simulacrum.New does not
	// read it and always bounds working memory at memtypes.DefaultMaxTurns.
	WorkingMemorySize int `yaml:"working_memory_size"`

	// SessionTTL is how long an idle session's snapshot remains loadable
	// before it's considered stale (parsed via GetSessionTTL).
	SessionTTL string `yaml:"session_ttl"`

	// ContextWindow holds a context token budget; AssembleContext's budget
	// in the sunwellmem command comes from Retrieval.MaxContextTokens instead.
	ContextWindow ContextWindowConfig `yaml:"context_window"`
}

// EmbeddingConfig configures the vector embedding backend. Supports Ollama
// (local) and GenAI (cloud) providers, mirroring the teacher's dual-backend
// embedding config.
type EmbeddingConfig struct {
	// Provider selects the backend: "ollama" or "genai".
	Provider string `yaml:"provider" json:"provider"`

	// Ollama configuration (local embedding server).
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`

	// GenAI configuration (Google cloud embedding).
	GenAIAPIKey string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model" json:"genai_model"`

	// TaskType is the GenAI embedding task type, e.g. SEMANTIC_SIMILARITY,
	// RETRIEVAL_DOCUMENT, RETRIEVAL_QUERY.
	TaskType string `yaml:"task_type" json:"task_type"`
}

// ContextWindowConfig holds a token budget for assembled context.
type ContextWindowConfig struct {
	// MaxTokens is a total token budget. No caller passes it to
	// RetrievalResult.ToContext; the sunwellmem command passes
	// Retrieval.MaxContextTokens instead.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultContextWindowConfig returns a sensible default token budget.
func DefaultContextWindowConfig() ContextWindowConfig {
	return ContextWindowConfig{MaxTokens: 8000}
}
