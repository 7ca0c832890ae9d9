// Package config holds advisor configuration: API credentials, corpus and
// index paths, chunking and retrieval parameters, and completion settings.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the advisor settings.
type Config struct {
	APIKey string `json:"api_key"`

	// Paths
	DataDir    string `json:"data_dir"`    // Default: ".advisor"
	CorpusPath string `json:"corpus_path"` // accident_cases.json
	IndexPath  string `json:"index_path"`  // SQLite index database
	VocabPath  string `json:"vocab_path"`  // keyword vocabulary YAML (optional)

	// Index settings
	Collection   string `json:"collection"`    // Default: "traffic_accidents"
	ChunkSize    int    `json:"chunk_size"`    // Default: 1000
	ChunkOverlap int    `json:"chunk_overlap"` // Default: 200

	// Retrieval settings
	VectorK  int `json:"vector_k"`  // Default: 5
	KeywordK int `json:"keyword_k"` // Default: 3

	// ConversationWindow is how many past exchanges feed into each prompt.
	ConversationWindow int `json:"conversation_window"` // Default: 3

	// Completion settings
	Model             string  `json:"model"`               // Default: "gemini-1.5-flash"
	VisionModel       string  `json:"vision_model"`        // Default: same as Model
	EmbeddingModel    string  `json:"embedding_model"`     // Default: "gemini-embedding-001"
	Temperature       float64 `json:"temperature"`         // Default: 0.2
	MaxOutputTokens   int     `json:"max_output_tokens"`   // Default: 1000
	RequestsPerMinute int     `json:"requests_per_minute"` // Default: 15 (free-tier pacing)

	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig controls the categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:            ".advisor",
		CorpusPath:         filepath.Join(".advisor", "cases", "accident_cases.json"),
		IndexPath:          filepath.Join(".advisor", "index.db"),
		Collection:         "traffic_accidents",
		ChunkSize:          1000,
		ChunkOverlap:       200,
		VectorK:            5,
		KeywordK:           3,
		ConversationWindow: 3,
		Model:              "gemini-1.5-flash",
		EmbeddingModel:     "gemini-embedding-001",
		Temperature:        0.2,
		MaxOutputTokens:    1000,
		RequestsPerMinute:  15,
	}
}

// ConfigFile returns the full path to the config file under the data dir.
func ConfigFile(dataDir string) string {
	if dataDir == "" {
		dataDir = ".advisor"
	}
	return filepath.Join(dataDir, "config.json")
}

// Load reads the configuration from disk, falling back to defaults for
// anything unset. A missing file is not an error.
func Load(dataDir string) (Config, error) {
	cfg := DefaultConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	data, err := os.ReadFile(ConfigFile(cfg.DataDir))
	if os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	cfg.fillDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration to disk.
func Save(cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigFile(cfg.DataDir), data, 0644)
}

// applyEnv lets environment variables override file values for credentials.
func (c *Config) applyEnv() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.APIKey = key
	}
}

// fillDefaults re-applies defaults for zero-valued fields so a sparse
// config file stays valid.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.CorpusPath == "" {
		c.CorpusPath = def.CorpusPath
	}
	if c.IndexPath == "" {
		c.IndexPath = def.IndexPath
	}
	if c.Collection == "" {
		c.Collection = def.Collection
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = def.ChunkOverlap
	}
	if c.VectorK <= 0 {
		c.VectorK = def.VectorK
	}
	if c.KeywordK <= 0 {
		c.KeywordK = def.KeywordK
	}
	if c.ConversationWindow <= 0 {
		c.ConversationWindow = def.ConversationWindow
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = def.EmbeddingModel
	}
	if c.Temperature <= 0 {
		c.Temperature = def.Temperature
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = def.MaxOutputTokens
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = def.RequestsPerMinute
	}
}
