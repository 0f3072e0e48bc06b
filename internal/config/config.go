// Package config provides configuration loading and structs for the Veridoc server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Upload     UploadConfig     `yaml:"upload"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Answer     AnswerConfig     `yaml:"answer"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the data directory layout. All derived paths hang off
// DataDir; only ChunkDBPath can be relocated independently.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	ChunkDBPath string `yaml:"chunk_db_path"`
}

// SessionsDir is the root of per-session working sets.
func (s *StorageConfig) SessionsDir() string {
	return filepath.Join(s.DataDir, "sessions")
}

// DocumentsDir is the global corpus documents directory.
func (s *StorageConfig) DocumentsDir() string {
	return filepath.Join(s.DataDir, "documents")
}

// EmbeddingsDir is the global corpus embeddings directory.
func (s *StorageConfig) EmbeddingsDir() string {
	return filepath.Join(s.DataDir, "embeddings")
}

// IndexDir is the global corpus index directory.
func (s *StorageConfig) IndexDir() string {
	return filepath.Join(s.DataDir, "index")
}

// ChunkDB is the chunk database path, defaulting under DataDir.
func (s *StorageConfig) ChunkDB() string {
	if s.ChunkDBPath != "" {
		return s.ChunkDBPath
	}
	return filepath.Join(s.DataDir, "chunks.db")
}

// UploadConfig holds upload limits and recognized document types.
type UploadConfig struct {
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	Extensions    []string `yaml:"extensions"`
}

// MaxFileSizeBytes returns the upload ceiling in bytes.
func (u *UploadConfig) MaxFileSizeBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

// ChunkingConfig holds text chunking settings.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "ollama", "onnx", "mock".
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// AnswerConfig holds retrieval and confidence-gate settings.
type AnswerConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	TopK                int     `yaml:"top_k"`
	// RefusalSeed fixes refusal phrasing selection; 0 means time-seeded.
	RefusalSeed int64 `yaml:"refusal_seed"`
}

// GenerationConfig holds Gemini API settings. The key itself never lives in
// the config file; APIKeyEnv names the environment variable that carries it.
type GenerationConfig struct {
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// WatchConfig enables watching the global documents directory.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	if cfg.Storage.ChunkDBPath != "" {
		cfg.Storage.ChunkDBPath = expandPath(cfg.Storage.ChunkDBPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
