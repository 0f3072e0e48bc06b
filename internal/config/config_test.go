package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  data_dir: "/var/lib/veridoc"
answer:
  confidence_threshold: 0.4
  top_k: 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DataDir != "/var/lib/veridoc" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Answer.ConfidenceThreshold != 0.4 || cfg.Answer.TopK != 5 {
		t.Errorf("unexpected answer config: %+v", cfg.Answer)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 300 || cfg.Chunking.ChunkOverlap != 50 {
		t.Errorf("default chunking = %+v", cfg.Chunking)
	}
	if cfg.Answer.ConfidenceThreshold != 0.25 || cfg.Answer.TopK != 3 {
		t.Errorf("default answer = %+v", cfg.Answer)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default embedding provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Generation.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("default api_key_env = %q", cfg.Generation.APIKeyEnv)
	}
	if cfg.Generation.Model != "models/gemini-2.5-flash" {
		t.Errorf("default generation model = %q", cfg.Generation.Model)
	}
}

func TestLoad_ExpandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  data_dir: "./data"
  chunk_db_path: "./db/chunks.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data_dir = %q, want under config dir", cfg.Storage.DataDir)
	}
	if cfg.Storage.ChunkDB() != filepath.Join(dir, "db", "chunks.db") {
		t.Errorf("chunk_db = %q, want under config dir", cfg.Storage.ChunkDB())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestStorageConfig_DerivedPaths(t *testing.T) {
	s := StorageConfig{DataDir: "/data"}
	if s.SessionsDir() != "/data/sessions" {
		t.Errorf("SessionsDir = %q", s.SessionsDir())
	}
	if s.DocumentsDir() != "/data/documents" {
		t.Errorf("DocumentsDir = %q", s.DocumentsDir())
	}
	if s.EmbeddingsDir() != "/data/embeddings" {
		t.Errorf("EmbeddingsDir = %q", s.EmbeddingsDir())
	}
	if s.IndexDir() != "/data/index" {
		t.Errorf("IndexDir = %q", s.IndexDir())
	}
	if s.ChunkDB() != "/data/chunks.db" {
		t.Errorf("ChunkDB = %q", s.ChunkDB())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Storage.DataDir == "" {
		t.Error("Default() left data_dir empty")
	}
	if cfg.Upload.MaxFileSizeBytes() != 20*1024*1024 {
		t.Errorf("default upload ceiling = %d", cfg.Upload.MaxFileSizeBytes())
	}
}
