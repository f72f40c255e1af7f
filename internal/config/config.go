// Package config provides application configuration management using koanf
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Services ServicesConfig `koanf:"services"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Chat     ChatConfig     `koanf:"chat"`
	App      AppConfig      `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// DatabaseConfig holds the SQLite vector store location
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ServicesConfig holds external service configuration
type ServicesConfig struct {
	Ollama OllamaConfig `koanf:"ollama"`
}

// OllamaConfig holds Ollama service configuration
type OllamaConfig struct {
	BaseURL        string `koanf:"base_url"`
	EmbeddingModel string `koanf:"embedding_model"`
	LLMModel       string `koanf:"llm_model"`
	Timeout        int    `koanf:"timeout"` // seconds
}

// IngestConfig holds document ingestion limits and chunking parameters
type IngestConfig struct {
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
	ChunkSize      int   `koanf:"chunk_size"`    // runes per segment
	ChunkOverlap   int   `koanf:"chunk_overlap"` // runes shared between neighbours
}

// ChatConfig holds retrieval parameters for grounded chat
type ChatConfig struct {
	TopK int `koanf:"top_k"`
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
}

// Load loads configuration from multiple sources with precedence:
// 1. config.yaml (if exists)
// 2. config.json (if exists)
// 3. Environment variables (highest precedence)
func Load() (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)
	loadConfigFiles(k)

	if err := k.Load(env.Provider(".", env.Opt{}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host":          "localhost",
		"server.port":          8080,
		"server.read_timeout":  30,
		"server.write_timeout": 120,

		"database.path": "vector_store.db",

		"services.ollama.base_url":        "http://localhost:11434",
		"services.ollama.embedding_model": "nomic-embed-text",
		"services.ollama.llm_model":       "llama3",
		"services.ollama.timeout":         60,

		"ingest.max_upload_bytes": int64(10 << 20), // 10 MiB
		"ingest.chunk_size":       1000,
		"ingest.chunk_overlap":    200,

		"chat.top_k": 4,

		"app.environment": "development",
		"app.log_format":  "text",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf) {
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Ingest.MaxUploadBytes < 1 {
		return fmt.Errorf("ingest.max_upload_bytes must be positive, got %d", cfg.Ingest.MaxUploadBytes)
	}
	if cfg.Ingest.ChunkSize < 1 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be >= 0 and < chunk_size, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Chat.TopK < 1 {
		return fmt.Errorf("chat.top_k must be at least 1, got %d", cfg.Chat.TopK)
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
