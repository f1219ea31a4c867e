package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderVoyage  = "voyage"
	ProviderLexical = "lexical"
)

// Caption providers. An empty provider means heuristic captions only.
const (
	CaptionProviderNone        = ""
	CaptionProviderHuggingFace = "huggingface"
)

// Config holds the vecrank API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	Caption   CaptionConfig   `yaml:"caption"`
	Cache     CacheConfig     `yaml:"cache"`
	CORS      CORSConfig      `yaml:"cors"`
	Search    SearchConfig    `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// EmbeddingConfig selects and configures the text embedding backend.
// A remote provider without api_key starts the service with embeddings disabled.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai, voyage, lexical
	Name                string `yaml:"name"`     // label in logs and metrics, e.g. "gemini"
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
}

// LexicalConfig holds settings of the local hashed TF-IDF backend.
// Corpus and CorpusPath (one document per line) together form the documents
// the idf weights are fitted from at startup.
type LexicalConfig struct {
	Dimensions int      `yaml:"dimensions"`
	Corpus     []string `yaml:"corpus"`
	CorpusPath string   `yaml:"corpus_path"`
}

// FanoutConfig holds the concurrency ceilings for parallel embedding.
type FanoutConfig struct {
	ItemConcurrency  int `yaml:"item_concurrency"`
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// CaptionConfig holds remote captioning settings.
type CaptionConfig struct {
	Provider   string `yaml:"provider"` // huggingface or empty
	APIToken   string `yaml:"api_token"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

// CacheConfig holds the optional embedding cache. Empty addrs disables it.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SearchConfig holds request limits for /search.
type SearchConfig struct {
	MaxItems int `yaml:"max_items"`
}

// Enabled reports whether the cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// TTL returns the cache entry lifetime; zero means no expiry.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

// Timeout returns the per-call embedding deadline.
func (c EmbeddingConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// Configured reports whether the selected provider has what it needs to run.
func (c EmbeddingConfig) Configured() bool {
	return c.Provider == ProviderLexical || c.APIKey != ""
}

// Documents returns the inline corpus followed by the non-blank lines of
// CorpusPath.
func (c LexicalConfig) Documents() ([]string, error) {
	docs := make([]string, 0, len(c.Corpus))
	for _, d := range c.Corpus {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	if c.CorpusPath == "" {
		return docs, nil
	}

	data, err := os.ReadFile(c.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("read lexical corpus: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			docs = append(docs, line)
		}
	}
	return docs, nil
}

// Timeout returns the per-call caption deadline.
func (c CaptionConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// Configured reports whether remote captioning is enabled.
func (c CaptionConfig) Configured() bool {
	return c.Provider == CaptionProviderHuggingFace && c.APIToken != ""
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Name == "" {
		c.Embedding.Name = c.Embedding.Provider
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case ProviderOpenAI:
			c.Embedding.Model = "text-embedding-3-small"
		case ProviderVoyage:
			c.Embedding.Model = "voyage-3.5-lite"
		case ProviderLexical:
			c.Embedding.Model = "hashed-tfidf"
		}
	}
	if c.Lexical.Dimensions <= 0 {
		c.Lexical.Dimensions = 512
	}
	if c.Fanout.ItemConcurrency <= 0 {
		c.Fanout.ItemConcurrency = 6
	}
	if c.Fanout.BatchConcurrency <= 0 {
		c.Fanout.BatchConcurrency = 8
	}
	if c.Caption.Model == "" {
		c.Caption.Model = "Salesforce/blip-image-captioning-base"
	}
	if c.Caption.TimeoutSec <= 0 {
		c.Caption.TimeoutSec = 30
	}
	if c.Caption.MaxRetries < 0 {
		c.Caption.MaxRetries = 0
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "vecrank:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.Search.MaxItems <= 0 {
		c.Search.MaxItems = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderVoyage, ProviderLexical:
	default:
		return fmt.Errorf("embedding.provider must be %q, %q or %q, got %q",
			ProviderOpenAI, ProviderVoyage, ProviderLexical, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	switch c.Caption.Provider {
	case CaptionProviderNone, CaptionProviderHuggingFace:
	default:
		return fmt.Errorf("caption.provider must be %q or empty, got %q",
			CaptionProviderHuggingFace, c.Caption.Provider)
	}
	if c.Lexical.CorpusPath != "" && !fileExists(c.Lexical.CorpusPath) {
		return fmt.Errorf("lexical.corpus_path %q does not exist", c.Lexical.CorpusPath)
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative, got %d", c.Cache.TTLHours)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
