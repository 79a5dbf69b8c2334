// Package config loads and merges kioku's configuration. Precedence,
// lowest to highest: built-in defaults, user config
// (~/.config/kioku/config.yaml), project config (.kioku.yaml in the
// corpus directory), then KIOKU_* environment variables. Each layer is
// merged over the previous one field-by-field so a partial file never
// blanks out defaults it doesn't mention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete kioku configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Summarizer SummarizerConfig `yaml:"summarizer" json:"summarizer"`
	Build      BuildConfig      `yaml:"build" json:"build"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates the source corpus.
type PathsConfig struct {
	// Changelog is a path to a change-log text file, loaded with
	// loader.LoadChangelog. Empty disables this source.
	Changelog string `yaml:"changelog" json:"changelog"`
	// JSONL is a path to a line-delimited JSON corpus file, loaded with
	// loader.LoadJSONL. Empty disables this source.
	JSONL string `yaml:"jsonl" json:"jsonl"`
}

// IndexConfig locates the on-disk index directory.
type IndexConfig struct {
	Dir            string `yaml:"dir" json:"dir"`
	SchemaVersion  string `yaml:"schema_version" json:"schema_version"`
}

// SearchConfig configures default query behaviour.
type SearchConfig struct {
	// Mode is one of "bm25", "semantic", "hybrid". Validate rejects any
	// other value; an unknown --mode flag on the search command degrades
	// to "hybrid" with a warning (search.ParseMode).
	Mode  string `yaml:"mode" json:"mode"`
	TopK  int    `yaml:"top_k" json:"top_k"`
	Preview struct {
		Chars int `yaml:"chars" json:"chars"`
	} `yaml:"preview" json:"preview"`
}

// EmbeddingsConfig configures the external embedding service collaborator.
type EmbeddingsConfig struct {
	Endpoint      string        `yaml:"endpoint" json:"endpoint"`
	Model         string        `yaml:"model" json:"model"`
	APIKeyEnv     string        `yaml:"api_key_env" json:"api_key_env"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	Fanout        int           `yaml:"fanout" json:"fanout"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	CacheSize     int           `yaml:"cache_size" json:"cache_size"`
}

// ProviderRouting mirrors the optional "provider" object in a chat
// completion request (§6): order, fallback, allow/deny, sort, and
// parameter-support requirements.
type ProviderRouting struct {
	Order              []string `yaml:"order,omitempty" json:"order,omitempty"`
	AllowFallbacks     *bool    `yaml:"allow_fallbacks,omitempty" json:"allow_fallbacks,omitempty"`
	Only               []string `yaml:"only,omitempty" json:"only,omitempty"`
	Ignore             []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Sort               string   `yaml:"sort,omitempty" json:"sort,omitempty"`
	RequireParameters  bool     `yaml:"require_parameters,omitempty" json:"require_parameters,omitempty"`
}

// SummarizerConfig configures the rule-based/LLM summarizer split.
type SummarizerConfig struct {
	// Method is "rule-based" (default, zero external calls) or "llm".
	Method       string          `yaml:"method" json:"method"`
	PreviewChars int             `yaml:"preview_chars" json:"preview_chars"`
	Endpoint     string          `yaml:"endpoint" json:"endpoint"`
	Model        string          `yaml:"model" json:"model"`
	APIKeyEnv    string          `yaml:"api_key_env" json:"api_key_env"`
	MaxTokens    int             `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float64         `yaml:"temperature" json:"temperature"`
	MaxRetries   int             `yaml:"max_retries" json:"max_retries"`
	Timeout      time.Duration   `yaml:"timeout" json:"timeout"`
	CacheSize    int             `yaml:"cache_size" json:"cache_size"`
	CacheTTL     time.Duration   `yaml:"cache_ttl" json:"cache_ttl"`
	Provider     ProviderRouting `yaml:"provider" json:"provider"`
}

// BuildConfig configures the incremental builder.
type BuildConfig struct {
	Fanout    int    `yaml:"fanout" json:"fanout"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	LockPath  string `yaml:"lock_path" json:"lock_path"`
}

// ServerConfig configures the editor-plugin stdio surface (out of scope
// for the core per §1, but its log-level knob still lives in this
// config layer).
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	c := &Config{
		Version: 1,
		Index: IndexConfig{
			Dir:           ".kioku/index",
			SchemaVersion: "2.0",
		},
		Search: SearchConfig{
			Mode: "hybrid",
			TopK: 10,
		},
		Embeddings: EmbeddingsConfig{
			BatchSize:  32,
			Fanout:     4,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			CacheSize:  1000,
			APIKeyEnv:  "KIOKU_EMBEDDINGS_API_KEY",
		},
		Summarizer: SummarizerConfig{
			Method:       "rule-based",
			PreviewChars: 200,
			MaxTokens:    512,
			Temperature:  0.3,
			MaxRetries:   3,
			Timeout:      30 * time.Second,
			CacheSize:    500,
			CacheTTL:     24 * time.Hour,
			APIKeyEnv:    "KIOKU_SUMMARIZER_API_KEY",
		},
		Build: BuildConfig{
			Fanout:    4,
			BatchSize: 32,
			LockPath:  ".build.lock",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
	c.Search.Preview.Chars = 150
	return c
}

// Load applies the full precedence chain and validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetUserConfigDir returns the directory holding the user-level config,
// e.g. ~/.config/kioku on Linux.
func GetUserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kioku")
}

// GetUserConfigPath returns the user-level config file path.
func GetUserConfigPath() string {
	dir := GetUserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// UserConfigExists reports whether a user-level config file is present.
func UserConfigExists() bool {
	path := GetUserConfigPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".kioku.yaml", ".kioku.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero fields onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.Changelog != "" {
		c.Paths.Changelog = other.Paths.Changelog
	}
	if other.Paths.JSONL != "" {
		c.Paths.JSONL = other.Paths.JSONL
	}
	if other.Index.Dir != "" {
		c.Index.Dir = other.Index.Dir
	}
	if other.Index.SchemaVersion != "" {
		c.Index.SchemaVersion = other.Index.SchemaVersion
	}
	if other.Search.Mode != "" {
		c.Search.Mode = other.Search.Mode
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.Preview.Chars != 0 {
		c.Search.Preview.Chars = other.Search.Preview.Chars
	}

	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.APIKeyEnv != "" {
		c.Embeddings.APIKeyEnv = other.Embeddings.APIKeyEnv
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Fanout != 0 {
		c.Embeddings.Fanout = other.Embeddings.Fanout
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Summarizer.Method != "" {
		c.Summarizer.Method = other.Summarizer.Method
	}
	if other.Summarizer.PreviewChars != 0 {
		c.Summarizer.PreviewChars = other.Summarizer.PreviewChars
	}
	if other.Summarizer.Endpoint != "" {
		c.Summarizer.Endpoint = other.Summarizer.Endpoint
	}
	if other.Summarizer.Model != "" {
		c.Summarizer.Model = other.Summarizer.Model
	}
	if other.Summarizer.APIKeyEnv != "" {
		c.Summarizer.APIKeyEnv = other.Summarizer.APIKeyEnv
	}
	if other.Summarizer.MaxTokens != 0 {
		c.Summarizer.MaxTokens = other.Summarizer.MaxTokens
	}
	if other.Summarizer.Temperature != 0 {
		c.Summarizer.Temperature = other.Summarizer.Temperature
	}
	if other.Summarizer.MaxRetries != 0 {
		c.Summarizer.MaxRetries = other.Summarizer.MaxRetries
	}
	if other.Summarizer.Timeout != 0 {
		c.Summarizer.Timeout = other.Summarizer.Timeout
	}
	if other.Summarizer.CacheSize != 0 {
		c.Summarizer.CacheSize = other.Summarizer.CacheSize
	}
	if other.Summarizer.CacheTTL != 0 {
		c.Summarizer.CacheTTL = other.Summarizer.CacheTTL
	}
	if len(other.Summarizer.Provider.Order) > 0 {
		c.Summarizer.Provider.Order = other.Summarizer.Provider.Order
	}
	if other.Summarizer.Provider.AllowFallbacks != nil {
		c.Summarizer.Provider.AllowFallbacks = other.Summarizer.Provider.AllowFallbacks
	}
	if len(other.Summarizer.Provider.Only) > 0 {
		c.Summarizer.Provider.Only = other.Summarizer.Provider.Only
	}
	if len(other.Summarizer.Provider.Ignore) > 0 {
		c.Summarizer.Provider.Ignore = other.Summarizer.Provider.Ignore
	}
	if other.Summarizer.Provider.Sort != "" {
		c.Summarizer.Provider.Sort = other.Summarizer.Provider.Sort
	}
	if other.Summarizer.Provider.RequireParameters {
		c.Summarizer.Provider.RequireParameters = true
	}

	if other.Build.Fanout != 0 {
		c.Build.Fanout = other.Build.Fanout
	}
	if other.Build.BatchSize != 0 {
		c.Build.BatchSize = other.Build.BatchSize
	}
	if other.Build.LockPath != "" {
		c.Build.LockPath = other.Build.LockPath
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies KIOKU_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KIOKU_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("KIOKU_SEARCH_MODE"); v != "" {
		c.Search.Mode = v
	}
	if v := os.Getenv("KIOKU_SEARCH_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv("KIOKU_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("KIOKU_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("KIOKU_EMBEDDINGS_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Fanout = n
		}
	}
	if v := os.Getenv("KIOKU_SUMMARIZER_METHOD"); v != "" {
		c.Summarizer.Method = v
	}
	if v := os.Getenv("KIOKU_SUMMARIZER_ENDPOINT"); v != "" {
		c.Summarizer.Endpoint = v
	}
	if v := os.Getenv("KIOKU_SUMMARIZER_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	if v := os.Getenv("KIOKU_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("KIOKU_BUILD_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Build.Fanout = n
		}
	}
}

// Validate rejects configurations that would misbehave at runtime
// rather than failing loudly.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Search.Mode)
	switch mode {
	case "bm25", "semantic", "hybrid":
	default:
		return fmt.Errorf("search.mode: unknown mode %q (want bm25, semantic, or hybrid)", c.Search.Mode)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Embeddings.Fanout <= 0 {
		return fmt.Errorf("embeddings.fanout must be positive, got %d", c.Embeddings.Fanout)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	switch strings.ToLower(c.Summarizer.Method) {
	case "rule-based", "llm":
	default:
		return fmt.Errorf("summarizer.method: unknown method %q (want rule-based or llm)", c.Summarizer.Method)
	}
	if c.Summarizer.Method == "llm" && c.Summarizer.Endpoint == "" {
		return fmt.Errorf("summarizer.endpoint is required when summarizer.method is llm")
	}
	if c.Build.Fanout <= 0 {
		return fmt.Errorf("build.fanout must be positive, got %d", c.Build.Fanout)
	}
	return nil
}

// WriteYAML serializes c to path, creating parent directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
