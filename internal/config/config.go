package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Parley configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Completion cache
	Cache CacheConfig `yaml:"cache"`

	// Entity and transcript storage
	Store StoreConfig `yaml:"store"`

	// External tool gateways
	Tools ToolsConfig `yaml:"tools"`

	// HTTP API server
	Server ServerConfig `yaml:"server"`

	// Assistant persona
	Persona PersonaConfig `yaml:"persona"`

	// Prompt template overrides
	Prompts PromptsConfig `yaml:"prompts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	Retries  int    `yaml:"retries"`
}

// CacheConfig configures the LLM completion cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"` // empty = in-process LRU only
	RedisDB   int    `yaml:"redis_db"`
	TTL       string `yaml:"ttl"`
	MaxLocal  int    `yaml:"max_local"` // in-process entry cap
}

// StoreConfig configures the sqlite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ToolsConfig configures the external capability gateways.
type ToolsConfig struct {
	Playback  GatewayConfig `yaml:"playback"`
	Messaging GatewayConfig `yaml:"messaging"`
}

// GatewayConfig points at one tool gateway service.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	TurnTimeout     string `yaml:"turn_timeout"`
}

// PersonaConfig names the assistant and sets its register.
type PersonaConfig struct {
	Name  string `yaml:"name"`
	Style string `yaml:"style"`
}

// PromptsConfig configures on-disk prompt template overrides.
type PromptsConfig struct {
	OverrideDir string `yaml:"override_dir"`
	Watch       bool   `yaml:"watch"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "parley",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "qwen/qwen3-235b-a22b",
			BaseURL:  "https://openrouter.ai/api/v1",
			Timeout:  "90s",
			Retries:  2,
		},

		Cache: CacheConfig{
			Enabled:  true,
			TTL:      "6h",
			MaxLocal: 512,
		},

		Store: StoreConfig{
			DatabasePath: "data/parley.db",
		},

		Tools: ToolsConfig{
			Playback: GatewayConfig{
				Enabled: false,
				BaseURL: "http://localhost:8091",
				Timeout: "20s",
			},
			Messaging: GatewayConfig{
				Enabled: false,
				BaseURL: "http://localhost:8092",
				Timeout: "20s",
			},
		},

		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "120s",
			ShutdownTimeout: "10s",
			TurnTimeout:     "100s",
		},

		Persona: PersonaConfig{
			Name:  "Wren",
			Style: "a warm, patient companion who keeps replies short, clear, and encouraging",
		},

		Prompts: PromptsConfig{
			OverrideDir: "",
			Watch:       false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets PARLEY_* environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARLEY_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("PARLEY_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	// Provider-native key variables are honored so users keep their
	// existing shell setup.
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			if c.LLM.APIKey == "" {
				c.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
			}
		}
	}
	if v := os.Getenv("PARLEY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PARLEY_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("PARLEY_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("PARLEY_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("PARLEY_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PARLEY_PLAYBACK_URL"); v != "" {
		c.Tools.Playback.BaseURL = v
		c.Tools.Playback.Enabled = true
	}
	if v := os.Getenv("PARLEY_MESSAGING_URL"); v != "" {
		c.Tools.Messaging.BaseURL = v
		c.Tools.Messaging.Enabled = true
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model must be set")
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return fmt.Errorf("invalid llm timeout: %w", err)
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("llm retries must be >= 0")
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store database_path must be set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// GetLLMTimeout parses the LLM timeout with a 90s fallback.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}

// GetCacheTTL parses the cache TTL with a 6h fallback.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// GetReadTimeout parses the server read timeout with a 15s fallback.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetWriteTimeout parses the server write timeout with a 120s fallback.
// It must outlast the turn deadline or replies get cut off mid-write.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetTurnTimeout parses the per-turn deadline with a 100s fallback.
func (c *Config) GetTurnTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.TurnTimeout)
	if err != nil || d <= 0 {
		return 100 * time.Second
	}
	return d
}

// GetShutdownTimeout parses the server drain deadline with a 10s fallback.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GatewayTimeout parses a gateway timeout with a 20s fallback.
func (g GatewayConfig) GatewayTimeout() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// DefaultPath returns the conventional config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "parley.yaml"
	}
	return filepath.Join(home, ".parley", "config.yaml")
}
