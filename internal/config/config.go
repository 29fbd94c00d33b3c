// Package config defines the application configuration and loads it from
// JSON or YAML files with environment variable expansion.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the course assistant.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Server    ServerConfig              `json:"server"`
	Providers map[string]ProviderConfig `json:"providers"`
	Embedding EmbeddingConfig           `json:"embedding"`
	Qdrant    QdrantConfig              `json:"qdrant"`
	Chunking  ChunkingConfig            `json:"chunking"`
	Search    SearchConfig              `json:"search"`
	Session   SessionConfig             `json:"session"`
	Docs      DocsConfig                `json:"docs"`
	QueryLog  QueryLogConfig            `json:"querylog"`
}

// GeneralConfig holds settings that apply across the whole application.
type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
	// Provider names the entry in Providers used to answer queries.
	Provider string `json:"provider"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	CORSOrigin string `json:"corsOrigin"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey,omitempty"`
	// APIBase overrides the provider's default endpoint, which also allows
	// pointing an OpenAI-compatible local server at the "openai" provider.
	APIBase            string `json:"apiBase,omitempty"`
	Model              string `json:"model,omitempty"`
	MaxTokens          int    `json:"maxTokens,omitempty"`
	RateLimitPerMinute int    `json:"rateLimitPerMinute,omitempty"`
}

// EmbeddingConfig configures the embedding model used for both ingestion
// and search. Dimension must match the vector size of the Qdrant collections.
type EmbeddingConfig struct {
	APIKey    string `json:"apiKey,omitempty"`
	APIBase   string `json:"apiBase,omitempty"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// QdrantConfig points at the Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ChunkingConfig controls how course documents are split for embedding.
type ChunkingConfig struct {
	MaxChars     int `json:"maxChars"`
	OverlapChars int `json:"overlapChars"`
}

// SearchConfig controls semantic search behavior.
type SearchConfig struct {
	MaxResults int `json:"maxResults"`
}

// SessionConfig controls in-memory conversation history.
type SessionConfig struct {
	// MaxHistory is the number of exchanges (user plus assistant pairs)
	// kept per session.
	MaxHistory int `json:"maxHistory"`
}

// DocsConfig points at the folder of course documents loaded on startup.
type DocsConfig struct {
	Path string `json:"path"`
}

// QueryLogConfig configures the optional SQLite query log.
type QueryLogConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coursechat"
	}
	return filepath.Join(home, ".coursechat")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands and validates a config file. Values start from
// Defaults, so a partial file only needs the keys it overrides. Files
// ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := unmarshalConfig(path, data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Docs.Path = ExpandPath(cfg.Docs.Path)
	cfg.QueryLog.DBPath = ExpandPath(cfg.QueryLog.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// unmarshalConfig decodes data on top of cfg. YAML input is converted to
// JSON first so both formats share the same camelCase key names.
func unmarshalConfig(path string, data []byte, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return err
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		data = converted
	}
	return json.Unmarshal(data, cfg)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} references with the environment value and
// ${VAR:-default} with the default when the variable is unset or empty.
// References without a default are kept verbatim when the variable is unset.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg to path, creating parent directories as needed. Files
// ending in .yaml or .yml are written as YAML, everything else as JSON.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		// Round-trip through JSON so the YAML keys match the json tags.
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("cannot convert config: %w", err)
		}
		if data, err = yaml.Marshal(raw); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks cfg for values that would break the application at
// runtime. All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Qdrant.Port < 1 || cfg.Qdrant.Port > 65535 {
		errs = append(errs, "qdrant.port must be between 1 and 65535")
	}

	if cfg.Chunking.MaxChars < 100 {
		errs = append(errs, "chunking.maxChars must be >= 100")
	}
	if cfg.Chunking.OverlapChars < 0 || cfg.Chunking.OverlapChars >= cfg.Chunking.MaxChars {
		errs = append(errs, "chunking.overlapChars must be >= 0 and smaller than chunking.maxChars")
	}

	if cfg.Search.MaxResults < 1 {
		errs = append(errs, "search.maxResults must be >= 1")
	}
	if cfg.Session.MaxHistory < 1 {
		errs = append(errs, "session.maxHistory must be >= 1")
	}
	if cfg.Embedding.Dimension < 1 {
		errs = append(errs, "embedding.dimension must be >= 1")
	}

	if cfg.General.Provider == "" {
		errs = append(errs, "general.provider must name a configured provider")
	} else if pc, ok := cfg.Providers[cfg.General.Provider]; !ok {
		errs = append(errs, fmt.Sprintf("general.provider references unknown provider: %s", cfg.General.Provider))
	} else if !pc.Enabled {
		errs = append(errs, fmt.Sprintf("general.provider references disabled provider: %s", cfg.General.Provider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
