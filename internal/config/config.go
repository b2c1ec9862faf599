package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrMissingAPIKey is returned by Validate when no embedding credential is set.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY missing (see .env.example)")

//go:embed default.json
var defaultTemplate string

// Config is the top-level configuration structure.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Embedding EmbeddingConfig `json:"embedding"`
	LogLevel  string          `json:"log_level"`
}

type DatabaseConfig struct {
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port,string"`
	Table    string `json:"table"`
	Metric   string `json:"metric"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension,string"`
	TaskType  string `json:"task_type"`
	BatchSize int    `json:"batch_size,string"`
	PaceMS    int    `json:"pace_ms,string"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
// An empty path loads the built-in template, which maps every setting to its
// conventional environment variable.
func Load(path string) (*Config, error) {
	raw := defaultTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		raw = string(data)
	}

	resolved := envVarRe.ReplaceAllStringFunc(raw, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return jsonEscape(v)
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		if path == "" {
			path = "<default>"
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// jsonEscape makes an environment value safe to splice into a JSON string literal.
func jsonEscape(v string) string {
	b, _ := json.Marshal(v)
	return strings.TrimSuffix(strings.TrimPrefix(string(b), `"`), `"`)
}

// Validate checks the settings every operation depends on. It performs no I/O.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Embedding.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.PaceMS < 0 {
		return fmt.Errorf("embedding pace must not be negative, got %dms", c.Embedding.PaceMS)
	}
	switch c.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Database.Metric {
	case "cosine", "l2", "inner_product":
	default:
		return fmt.Errorf("unknown vector metric %q", c.Database.Metric)
	}
	if c.Database.Table == "" {
		return errors.New("database table must not be empty")
	}
	return nil
}

// DSN renders the database settings as a libpq key/value connection string.
func (c *Config) DSN() string {
	d := c.Database
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		quoteDSN(d.Host), d.Port, quoteDSN(d.Name), quoteDSN(d.User), quoteDSN(d.Password))
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
