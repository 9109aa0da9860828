package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultProvider       = "gemini"
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultStdioCommand   = "node"
	defaultStartTimeout   = 30 * time.Second
	defaultHistoryTimeout = 5 * time.Second

	appDir         = ".pdf-mcp-client"
	configFileName = "config.yaml"
	historyDBName  = "history.db"
)

// ServerConfig describes the remote MCP server used over HTTP.
type ServerConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

// AgentConfig selects the LLM used for summaries and tool-calling.
type AgentConfig struct {
	Provider string `yaml:"provider"` // "gemini" or "openai"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// StdioConfig describes the local MCP server subprocess.
type StdioConfig struct {
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args"`
	ServerPath   string            `yaml:"server_path"`
	Env          map[string]string `yaml:"env"`
	StartTimeout time.Duration     `yaml:"start_timeout"`
}

// HistoryConfig controls the local SQLite run history.
type HistoryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the full client configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	Stdio   StdioConfig   `yaml:"stdio"`
	History HistoryConfig `yaml:"history"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Server: ServerConfig{
			ConnectTimeout: defaultConnectTimeout,
			ReadTimeout:    defaultReadTimeout,
		},
		Agent: AgentConfig{
			Provider: defaultProvider,
		},
		Stdio: StdioConfig{
			Command:      defaultStdioCommand,
			Env:          map[string]string{},
			StartTimeout: defaultStartTimeout,
		},
		History: HistoryConfig{
			Enabled: true,
			Timeout: defaultHistoryTimeout,
		},
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.History.Path = filepath.Join(home, appDir, historyDBName)
	}
	return cfg
}

// DefaultPath returns ~/.pdf-mcp-client/config.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, appDir, configFileName)
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment, in that order of precedence. An empty path falls back to
// DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	finalize(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Relative paths are resolved against the config file directory.
	configDir, _ := filepath.Abs(filepath.Dir(path))
	if cfg.Stdio.ServerPath != "" && !filepath.IsAbs(cfg.Stdio.ServerPath) {
		cfg.Stdio.ServerPath = filepath.Join(configDir, cfg.Stdio.ServerPath)
	}
	if cfg.History.Path != "" && !filepath.IsAbs(cfg.History.Path) {
		cfg.History.Path = filepath.Join(configDir, cfg.History.Path)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.URL = envOr("MCP_SERVER_URL", cfg.Server.URL)
	cfg.Server.APIKey = envOr("MCP_API_KEY", cfg.Server.APIKey)

	var err error
	if cfg.Server.ConnectTimeout, err = durationEnv("MCP_CONNECT_TIMEOUT", cfg.Server.ConnectTimeout); err != nil {
		return err
	}
	if cfg.Server.ReadTimeout, err = durationEnv("MCP_READ_TIMEOUT", cfg.Server.ReadTimeout); err != nil {
		return err
	}

	cfg.Agent.Provider = strings.ToLower(envOr("PDF_AGENT_PROVIDER", cfg.Agent.Provider))
	cfg.Agent.Model = envOr("PDF_AGENT_MODEL", cfg.Agent.Model)
	if cfg.Agent.APIKey == "" {
		switch cfg.Agent.Provider {
		case "openai":
			cfg.Agent.APIKey = envOr("OPENAI_API_KEY", "")
		default:
			cfg.Agent.APIKey = envOr("GEMINI_API_KEY", envOr("GOOGLE_API_KEY", ""))
		}
	}

	cfg.Stdio.ServerPath = envOr("PDF_MCP_SERVER_PATH", cfg.Stdio.ServerPath)
	cfg.History.Path = envOr("PDF_MCP_HISTORY_DB", cfg.History.Path)
	cfg.History.Enabled = boolEnv("PDF_MCP_HISTORY", cfg.History.Enabled)
	return nil
}

func finalize(cfg *Config) {
	if cfg.Server.ConnectTimeout <= 0 {
		cfg.Server.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = defaultProvider
	}
	if cfg.Agent.Model == "" {
		switch cfg.Agent.Provider {
		case "openai":
			cfg.Agent.Model = defaultOpenAIModel
		default:
			cfg.Agent.Model = defaultGeminiModel
		}
	}
	if cfg.Stdio.Command == "" {
		cfg.Stdio.Command = defaultStdioCommand
	}
	if cfg.Stdio.StartTimeout <= 0 {
		cfg.Stdio.StartTimeout = defaultStartTimeout
	}
	if cfg.History.Timeout <= 0 {
		cfg.History.Timeout = defaultHistoryTimeout
	}
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		switch strings.ToLower(raw) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
