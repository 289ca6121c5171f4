// Package config loads runtime settings from an optional .env file, an
// optional YAML file and environment variables, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentstarter/ntfy"
)

// Providers lists the supported model providers.
var Providers = []string{"openai", "anthropic", "googleai", "mock"}

// Config is the complete runtime configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Model   ModelConfig   `yaml:"model"`
	Ntfy    NtfyConfig    `yaml:"ntfy"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// AgentConfig controls the loop.
type AgentConfig struct {
	Name               string `yaml:"name"`
	Instruction        string `yaml:"instruction"`
	MaxIterations      int    `yaml:"max_iterations"`       // 0 disables the cap
	ToolTimeoutSeconds int    `yaml:"tool_timeout_seconds"` // 0 disables the timeout
	MaxParallelTools   int    `yaml:"max_parallel_tools"`
	MaxHistoryMessages int    `yaml:"max_history_messages"`
	Streaming          bool   `yaml:"streaming"`
	AnnounceRuns       bool   `yaml:"announce_runs"`
	RunHistory         int    `yaml:"run_history"`
}

// ToolTimeout returns the per tool call timeout.
func (a AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(a.ToolTimeoutSeconds) * time.Second
}

// ModelConfig selects and configures the model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// NtfyConfig configures the relay client.
type NtfyConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Token          string        `yaml:"token"`
	Channels       ntfy.Channels `yaml:"channels"`
}

// Timeout returns the relay request timeout.
func (n NtfyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// SandboxConfig configures the code execution service.
type SandboxConfig struct {
	URL string `yaml:"url"`
}

// SearchConfig configures SerpAPI.
type SearchConfig struct {
	SerpAPIKey string `yaml:"serp_api_key"`
	Endpoint   string `yaml:"endpoint"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures listeners.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:               "agent",
			MaxIterations:      10,
			ToolTimeoutSeconds: 30,
			MaxHistoryMessages: 50,
			RunHistory:         100,
		},
		Model: ModelConfig{
			Provider: "openai",
		},
		Ntfy: NtfyConfig{
			BaseURL:        ntfy.DefaultBaseURL,
			TimeoutSeconds: int(ntfy.DefaultTimeout / time.Second),
			Channels:       ntfy.DefaultChannels(),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: ":8081"},
	}
}

// Load builds the configuration. envFiles default to ".env"; missing env
// files are ignored, a missing YAML file at a non-empty path is an error.
// Variables from env files never override the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"NTFY_BASE_URL":             &c.Ntfy.BaseURL,
		"NTFY_TOKEN":                &c.Ntfy.Token,
		"NTFY_COMMANDS_CHANNEL":     &c.Ntfy.Channels.Commands,
		"NTFY_SYNC_CHANNEL":         &c.Ntfy.Channels.Sync,
		"NTFY_TASKS_CHANNEL_PREFIX": &c.Ntfy.Channels.TasksPrefix,
		"NTFY_EMERGENCIES_CHANNEL":  &c.Ntfy.Channels.Emergencies,
		"NTFY_PRIVATE_CHANNEL":      &c.Ntfy.Channels.Private,
		"NTFY_USER_CHANNEL":         &c.Ntfy.Channels.User,
		"NTFY_FLAG_CHANNEL":         &c.Ntfy.Channels.Flag,
		"AGENT_NAME":                &c.Agent.Name,
		"AGENT_INSTRUCTION":         &c.Agent.Instruction,
		"MODEL_PROVIDER":            &c.Model.Provider,
		"MODEL_NAME":                &c.Model.Name,
		"MODEL_BASE_URL":            &c.Model.BaseURL,
		"MODEL_API_KEY":             &c.Model.APIKey,
		"SANDBOX_URL":               &c.Sandbox.URL,
		"SERP_API_KEY":              &c.Search.SerpAPIKey,
		"LOG_LEVEL":                 &c.Logging.Level,
		"LOG_FORMAT":                &c.Logging.Format,
		"SERVER_ADDR":               &c.Server.Addr,
		"METRICS_ADDR":              &c.Server.MetricsAddr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"NTFY_TIMEOUT":         &c.Ntfy.TimeoutSeconds,
		"AGENT_MAX_ITERATIONS": &c.Agent.MaxIterations,
		"AGENT_TOOL_TIMEOUT":   &c.Agent.ToolTimeoutSeconds,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("AGENT_STREAMING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AGENT_STREAMING: %q is not a boolean", v)
		}
		c.Agent.Streaming = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Agent.Name == "" {
		c.Agent.Name = d.Agent.Name
	}
	if c.Agent.RunHistory <= 0 {
		c.Agent.RunHistory = d.Agent.RunHistory
	}
	if c.Model.Provider == "" {
		c.Model.Provider = d.Model.Provider
	}
	c.Model.Provider = strings.ToLower(c.Model.Provider)
	if c.Model.APIKey == "" {
		c.Model.APIKey = providerKey(c.Model.Provider)
	}
	if c.Ntfy.BaseURL == "" {
		c.Ntfy.BaseURL = d.Ntfy.BaseURL
	}
	if c.Ntfy.TimeoutSeconds == 0 {
		c.Ntfy.TimeoutSeconds = d.Ntfy.TimeoutSeconds
	}
	c.Ntfy.Channels = c.Ntfy.Channels.WithDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "googleai":
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.Model.Provider) {
		return fmt.Errorf("model.provider %q is not one of %s", c.Model.Provider, strings.Join(Providers, ", "))
	}
	if c.Agent.MaxIterations < 0 {
		return errors.New("agent.max_iterations must not be negative")
	}
	if c.Agent.ToolTimeoutSeconds < 0 {
		return errors.New("agent.tool_timeout_seconds must not be negative")
	}
	if c.Ntfy.TimeoutSeconds <= 0 {
		return errors.New("ntfy.timeout_seconds must be positive")
	}
	if err := c.Ntfy.Channels.Validate(); err != nil {
		return fmt.Errorf("ntfy.channels: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format %q must be json or text", c.Logging.Format)
	}
	return nil
}
