package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredentialEnv is consulted when the enabled provider has no api_key.
const CredentialEnv = "OPENAI_API_KEY"

const (
	DefaultSystemPrompt = "You are a professional business strategy consultant. " +
		"Give clear, practical and well-structured advice that a founder can act on."
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultModel       = "gpt-3.5-turbo"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Workflow  WorkflowConfig            `json:"workflow" yaml:"workflow"`
	Import    ImportConfig              `json:"import" yaml:"import"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	LogDir    string `json:"log_dir" yaml:"log_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	// DeniedCommands are refused on this gateway, e.g. ["export"].
	DeniedCommands []string `json:"denied_commands,omitempty" yaml:"denied_commands,omitempty"`
	// DeniedImports are regular expressions matched against /import URLs.
	DeniedImports []string `json:"denied_imports,omitempty" yaml:"denied_imports,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

// WorkflowConfig holds the fixed completion parameters and the prompt
// template directory. These are constants for the lifetime of a session.
type WorkflowConfig struct {
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	// Temperature is a pointer so that an explicit 0 is kept.
	Temperature *float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens" yaml:"max_tokens"`
	PromptsDir  string   `json:"prompts_dir" yaml:"prompts_dir"`
}

// SamplingTemperature returns the configured temperature or the default.
func (w WorkflowConfig) SamplingTemperature() float64 {
	if w.Temperature == nil {
		return DefaultTemperature
	}
	return *w.Temperature
}

// ImportConfig controls /import. RenderJavaScript loads pages without
// static text in headless Chrome.
type ImportConfig struct {
	RenderJavaScript bool   `json:"render_javascript" yaml:"render_javascript"`
	ChromePath       string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
}

// Default returns a configuration usable without any file: the OpenAI
// provider enabled with its key taken from the environment.
func Default() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"openai": {Model: DefaultModel, Enabled: true},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON or YAML config file, chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path, or returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stratagent"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "workspace"
	}
	if c.App.LogDir == "" {
		c.App.LogDir = "logs"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "stratagent.db"
	}
	if c.Workflow.SystemPrompt == "" {
		c.Workflow.SystemPrompt = DefaultSystemPrompt
	}
	if c.Workflow.Temperature == nil {
		t := DefaultTemperature
		c.Workflow.Temperature = &t
	}
	if c.Workflow.MaxTokens == 0 {
		c.Workflow.MaxTokens = DefaultMaxTokens
	}
	for name, p := range c.Providers {
		if p.Model == "" {
			p.Model = DefaultModel
			c.Providers[name] = p
		}
	}
}

// GetDefaultProvider returns the first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGatewayConfig returns the named gateway config if it is enabled and
// carries a token.
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}

// Credential resolves the completion-service key: the provider's api_key,
// then the environment. An empty result means the user must supply one.
func (c *Config) Credential() string {
	if _, p := c.GetDefaultProvider(); p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv(CredentialEnv)
}
