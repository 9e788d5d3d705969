// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Tools     ToolsConfig     `json:"tools"`
	Browser   BrowserConfig   `json:"browser"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Memory    MemoryConfig    `json:"memory"`
	Sessions  SessionsConfig  `json:"sessions"`
	Metrics   MetricsConfig   `json:"metrics"`
	mu        sync.RWMutex
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

type AgentDefaults struct {
	Workspace            string  `json:"workspace" env:"GRIZZYCLAW_AGENTS_DEFAULTS_WORKSPACE"`
	Provider             string  `json:"provider" env:"GRIZZYCLAW_AGENTS_DEFAULTS_PROVIDER"`
	Model                string  `json:"model" env:"GRIZZYCLAW_AGENTS_DEFAULTS_MODEL"`
	MaxTokens            int     `json:"max_tokens" env:"GRIZZYCLAW_AGENTS_DEFAULTS_MAX_TOKENS"`
	Temperature          float64 `json:"temperature" env:"GRIZZYCLAW_AGENTS_DEFAULTS_TEMPERATURE"`
	MaxAgenticIterations int     `json:"max_agentic_iterations" env:"GRIZZYCLAW_AGENTS_DEFAULTS_MAX_AGENTIC_ITERATIONS"`
	MaxSessionMessages   int     `json:"max_session_messages" env:"GRIZZYCLAW_AGENTS_DEFAULTS_MAX_SESSION_MESSAGES"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" env:"GRIZZYCLAW_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" env:"GRIZZYCLAW_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"GRIZZYCLAW_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProvidersConfig struct {
	Default    string         `json:"default" env:"GRIZZYCLAW_PROVIDERS_DEFAULT"`
	MaxRetries int            `json:"max_retries" env:"GRIZZYCLAW_PROVIDERS_MAX_RETRIES"`
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"GRIZZYCLAW_PROVIDERS_OPENROUTER_"`
	OpenAI     ProviderConfig `json:"openai" envPrefix:"GRIZZYCLAW_PROVIDERS_OPENAI_"`
	Anthropic  ProviderConfig `json:"anthropic" envPrefix:"GRIZZYCLAW_PROVIDERS_ANTHROPIC_"`
	Ollama     ProviderConfig `json:"ollama" envPrefix:"GRIZZYCLAW_PROVIDERS_OLLAMA_"`
	LMStudio   ProviderConfig `json:"lmstudio" envPrefix:"GRIZZYCLAW_PROVIDERS_LMSTUDIO_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" env:"API_BASE"`
	Model   string `json:"model" env:"MODEL"`
	Proxy   string `json:"proxy,omitempty" env:"PROXY"`
}

type ToolsConfig struct {
	MCPServersFile string `json:"mcp_servers_file" env:"GRIZZYCLAW_TOOLS_MCP_SERVERS_FILE"`
}

type BrowserConfig struct {
	Enabled        bool `json:"enabled" env:"GRIZZYCLAW_BROWSER_ENABLED"`
	Headless       bool `json:"headless" env:"GRIZZYCLAW_BROWSER_HEADLESS"`
	NavTimeoutSecs int  `json:"nav_timeout_seconds" env:"GRIZZYCLAW_BROWSER_NAV_TIMEOUT_SECONDS"`
}

type SchedulerConfig struct {
	Enabled   bool   `json:"enabled" env:"GRIZZYCLAW_SCHEDULER_ENABLED"`
	TasksFile string `json:"tasks_file" env:"GRIZZYCLAW_SCHEDULER_TASKS_FILE"`
}

type MemoryConfig struct {
	DBPath         string `json:"db_path" env:"GRIZZYCLAW_MEMORY_DB_PATH"`
	RetrievalLimit int    `json:"retrieval_limit" env:"GRIZZYCLAW_MEMORY_RETRIEVAL_LIMIT"`
}

type SessionsConfig struct {
	Dir        string `json:"dir" env:"GRIZZYCLAW_SESSIONS_DIR"`
	TTLMinutes int    `json:"ttl_minutes" env:"GRIZZYCLAW_SESSIONS_TTL_MINUTES"` // 0 = never evict
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"GRIZZYCLAW_METRICS_ENABLED"`
	Listen  string `json:"listen" env:"GRIZZYCLAW_METRICS_LISTEN"`
}

func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:            "~/.grizzyclaw/workspace",
				Provider:             "openrouter",
				Model:                "openai/gpt-5.2",
				MaxTokens:            8192,
				Temperature:          0.7,
				MaxAgenticIterations: 5,
				MaxSessionMessages:   20,
			},
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Providers: ProvidersConfig{
			Default:    "openrouter",
			MaxRetries: 3,
			OpenRouter: ProviderConfig{},
			OpenAI:     ProviderConfig{},
			Anthropic:  ProviderConfig{},
			Ollama:     ProviderConfig{APIBase: "http://localhost:11434/v1"},
			LMStudio:   ProviderConfig{APIBase: "http://localhost:1234/v1"},
		},
		Tools: ToolsConfig{
			MCPServersFile: "~/.grizzyclaw/mcp_servers.json",
		},
		Browser: BrowserConfig{
			Enabled:        false,
			Headless:       true,
			NavTimeoutSecs: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled:   true,
			TasksFile: "~/.grizzyclaw/scheduled_tasks.json",
		},
		Memory: MemoryConfig{
			DBPath:         "~/.grizzyclaw/memory.db",
			RetrievalLimit: 8,
		},
		Sessions: SessionsConfig{
			Dir:        "~/.grizzyclaw/sessions",
			TTLMinutes: 0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:18791",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agents.Defaults.Workspace)
}

// Provider returns the named provider's settings with its base URL defaulted.
func (c *Config) Provider(name string) ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var p ProviderConfig
	switch name {
	case "openrouter":
		p = c.Providers.OpenRouter
		if p.APIBase == "" {
			p.APIBase = "https://openrouter.ai/api/v1"
		}
	case "openai":
		p = c.Providers.OpenAI
		if p.APIBase == "" {
			p.APIBase = "https://api.openai.com/v1"
		}
	case "anthropic":
		p = c.Providers.Anthropic
		if p.APIBase == "" {
			p.APIBase = "https://api.anthropic.com"
		}
	case "ollama":
		p = c.Providers.Ollama
		if p.APIBase == "" {
			p.APIBase = "http://localhost:11434/v1"
		}
	case "lmstudio":
		p = c.Providers.LMStudio
		if p.APIBase == "" {
			p.APIBase = "http://localhost:1234/v1"
		}
	}
	return p
}

// ProviderNames lists every provider that has enough configuration to be
// usable, the default first. Local backends count as configured when their
// base URL is set even without a key.
func (c *Config) ProviderNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	candidates := []struct {
		name string
		cfg  ProviderConfig
	}{
		{"openrouter", c.Providers.OpenRouter},
		{"openai", c.Providers.OpenAI},
		{"anthropic", c.Providers.Anthropic},
		{"ollama", c.Providers.Ollama},
		{"lmstudio", c.Providers.LMStudio},
	}

	local := map[string]bool{"ollama": true, "lmstudio": true}

	var names []string
	for _, cand := range candidates {
		if cand.cfg.APIKey != "" || (local[cand.name] && cand.cfg.APIBase != "") {
			names = append(names, cand.name)
		}
	}

	def := c.Providers.Default
	for i, n := range names {
		if n == def && i != 0 {
			names = append(names[:i], names[i+1:]...)
			names = append([]string{def}, names...)
			break
		}
	}
	return names
}

func (c *Config) MCPServersPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Tools.MCPServersFile)
}

func (c *Config) TasksPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Scheduler.TasksFile)
}

func (c *Config) MemoryDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Memory.DBPath)
}

func (c *Config) SessionsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Sessions.Dir)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
