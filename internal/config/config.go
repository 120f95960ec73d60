package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Chat      ChatConfig                `mapstructure:"chat"`
	MCP       MCPConfig                 `mapstructure:"mcp"`
	Tools     ToolsConfig               `mapstructure:"tools"`
}

type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	AuthSecret  string   `mapstructure:"auth_secret"`  // JWT signing secret
	AuthToken   string   `mapstructure:"auth_token"`   // Optional static bearer token
	CORSOrigins []string `mapstructure:"cors_origins"` // "*" allows any origin
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ModelConfig routes a model to a provider. BaseURL/APIKey, when set,
// override the named provider's values for this model only.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
}

type ChatConfig struct {
	DefaultModel        string   `mapstructure:"default_model"`
	MaxToolRounds       int      `mapstructure:"max_tool_rounds"`
	ShowToolCalls       bool     `mapstructure:"show_tool_calls"`
	ToolModels          []string `mapstructure:"tool_models"`           // Models allowed to call tools
	VisionModels        []string `mapstructure:"vision_models"`         // Models that accept image inputs
	SystemMessageModels []string `mapstructure:"system_message_models"` // Models that get the system message
	SystemMessage       string   `mapstructure:"system_message"`
}

type MCPConfig struct {
	URL           string        `mapstructure:"url"`
	AuthToken     string        `mapstructure:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ToolsCacheTTL time.Duration `mapstructure:"tools_cache_ttl"`
}

type ToolsConfig struct {
	// PythonCommand is the interpreter invocation for the python tool,
	// e.g. ["python3", "-"] or a sandbox wrapper. Empty disables it.
	PythonCommand []string `mapstructure:"python_command"`
	SearchAPIKey  string   `mapstructure:"search_api_key"`
	SearchCX      string   `mapstructure:"search_cx"`
}

// Load reads the config file (optional) plus PARLEY_* env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("parley")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/parley")
		v.AddConfigPath("$HOME/.config/parley")
		v.AddConfigPath(".")
	}

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("database.path", "parley.db")
	v.SetDefault("chat.max_tool_rounds", 8)
	v.SetDefault("chat.show_tool_calls", false)
	v.SetDefault("mcp.timeout", 30*time.Second)
	v.SetDefault("mcp.tools_cache_ttl", 60*time.Second)

	v.SetEnvPrefix("parley")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not feed Unmarshal for keys viper has
	// never seen, so every scalar key is bound explicitly.
	for _, key := range []string{
		"server.listen",
		"server.auth_secret",
		"server.auth_token",
		"server.cors_origins",
		"database.path",
		"chat.default_model",
		"chat.max_tool_rounds",
		"chat.show_tool_calls",
		"chat.tool_models",
		"chat.vision_models",
		"chat.system_message_models",
		"chat.system_message",
		"mcp.url",
		"mcp.auth_token",
		"mcp.timeout",
		"mcp.tools_cache_ttl",
		"tools.python_command",
		"tools.search_api_key",
		"tools.search_cx",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ModelNames returns the configured model names, sorted.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
