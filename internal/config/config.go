package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/calder-ai/relay/pkg/api"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Backends  []BackendConfig `mapstructure:"backends"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Models    ModelRoles      `mapstructure:"models"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type StoreConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// BackendConfig describes one registered chat-completion backend.
type BackendConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Type    string `mapstructure:"type"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"api_key"`

	DefaultModel string   `mapstructure:"default_model" validate:"required"`
	Models       []string `mapstructure:"models"` // may contain the wildcard "*"

	// Lower priority is tried first on cross-backend failover.
	Priority int `mapstructure:"priority"`

	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	Enabled        bool `mapstructure:"enabled"`

	Descriptors []api.ModelDescriptor `mapstructure:"descriptors"`
}

// RoutingConfig carries every scorer coefficient and the rule list.
// All of these are operator-tunable; none are hard-coded in the scorer.
type RoutingConfig struct {
	Auto             bool `mapstructure:"auto"`
	PerformanceFirst bool `mapstructure:"performance_first"`

	BaseScore      int `mapstructure:"base_score"`
	LengthWeight   int `mapstructure:"length_weight"`
	CodeBlockScore int `mapstructure:"code_block_score"`
	ToolCallScore  int `mapstructure:"tool_call_score"`
	MultiTurnScore int `mapstructure:"multi_turn_score"`

	Rules []RuleConfig `mapstructure:"rules"`
}

// RuleConfig is a single keyword/length routing rule. A zero bound means
// the bound is not applied.
type RuleConfig struct {
	Keywords  []string `mapstructure:"keywords"`
	MinLength int      `mapstructure:"min_length"`
	MaxLength int      `mapstructure:"max_length"`
	Tier      string   `mapstructure:"tier"`
	Priority  int      `mapstructure:"priority"`
}

// ModelRoles holds the designated `backend/model` refs for each role.
type ModelRoles struct {
	Chat   string `mapstructure:"chat"`
	Vision string `mapstructure:"vision"`
	Coder  string `mapstructure:"coder"`
	Intent string `mapstructure:"intent"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	}

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.dsn", "file:relay.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("routing.auto", true)
	v.SetDefault("routing.performance_first", false)
	v.SetDefault("routing.base_score", 10)
	v.SetDefault("routing.length_weight", 2)
	v.SetDefault("routing.code_block_score", 15)
	v.SetDefault("routing.tool_call_score", 15)
	v.SetDefault("routing.multi_turn_score", 2)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys declared as ENV:VAR_NAME indirections.
	for i, b := range cfg.Backends {
		if strings.HasPrefix(b.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(b.APIKey, "ENV:")
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			cfg.Backends[i].APIKey = val
		}
	}

	// Resolve descriptor tier names once, at the edge.
	for i := range cfg.Backends {
		for j := range cfg.Backends[i].Descriptors {
			d := &cfg.Backends[i].Descriptors[j]
			d.Tier = api.ParseTier(d.TierName)
		}
	}

	return &cfg, nil
}
