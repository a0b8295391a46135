package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
)

// Config represents the hearth server configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Providers ProviderConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"300"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// AuthConfig contains identity resolution settings. AllowAnonymous controls
// whether unauthenticated users may request completions; when they do,
// conversation persistence is skipped entirely.
type AuthConfig struct {
	AllowAnonymous bool `env:"AUTH_ALLOW_ANONYMOUS" envDefault:"false"`
}

// RedisConfig contains the conversation store connection settings. An empty
// Addr selects the in-memory store instead.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// EndpointConfig is one official OpenAI-compatible vendor endpoint.
type EndpointConfig struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL"`
}

// FamilyModels holds per-family model name remappings for a shared endpoint:
// the name a family resolves to at the aggregator or hosted tier may differ
// from the name used at the official tier.
type FamilyModels struct {
	DeepSeek string `env:"DEEPSEEK_MODEL"`
	OpenAI   string `env:"OPENAI_MODEL"`
	Grok     string `env:"GROK_MODEL"`
	Gemini   string `env:"GEMINI_MODEL"`
	Claude   string `env:"CLAUDE_MODEL"`
}

// AggregatorConfig is the shared OpenAI-compatible aggregator endpoint used
// as the second tier for every model family.
type AggregatorConfig struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`
	Models  FamilyModels
}

// HostedConfig is the generic inference-hosting endpoint used as the final,
// keyless fallback tier. It has no native streaming.
type HostedConfig struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`
	Models  FamilyModels
}

// ProviderConfig contains every tier's endpoint configuration, read once at
// startup. Absent credentials are a valid, expected state and trigger
// tier-skip at dispatch time.
type ProviderConfig struct {
	DeepSeek   EndpointConfig   `envPrefix:"DEEPSEEK_"`
	OpenAI     EndpointConfig   `envPrefix:"OPENAI_"`
	Grok       EndpointConfig   `envPrefix:"GROK_"`
	Gemini     EndpointConfig   `envPrefix:"GEMINI_"`
	Claude     EndpointConfig   `envPrefix:"CLAUDE_"`
	Aggregator AggregatorConfig `envPrefix:"AGGREGATOR_"`
	Hosted     HostedConfig     `envPrefix:"HOSTED_"`

	DefaultModel string `env:"DEFAULT_MODEL"    envDefault:"deepseek"`
	Timeout      int    `env:"PROVIDER_TIMEOUT" envDefault:"120"` // seconds, per tier attempt
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*AuthConfig
	*RedisConfig
	*ProviderConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Auth,
		&cfg.Redis,
		&cfg.Providers,
	}
}
