package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Enricher  EnricherConfig
	Cache     CacheConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	Neo4j     Neo4jConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   int
	WriteTimeout  int
	BodyLimit     int
	IsDevelopment bool
}

type SourcesConfig struct {
	// Mode is "live" for network-backed adapters or "fixture" for the YAML stand-ins.
	Mode          string
	TimeoutSec    int
	Timeouts      map[string]int
	Enabled       []string
	FixturesPath  string
	UserAgent     string
	SerpAPIKey    string
	YouTubeAPIKey string
	RedditBaseURL string
}

type EnricherConfig struct {
	// Mode is "static" for the built-in knowledge base or "network" to add MusicBrainz and Wikipedia.
	Mode       string
	TimeoutSec int
}

type CacheConfig struct {
	// Backend is one of memory, redis, sqlite, layered.
	Backend  string
	TTLHours int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type LLMConfig struct {
	Enabled     bool
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// SourceTimeout returns the per-call deadline for a source, falling back to the shared default.
func (c SourcesConfig) SourceTimeout(source string) time.Duration {
	if sec, ok := c.Timeouts[source]; ok && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/gear-detector")
	}

	v.SetEnvPrefix("GEAR_DETECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Sources.Mode {
	case "live", "fixture":
	default:
		return fmt.Errorf("invalid sources.mode %q", c.Sources.Mode)
	}
	switch c.Enricher.Mode {
	case "static", "network":
	default:
		return fmt.Errorf("invalid enricher.mode %q", c.Enricher.Mode)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "sqlite", "layered":
	default:
		return fmt.Errorf("invalid cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttlHours must be positive, got %d", c.Cache.TTLHours)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 60)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.isDevelopment", false)

	v.SetDefault("sources.mode", "live")
	v.SetDefault("sources.timeoutSec", 30)
	v.SetDefault("sources.enabled", []string{"equipboard", "youtube", "gearspace", "reddit", "websearch"})
	v.SetDefault("sources.fixturesPath", "./config/fixtures.yaml")
	v.SetDefault("sources.userAgent", "GearDetectorBot/1.0 (+https://geardetector.com)")
	v.SetDefault("sources.redditBaseURL", "https://www.reddit.com")
	v.SetDefault("sources.serpAPIKey", "")
	v.SetDefault("sources.youTubeAPIKey", "")

	v.SetDefault("enricher.mode", "static")
	v.SetDefault("enricher.timeoutSec", 20)

	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.ttlHours", 90*24)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sqlite.path", "./data/geardetector.db")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 1200)
	v.SetDefault("llm.timeoutSec", 25)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxRequestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
