package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Store configuration
	Store StoreConfig `mapstructure:"store"`

	// Bus configuration
	Bus BusConfig `mapstructure:"bus"`

	// LLM configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Community configuration
	Community CommunityConfig `mapstructure:"community"`

	// Query configuration
	Query QueryConfig `mapstructure:"query"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StoreConfig holds graph and document store configuration
type StoreConfig struct {
	Driver               string `mapstructure:"driver"` // badger, memory, neo4j
	Path                 string `mapstructure:"path"`
	URI                  string `mapstructure:"uri"`
	Username             string `mapstructure:"username"`
	Password             string `mapstructure:"password"`
	Database             string `mapstructure:"database"`
	NodeCollection       string `mapstructure:"nodes_coll"`
	EdgeCollection       string `mapstructure:"edges_coll"`
	CommunityCollection  string `mapstructure:"comm_coll"`
	RendezvousCollection string `mapstructure:"intermediate_coll"`
	Strict               bool   `mapstructure:"strict"`
}

// BusConfig holds message bus configuration
type BusConfig struct {
	Driver        string `mapstructure:"driver"` // nats, memory
	URL           string `mapstructure:"url"`
	MapTopic      string `mapstructure:"map_topic"`
	ReportTopic   string `mapstructure:"report_topic"`
	Group         string `mapstructure:"group"`
	MaxReconnects int    `mapstructure:"max_reconnects"`
	ReconnectWait int    `mapstructure:"reconnect_wait"` // in seconds
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// CommunityConfig holds community detection configuration
type CommunityConfig struct {
	MaxClusterSize int   `mapstructure:"max_cluster_size"`
	MaxLevels      int   `mapstructure:"max_levels"`
	RandomSeed     int64 `mapstructure:"random_seed"`
}

// QueryConfig holds query orchestrator configuration
type QueryConfig struct {
	WarmUpSeconds   int     `mapstructure:"warm_up_seconds"`
	IntervalSeconds int     `mapstructure:"interval_seconds"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	CompletionRatio float64 `mapstructure:"completion_ratio"`
	ScoreThreshold  float64 `mapstructure:"score_threshold"`
	MaxResponses    int     `mapstructure:"max_responses"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ParquetPath string `mapstructure:"parquet_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Store defaults
	viper.SetDefault("store.driver", "badger")
	viper.SetDefault("store.path", "./graphrag_db")
	viper.SetDefault("store.nodes_coll", "nodes")
	viper.SetDefault("store.edges_coll", "edges")
	viper.SetDefault("store.comm_coll", "communities")
	viper.SetDefault("store.intermediate_coll", "intermediate_answers")
	viper.SetDefault("store.strict", false)

	// Bus defaults
	viper.SetDefault("bus.driver", "nats")
	viper.SetDefault("bus.url", "nats://127.0.0.1:4222")
	viper.SetDefault("bus.map_topic", "query.map")
	viper.SetDefault("bus.report_topic", "community.reports")
	viper.SetDefault("bus.group", "workers")
	viper.SetDefault("bus.max_reconnects", 10)
	viper.SetDefault("bus.reconnect_wait", 2)

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.max_retries", 3)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)

	// Community defaults
	viper.SetDefault("community.max_cluster_size", 10)
	viper.SetDefault("community.max_levels", 10)
	viper.SetDefault("community.random_seed", 0xDEADBEEF)

	// Query defaults
	viper.SetDefault("query.warm_up_seconds", 5)
	viper.SetDefault("query.interval_seconds", 10)
	viper.SetDefault("query.max_attempts", 6)
	viper.SetDefault("query.completion_ratio", 0.9)
	viper.SetDefault("query.score_threshold", 0)
	viper.SetDefault("query.max_responses", 10)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 2)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.graphrag/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = apiKey
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
	}

	// Store settings
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		config.Store.Driver = driver
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Store.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Store.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Store.Password = pass
	}

	// Bus settings
	if url := os.Getenv("NATS_URL"); url != "" {
		config.Bus.URL = url
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
