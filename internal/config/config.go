package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the worker.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Tracing   TracingConfig
	Pipeline  PipelineConfig
	Providers ProvidersConfig
}

// ServerConfig holds HTTP server configuration for the api binary.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPort     int
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// StorageConfig holds object storage configuration. An empty endpoint
// disables remote publishing; outputs then fall back to data URIs.
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	PublicBaseURL   string
}

// QueueConfig holds message queue configuration for the worker binary.
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// RedisConfig holds the result-cache configuration. An empty host disables
// the cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// DatabaseConfig holds the job-history database configuration. An empty DSN
// disables history recording.
type DatabaseConfig struct {
	DSN      string
	MaxConns int
}

// TracingConfig holds Jaeger tracing configuration.
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// PipelineConfig holds render pipeline configuration.
type PipelineConfig struct {
	FFmpegPath  string
	FFprobePath string
	ScratchDir  string
}

// ProviderConfig describes one external inference engine. An empty command
// marks the provider unavailable and its stage degrades.
type ProviderConfig struct {
	Command string
	Args    []string
}

// ProvidersConfig holds the neural capability providers.
type ProvidersConfig struct {
	LipSync          ProviderConfig
	LipSyncAlternate ProviderConfig
	FaceRestore      ProviderConfig
	Upscale          ProviderConfig
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads the config file when present and otherwise returns
// the built-in defaults, so the worker can start from environment alone.
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}

	viper.AutomaticEnv()
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "15m")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.metricsPort", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Storage defaults; empty endpoint means data-URI fallback
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("storage.accessKeyID", "")
	viper.SetDefault("storage.secretAccessKey", "")
	viper.SetDefault("storage.bucketName", "personaforge-studio")
	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("storage.useSSL", true)
	viper.SetDefault("storage.publicBaseURL", "")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Redis defaults
	viper.SetDefault("redis.host", "")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "24h")

	// Database defaults
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.maxConns", 5)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "studiopod")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")

	// Pipeline defaults
	viper.SetDefault("pipeline.ffmpegPath", "ffmpeg")
	viper.SetDefault("pipeline.ffprobePath", "ffprobe")
	viper.SetDefault("pipeline.scratchDir", "")

	// Provider defaults; empty commands degrade to ffmpeg fallbacks
	viper.SetDefault("providers.lipSync.command", "")
	viper.SetDefault("providers.lipSyncAlternate.command", "")
	viper.SetDefault("providers.faceRestore.command", "")
	viper.SetDefault("providers.upscale.command", "")
}
