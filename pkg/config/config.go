package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/threadline/backend/internal/logging"
)

// Config holds the application configuration. Keys map 1:1 to upper-case
// environment variables (mongo_uri <- MONGO_URI).
type Config struct {
	Port        string `koanf:"port"`
	Env         string `koanf:"env"`
	MetricsPort string `koanf:"metrics_port"`

	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	PostgresConnStr string `koanf:"postgres_conn_str"`

	RedisAddr      string        `koanf:"redis_addr"` // empty disables the author cache
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	AuthorCacheTTL time.Duration `koanf:"author_cache_ttl"`

	JWTSecret               string `koanf:"jwt_secret"`
	FirebaseCredentialsPath string `koanf:"firebase_credentials_path"` // empty disables Firebase identity

	MinioEndpoint  string `koanf:"minio_endpoint"`
	MinioAccessKey string `koanf:"minio_access_key"`
	MinioSecretKey string `koanf:"minio_secret_key"`
	MinioBucket    string `koanf:"minio_bucket"`
	MinioUseSSL    bool   `koanf:"minio_use_ssl"`
	MediaBaseURL   string `koanf:"media_base_url"`

	FeedDefaultLimit int           `koanf:"feed_default_limit"`
	FeedMaxLimit     int           `koanf:"feed_max_limit"`
	EditWindow       time.Duration `koanf:"edit_window"` // 0 disables edits
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	MaxUploadBytes   int64         `koanf:"max_upload_bytes"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaultConfig() Config {
	return Config{
		Port:             "8080",
		Env:              "development",
		MetricsPort:      "9090",
		MongoDatabase:    "socialmedia",
		AuthorCacheTTL:   time.Minute,
		MinioEndpoint:    "localhost:9000",
		MinioBucket:      "social-network",
		MediaBaseURL:     "http://localhost:9000/social-network",
		FeedDefaultLimit: 10,
		FeedMaxLimit:     20,
		EditWindow:       30 * time.Minute,
		RequestTimeout:   15 * time.Second,
		MaxUploadBytes:   40 << 20,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load reads .env (if present) into the environment, then layers the
// environment over the built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Msg("No .env file found, assuming environment variables are set.")
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.FeedMaxLimit < 1 {
		return fmt.Errorf("FEED_MAX_LIMIT must be positive, got %d", c.FeedMaxLimit)
	}
	if c.FeedDefaultLimit < 1 || c.FeedDefaultLimit > c.FeedMaxLimit {
		return fmt.Errorf("FEED_DEFAULT_LIMIT must be within 1..%d, got %d", c.FeedMaxLimit, c.FeedDefaultLimit)
	}
	if c.EditWindow < 0 {
		return fmt.Errorf("EDIT_WINDOW must not be negative")
	}
	return nil
}
