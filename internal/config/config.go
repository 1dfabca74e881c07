package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`

	// StoreDriver selects where users and messages live: "postgres" or "memory".
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`

	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	MongoURI                string `mapstructure:"MONGO_URI"`
	MongoDB                 string `mapstructure:"MONGO_DB"`
	MongoProductsCollection string `mapstructure:"MONGO_PRODUCTS_COLLECTION"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	TypingStaleAfter   time.Duration `mapstructure:"TYPING_STALE_AFTER"`
	TypingDebounce     time.Duration `mapstructure:"TYPING_DEBOUNCE"`
	UnreadPollInterval time.Duration `mapstructure:"UNREAD_POLL_INTERVAL"`
	UnreadPollJitter   time.Duration `mapstructure:"UNREAD_POLL_JITTER"`

	MessageRatePerMinute float64 `mapstructure:"MESSAGE_RATE_PER_MINUTE"`
	MessageRateBurst     int     `mapstructure:"MESSAGE_RATE_BURST"`

	UploadDir         string `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes    int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	PublicBaseURL     string `mapstructure:"PUBLIC_BASE_URL"`
	AllowedImageHosts string `mapstructure:"ALLOWED_IMAGE_HOSTS"`

	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `mapstructure:"S3_PUBLIC_URL"`
}

var defaults = map[string]any{
	"SERVER_PORT":               "8080",
	"ENV":                       "development",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "console",
	"STORE_DRIVER":              "postgres",
	"DB_HOST":                   "localhost",
	"DB_PORT":                   "5432",
	"DB_USER":                   "reviewhub",
	"DB_PASSWORD":               "reviewhub_dev_password",
	"DB_NAME":                   "reviewhub",
	"REDIS_URL":                 "localhost:6379",
	"REDIS_PASSWORD":            "",
	"MONGO_URI":                 "mongodb://localhost:27017",
	"MONGO_DB":                  "product-reviews",
	"MONGO_PRODUCTS_COLLECTION": "products",
	"JWT_SECRET":                "dev-secret-change-me",
	"CORS_ORIGINS":              "*",
	"TYPING_STALE_AFTER":        "2s",
	"TYPING_DEBOUNCE":           "2s",
	"UNREAD_POLL_INTERVAL":      "0s",
	"UNREAD_POLL_JITTER":        "0s",
	"MESSAGE_RATE_PER_MINUTE":   30.0,
	"MESSAGE_RATE_BURST":        10,
	"UPLOAD_DIR":                "uploads",
	"UPLOAD_MAX_BYTES":          int64(5 << 20),
	"PUBLIC_BASE_URL":           "",
	"ALLOWED_IMAGE_HOSTS":       "res.cloudinary.com,images.unsplash.com,i.imgur.com,cdn.jsdelivr.net,storage.googleapis.com,s3.amazonaws.com",
	"S3_BUCKET":                 "",
	"S3_REGION":                 "auto",
	"S3_ENDPOINT":               "",
	"S3_ACCESS_KEY_ID":          "",
	"S3_SECRET_ACCESS_KEY":      "",
	"S3_PUBLIC_URL":             "",
}

// Load reads configuration with precedence defaults < config file < environment.
// configFile is optional; when empty a ".env" in the working directory is used if present.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && configFile != "" {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TypingStaleAfter <= 0 {
		return errors.New("TYPING_STALE_AFTER must be positive")
	}
	if c.TypingDebounce <= 0 {
		return errors.New("TYPING_DEBOUNCE must be positive")
	}
	// typing senders refresh every half debounce; observers must outlast that gap
	if c.TypingStaleAfter <= c.TypingDebounce/2 {
		return errors.New("TYPING_STALE_AFTER must exceed half of TYPING_DEBOUNCE")
	}
	if c.UnreadPollInterval < 0 || c.UnreadPollJitter < 0 {
		return errors.New("unread poll interval and jitter cannot be negative")
	}
	if c.MessageRatePerMinute <= 0 || c.MessageRateBurst <= 0 {
		return errors.New("message rate and burst must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// ImageHosts returns the trusted image host allowlist.
func (c *Config) ImageHosts() []string {
	return splitList(c.AllowedImageHosts)
}

// Origins returns the allowed CORS origins.
func (c *Config) Origins() []string {
	return splitList(c.CORSOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
