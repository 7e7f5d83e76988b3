package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingAPIKey        = errors.New("YouTube API key is required")
	ErrUnknownStorageDriver = errors.New("unknown storage driver")
	ErrMissingDatabaseURL   = errors.New("database URL is required")
)

// Storage drivers
const (
	DriverMemory      = "memory"
	DriverSQLite      = "sqlite"
	DriverPostgres    = "postgres"
	DriverSQLiteCloud = "sqlitecloud"
)

// MaxSyncVideos bounds the videos summarized by one sync
const MaxSyncVideos = 10

// Config holds the application configuration
type Config struct {
	Port          string `yaml:"port"`
	YouTubeAPIKey string `yaml:"youtube_api_key"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	StorageDriver string `yaml:"storage_driver"`
	DatabaseURL   string `yaml:"database_url"`
	RedisURL      string `yaml:"redis_url"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURL  string `yaml:"google_redirect_url"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	SummaryRetryDelay    time.Duration `yaml:"summary_retry_delay"`
	SummaryRatePerMinute int           `yaml:"summary_rate_per_minute"`
	SyncMaxVideos        int           `yaml:"sync_max_videos"`
	SyncVideosPerChannel int           `yaml:"sync_videos_per_channel"`
	SyncTimeout          time.Duration `yaml:"sync_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:                 "8080",
		OpenAIModel:          "gpt-3.5-turbo",
		StorageDriver:        DriverMemory,
		AllowedOrigins:       []string{"http://localhost:3000"},
		SummaryRetryDelay:    2 * time.Second,
		SummaryRatePerMinute: 30,
		SyncMaxVideos:        10,
		SyncVideosPerChannel: 5,
		SyncTimeout:          5 * time.Minute,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load loads the configuration from the optional CONFIG_FILE and then from
// environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.YouTubeAPIKey, "YOUTUBE_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAIModel, "OPENAI_MODEL")
	setString(&c.StorageDriver, "STORAGE_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	if err := setDuration(&c.SummaryRetryDelay, "SUMMARY_RETRY_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&c.SyncTimeout, "SYNC_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.SummaryRatePerMinute, "SUMMARY_RATE_PER_MINUTE"); err != nil {
		return err
	}
	if err := setInt(&c.SyncMaxVideos, "SYNC_MAX_VIDEOS"); err != nil {
		return err
	}
	return setInt(&c.SyncVideosPerChannel, "SYNC_VIDEOS_PER_CHANNEL")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.YouTubeAPIKey == "" {
		return fmt.Errorf("%w: YOUTUBE_API_KEY environment variable is not set", ErrMissingAPIKey)
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverSQLiteCloud:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL must be set for driver %q", ErrMissingDatabaseURL, c.StorageDriver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, c.StorageDriver)
	}

	if c.SyncMaxVideos <= 0 || c.SyncVideosPerChannel <= 0 {
		return fmt.Errorf("sync limits must be positive (max videos %d, per channel %d)", c.SyncMaxVideos, c.SyncVideosPerChannel)
	}
	if c.SyncMaxVideos > MaxSyncVideos {
		return fmt.Errorf("sync max videos %d is above the limit of %d", c.SyncMaxVideos, MaxSyncVideos)
	}
	return nil
}

// AuthEnabled reports whether Google sign-in is configured
func (c *Config) AuthEnabled() bool {
	return c.GoogleClientID != ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
