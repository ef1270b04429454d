package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Embedded zone database so ALERT_TIMEZONE resolves in scratch images.
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	AppURL          string

	// Geocoding.
	GeocoderBaseURL     string
	GeocoderUserAgent   string
	GeocoderTimeout     time.Duration
	GeocoderMinInterval time.Duration
	GeocoderCacheSize   int
	DefaultRegionSuffix string
	RegionTokens        []string

	// Alert delivery.
	AlertLocation         *time.Location
	AlertConcurrency      int
	TelegramBotToken      string
	TelegramAPIURL        string
	TelegramChannelID     string
	TelegramAdminIDs      []string
	TelegramWebhookSecret string
	TelegramTimeout       time.Duration
	MattermostWebhookURL  string

	// Storage. Empty values select the in-process stores.
	DatabaseURL    string
	RedisAddr      string
	RedisKeyPrefix string

	// Report feed.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaReportTopic string
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	minInterval, err := parseDuration("GEOCODER_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	if minInterval < time.Second {
		return nil, errors.New("GEOCODER_MIN_INTERVAL must be at least 1s")
	}
	cacheSize, err := parsePositiveInt("GEOCODER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("ALERT_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	telegramTimeout, err := parseDuration("TELEGRAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("ALERT_TIMEZONE", "America/Chicago"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE: %w", err)
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		AppURL:          sharedcfg.EnvOrDefault("APP_URL", "http://localhost:3000"),

		GeocoderBaseURL:     sharedcfg.EnvOrDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:   sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "incident-alert-service/1.0"),
		GeocoderTimeout:     geocoderTimeout,
		GeocoderMinInterval: minInterval,
		GeocoderCacheSize:   cacheSize,
		DefaultRegionSuffix: sharedcfg.EnvOrDefault("DEFAULT_REGION_SUFFIX", ", Minneapolis, MN"),
		RegionTokens:        parseList(sharedcfg.EnvOrDefault("REGION_TOKENS", "MN,Minnesota")),

		AlertLocation:         loc,
		AlertConcurrency:      concurrency,
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:        sharedcfg.EnvOrDefault("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramChannelID:     os.Getenv("TELEGRAM_CHANNEL_ID"),
		TelegramAdminIDs:      parseList(os.Getenv("TELEGRAM_ADMIN_IDS")),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramTimeout:       telegramTimeout,
		MattermostWebhookURL:  os.Getenv("MATTERMOST_WEBHOOK_URL"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisKeyPrefix: sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "incident-alerts"),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "incident-reports"),
	}

	if cfg.GeocoderUserAgent == "" {
		return nil, errors.New("GEOCODER_USER_AGENT is required")
	}
	if cfg.TelegramChannelID != "" && !cfg.TelegramEnabled() {
		return nil, errors.New("TELEGRAM_CHANNEL_ID is set but TELEGRAM_BOT_TOKEN is not")
	}
	for _, id := range cfg.TelegramAdminIDs {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_IDS entry %q", id)
		}
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaReportTopic == "" {
			return nil, errors.New("KAFKA_REPORT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
