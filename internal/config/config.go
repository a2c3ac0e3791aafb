package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"visado/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Email      EmailConfig      `yaml:"email"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Booking    BookingConfig    `yaml:"booking"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PaymentsConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
	Currency      string `yaml:"currency"`
}

type CalendarConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Timezone     string `yaml:"timezone"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Owner    string `yaml:"owner"`
}

type ClassifierConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type BookingConfig struct {
	WindowDays      int           `yaml:"window_days"`
	SlotTimes       []string      `yaml:"slot_times"`
	SlotDuration    int           `yaml:"slot_duration"`
	DefaultPrice    float64       `yaml:"default_price"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	RateLimitEvents int           `yaml:"rate_limit_events"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

type APIConfig struct {
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; env vars may come from the environment itself.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Payments.SecretKey == "" || c.Payments.SecretKey == "YOUR_STRIPE_KEY_HERE" {
		return errors.New("payments secret key is required")
	}

	if c.Payments.WebhookSecret == "" {
		return errors.New("payments webhook secret is required")
	}

	if c.Email.Enabled && c.Email.Host == "" {
		return errors.New("email.host is required when email is enabled")
	}

	for _, ts := range c.Booking.SlotTimes {
		if _, err := time.Parse("15:04", ts); err != nil {
			return fmt.Errorf("invalid slot time %q: %w", ts, err)
		}
	}

	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Calendar.Timezone, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Payments.BaseURL == "" {
		c.Payments.BaseURL = "http://localhost:3000"
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "eur"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = models.DefaultTimezone
	}
	if c.Classifier.URL == "" {
		c.Classifier.URL = "http://localhost:11434"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "qwen2.5:0.5b"
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 30 * time.Second
	}
	if c.Booking.WindowDays == 0 {
		c.Booking.WindowDays = models.DefaultAvailabilityWindow
	}
	if len(c.Booking.SlotTimes) == 0 {
		c.Booking.SlotTimes = append([]string(nil), models.FallbackSlotTimes...)
	}
	if c.Booking.SlotDuration == 0 {
		c.Booking.SlotDuration = models.DefaultSlotDurationMinutes
	}
	if c.Booking.DefaultPrice == 0 {
		c.Booking.DefaultPrice = models.DefaultSlotPriceEUR
	}
	if c.Booking.SessionTTL == 0 {
		c.Booking.SessionTTL = time.Hour
	}
	if c.Booking.RateLimitEvents == 0 {
		c.Booking.RateLimitEvents = 20
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = time.Minute
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
