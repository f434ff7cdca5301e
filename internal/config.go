package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"http_server"`
	MercadoPago   MercadoPagoConfig   `mapstructure:"mercadopago"`
	Tracking      TrackingConfig      `mapstructure:"tracking"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kits          []KitConfig         `mapstructure:"kits"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port               int             `mapstructure:"port"`
	BaseURL            string          `mapstructure:"base_url"`
	PublicHost         string          `mapstructure:"public_host"`
	AllowedOrigins     string          `mapstructure:"allowed_origins"`
	TrustProxy         bool            `mapstructure:"trust_proxy"`
	MaskUpstreamErrors bool            `mapstructure:"mask_upstream_errors"`
	ReadHeaderTimeout  time.Duration   `mapstructure:"read_header_timeout"`
	ReadTimeout        time.Duration   `mapstructure:"read_timeout"`
	IdleTimeout        time.Duration   `mapstructure:"idle_timeout"`
	WriteTimeout       time.Duration   `mapstructure:"write_timeout"`
	RateLimit          RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type MercadoPagoConfig struct {
	AccessToken          string        `mapstructure:"access_token"`
	APIURL               string        `mapstructure:"api_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	NotificationsEnabled bool          `mapstructure:"notifications_enabled"`
}

type TrackingConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	PixelID         string        `mapstructure:"pixel_id"`
	BeaconURL       string        `mapstructure:"beacon_url"`
	SourceURL       string        `mapstructure:"source_url"`
	ContentCategory string        `mapstructure:"content_category"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	DedupTTL        time.Duration `mapstructure:"dedup_ttl"`
	DedupCapacity   int           `mapstructure:"dedup_capacity"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type KitConfig struct {
	ID                  string `mapstructure:"id"`
	Title               string `mapstructure:"title"`
	Description         string `mapstructure:"description"`
	Category            string `mapstructure:"category"`
	Price               string `mapstructure:"price"`
	ReferencePrefix     string `mapstructure:"reference_prefix"`
	StatementDescriptor string `mapstructure:"statement_descriptor"`
	DeliveryURL         string `mapstructure:"delivery_url"`
	Premium             bool   `mapstructure:"premium"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig holds the values used when neither a config file nor the environment set them.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:               3000,
			AllowedOrigins:     "*",
			MaskUpstreamErrors: true,
			ReadHeaderTimeout:  5 * time.Second,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
				Burst:             10,
			},
		},
		MercadoPago: MercadoPagoConfig{
			APIURL:               "https://api.mercadopago.com",
			Timeout:              30 * time.Second,
			NotificationsEnabled: true,
		},
		Tracking: TrackingConfig{
			Enabled:         true,
			BeaconURL:       "https://www.facebook.com/tr/",
			ContentCategory: "Estudos Bíblicos",
			Timeout:         5 * time.Second,
			Workers:         2,
			QueueSize:       100,
			DedupTTL:        24 * time.Hour,
			DedupCapacity:   10000,
			Retry: RetryConfig{
				MaxAttempts: 5,
				BaseDelay:   time.Second,
				MaxDelay:    5 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// LoadConfigFromEnv builds the configuration for container deployments, where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Environment = getEnv("APP_ENV", cfg.Environment)

	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("BASE_URL", getEnv("NEXTAUTH_URL", ""))
	cfg.Server.PublicHost = getEnv("VERCEL_URL", "")
	cfg.Server.AllowedOrigins = getEnv("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.TrustProxy = getEnvAsBool("TRUST_PROXY", cfg.Server.TrustProxy)
	cfg.Server.MaskUpstreamErrors = getEnvAsBool("MASK_UPSTREAM_ERRORS", cfg.Server.MaskUpstreamErrors)
	cfg.Server.RateLimit.RequestsPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", cfg.Server.RateLimit.RequestsPerMinute)

	cfg.MercadoPago.AccessToken = getEnv("MERCADOPAGO_ACCESS_TOKEN", "")
	cfg.MercadoPago.APIURL = getEnv("MERCADOPAGO_API_URL", cfg.MercadoPago.APIURL)
	cfg.MercadoPago.NotificationsEnabled = getEnvAsBool("MERCADOPAGO_NOTIFICATIONS", cfg.MercadoPago.NotificationsEnabled)

	cfg.Tracking.PixelID = getEnv("FB_PIXEL_ID", "")
	cfg.Tracking.SourceURL = getEnv("TRACKING_SOURCE_URL", "")
	cfg.Tracking.Enabled = getEnvAsBool("TRACKING_ENABLED", cfg.Tracking.Enabled)

	cfg.Redis.URL = getEnv("REDIS_URL", "")

	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	if cfg.Environment == EnvProduction {
		cfg.Observability.Logging.Format = "json"
	}

	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == EnvDevelopment
}

// ResolveBaseURL returns the public origin of this service: an explicit base
// URL wins, then the deployment host in production, then localhost.
func (c *Config) ResolveBaseURL() string {
	baseURL := fmt.Sprintf("http://localhost:%d", c.Server.Port)

	switch {
	case c.Server.BaseURL != "":
		baseURL = c.Server.BaseURL
	case c.IsProduction() && c.Server.PublicHost != "":
		host := strings.TrimPrefix(strings.TrimPrefix(c.Server.PublicHost, "https://"), "http://")
		baseURL = "https://" + host
	}

	return strings.TrimRight(baseURL, "/")
}

// NotificationURL is the webhook target handed to the payment provider.
func (c *Config) NotificationURL() string {
	return c.ResolveBaseURL() + "/api/webhook"
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.MercadoPago.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("mercadopago config: %v", err))
	}

	if err := c.Tracking.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tracking config: %v", err))
	}

	for i, kit := range c.Kits {
		if err := kit.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("kits[%d] config: %v", i, err))
		}
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate_limit.requests_per_minute must be positive when rate limiting is enabled")
	}
	return nil
}

// Validate checks the provider endpoint only. A missing access token is
// reported per request as a configuration error, not at startup.
func (c *MercadoPagoConfig) Validate() error {
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	return nil
}

func (c *TrackingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BeaconURL == "" {
		return errors.New("beacon_url is required when tracking is enabled")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.New("retry.max_delay must be >= retry.base_delay")
	}
	return nil
}

func (c *KitConfig) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Title == "" {
		return errors.New("title is required")
	}
	if c.Price == "" {
		return errors.New("price is required")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch c.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}
