package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kit-checkout",
	Short: "Kit Checkout",
	Long:  `PIX checkout for digital kits: payment creation, status polling, webhooks and funnel tracking.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// envBindings are the deployment variables read without the ENV_ prefix.
var envBindings = map[string]string{
	"environment":              "APP_ENV",
	"http_server.port":         "PORT",
	"http_server.public_host":  "VERCEL_URL",
	"mercadopago.access_token": "MERCADOPAGO_ACCESS_TOKEN",
	"tracking.pixel_id":        "FB_PIXEL_ID",
	"redis.url":                "REDIS_URL",
}

func loadConfig(path string) (*internal.Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == internal.EnvProduction || os.Getenv("DOCKER_ENV") == "true" {
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}
	if err := v.BindEnv("http_server.base_url", "BASE_URL", "NEXTAUTH_URL"); err != nil {
		return nil, fmt.Errorf("error binding BASE_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := internal.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return cfg, nil
}

func setupLogger(cfg *internal.Config) {
	logging := cfg.Observability.Logging
	format := logging.Format
	if format == "" && cfg.IsProduction() {
		format = "json"
	}
	logger.Configure(format, logger.ParseLevel(logging.Level))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory holding config.yml")

	rootCmd.AddCommand(httpServerCmd)
}
