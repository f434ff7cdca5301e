package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/internal/core/events"
	"github.com/frahmantamala/kit-checkout/internal/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/payment"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/internal/tracking"
	trackingRedis "github.com/frahmantamala/kit-checkout/internal/tracking/redis"
	"github.com/frahmantamala/kit-checkout/internal/transport"
	"github.com/frahmantamala/kit-checkout/internal/transport/middleware"
	"github.com/frahmantamala/kit-checkout/internal/transport/rest"
	"github.com/frahmantamala/kit-checkout/internal/transport/swagger"
	"github.com/frahmantamala/kit-checkout/pkg/logger"

	"github.com/go-chi/chi"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for the checkout API and the payment webhook`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	Router  *chi.Mux
	Logger  *slog.Logger
	Bus     *events.EventBus
	Tracker tracking.Tracker
	Redis   *goredis.Client
}

func startHTTPServer() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(config)

	deps, err := InitializeDependencies(context.Background(), config, logger.LoggerWrapper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "base_url", deps.Config.ResolveBaseURL())

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Shutdown(ctx)
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// Shutdown drains in-flight event handlers, then the tracking queue they feed.
func (d *Dependencies) Shutdown(ctx context.Context) {
	if err := d.Bus.Wait(ctx); err != nil {
		d.Logger.Error("Event bus drain error", "error", err)
	}
	if err := d.Tracker.Shutdown(ctx); err != nil {
		d.Logger.Error("Tracking shutdown error", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
}

// InitializeDependencies builds the whole service graph for config.
func InitializeDependencies(ctx context.Context, config *internal.Config, lg *slog.Logger) (*Dependencies, error) {
	if _, err := swagger.Load(ctx); err != nil {
		return nil, err
	}

	kits, err := product.KitsFromConfig(config.Kits)
	if err != nil {
		return nil, fmt.Errorf("failed to load kits: %w", err)
	}
	productService := product.NewService(product.NewCatalogRepository(kits), lg)

	var redisClient *goredis.Client
	if config.Redis.URL != "" {
		redisClient, err = trackingRedis.NewClientFromURL(ctx, config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	tracker := initTracker(config.Tracking, redisClient, lg)

	bus := events.NewEventBus(lg)
	payment.NewEventHandler(tracker, lg).RegisterEventHandlers(bus)

	mpClient := mercadopago.NewClient(mercadopago.Config{
		APIURL:      config.MercadoPago.APIURL,
		AccessToken: config.MercadoPago.AccessToken,
		Timeout:     config.MercadoPago.Timeout,
	}, lg)

	paymentConfig := payment.Config{MaskUpstreamErrors: config.Server.MaskUpstreamErrors}
	if config.MercadoPago.NotificationsEnabled {
		paymentConfig.NotificationURL = config.NotificationURL()
	}
	paymentService := payment.NewService(mpClient, productService, bus, paymentConfig, lg)

	base := transport.NewBaseHandler(lg)
	base.Verbose = config.IsDevelopment()

	checks := map[string]rest.CheckFunc{
		"mercadopago": func(ctx context.Context) error { return mpClient.CheckCredentials(false) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return trackingRedis.HealthCheck(ctx, redisClient) }
	}

	opts := rest.Options{
		AllowedOrigins: splitOrigins(config.Server.AllowedOrigins),
		TrustProxy:     config.Server.TrustProxy,
	}
	if config.Server.RateLimit.Enabled {
		opts.RateLimiter = middleware.NewRateLimiter(config.Server.RateLimit.RequestsPerMinute, config.Server.RateLimit.Burst)
	}
	if config.Observability.Metrics.Enabled {
		opts.MetricsPath = config.Observability.Metrics.Path
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Kits:    product.NewHandler(base, productService),
		Payment: payment.NewHandler(base, paymentService, productService),
		Webhook: payment.NewWebhookHandler(base, paymentService),
		Health:  rest.NewHealthHandler(checks),
	}, opts, lg)

	return &Dependencies{
		Config:  config,
		Router:  router,
		Logger:  lg,
		Bus:     bus,
		Tracker: tracker,
		Redis:   redisClient,
	}, nil
}

// initTracker returns a no-op tracker when tracking is off or no pixel is configured.
func initTracker(cfg internal.TrackingConfig, redisClient *goredis.Client, lg *slog.Logger) tracking.Tracker {
	if !cfg.Enabled || cfg.PixelID == "" {
		lg.Info("tracking disabled", "enabled", cfg.Enabled, "pixel_configured", cfg.PixelID != "")
		return tracking.NoopTracker{}
	}

	var dedup tracking.DedupStore
	if redisClient != nil {
		dedup = trackingRedis.NewDedupStore(redisClient, trackingRedis.DefaultKeyPrefix, cfg.DedupTTL)
	} else {
		dedup = tracking.NewMemoryDedupStore(cfg.DedupCapacity, cfg.DedupTTL)
	}

	client := tracking.NewPixelClient(tracking.PixelConfig{
		PixelID:   cfg.PixelID,
		BeaconURL: cfg.BeaconURL,
		SourceURL: cfg.SourceURL,
		Timeout:   cfg.Timeout,
	}, lg)

	retry := tracking.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	return tracking.NewEmitter(client, dedup, tracking.EmitterConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Retry:     retry,
		Policies: map[tracking.EventName]tracking.RetryPolicy{
			tracking.EventInitiateCheckout: tracking.CheckoutRetryPolicy(retry),
		},
		ContentCategory: cfg.ContentCategory,
	}, lg)
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
