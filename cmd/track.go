package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/internal/tracking"
	trackingRedis "github.com/frahmantamala/kit-checkout/internal/tracking/redis"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:       "track [InitiateCheckout|Purchase]",
	Short:     "Fire a funnel event",
	Long:      `Send a funnel event through the tracking emitter and wait until it is delivered or abandoned`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(tracking.EventInitiateCheckout), string(tracking.EventPurchase)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrack(cmd.Context(), tracking.EventName(args[0]))
	},
}

var (
	trackKit     string
	trackOrderID string
	trackTimeout time.Duration
)

func runTrack(ctx context.Context, name tracking.EventName) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	setupLogger(config)
	lg := logger.LoggerWrapper()

	kits, err := product.KitsFromConfig(config.Kits)
	if err != nil {
		return err
	}
	catalog := product.NewService(product.NewCatalogRepository(kits), lg)

	kit, err := catalog.Default()
	if trackKit != "" {
		kit, err = catalog.ByID(trackKit)
	}
	if err != nil {
		return fmt.Errorf("kit %q: %w", trackKit, err)
	}

	if config.Redis.URL != "" {
		client, err := trackingRedis.NewClientFromURL(ctx, config.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		return emitAndDrain(ctx, initTracker(config.Tracking, client, lg), name, kit)
	}
	return emitAndDrain(ctx, initTracker(config.Tracking, nil, lg), name, kit)
}

func emitAndDrain(ctx context.Context, tracker tracking.Tracker, name tracking.EventName, kit *product.Kit) error {
	lg := logger.LoggerWrapper()
	if _, ok := tracker.(tracking.NoopTracker); ok {
		lg.Warn("tracking is disabled, nothing will be sent")
	}

	var ev tracking.Event
	switch name {
	case tracking.EventInitiateCheckout:
		ev = tracking.NewInitiateCheckout(kit.Price, kit.ID, kit.Title, trackOrderID)
	case tracking.EventPurchase:
		ev = tracking.NewPurchase(kit.Price, kit.ID, kit.Title, trackOrderID)
	}

	lg.Info("emitting event", "event", ev.Name, "kit", kit.ID, "order_id", ev.OrderID)
	tracker.Emit(ctx, ev)

	drainCtx, cancel := context.WithTimeout(ctx, trackTimeout)
	defer cancel()
	if err := tracker.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("event not drained: %w", err)
	}
	return nil
}

func init() {
	trackCmd.Flags().StringVar(&trackKit, "kit", "", "Kit id (defaults to the main kit)")
	trackCmd.Flags().StringVar(&trackOrderID, "order-id", "", "Payment id; scopes InitiateCheckout and keys Purchase")
	trackCmd.Flags().DurationVar(&trackTimeout, "timeout", time.Minute, "How long to wait for delivery")

	rootCmd.AddCommand(trackCmd)
}
