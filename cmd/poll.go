package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/kit-checkout/internal/checkout"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/poller"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll [payment-id]",
	Short: "Wait for an existing payment to finish",
	Long:  `Poll the checkout API until the payment is approved or rejected`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll(cmd.Context(), args[0])
	},
}

func runPoll(ctx context.Context, paymentID string) error {
	lg := logger.LoggerWrapper()
	client := checkout.NewClient(apiBaseURL, 0, lg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("polling payment", "payment_id", paymentID, "interval", pollInterval, "api_url", apiBaseURL)

	check := func(ctx context.Context) (mp.PaymentStatus, error) {
		resp, err := client.CheckPayment(ctx, paymentID)
		if err != nil {
			return "", err
		}
		return resp.Status, nil
	}
	terminal := func(s mp.PaymentStatus) bool {
		return s == mp.StatusApproved || s == mp.StatusRejected
	}

	status, err := poller.Until(ctx, pollInterval, check, terminal,
		poller.OnError[mp.PaymentStatus](func(attempt int, err error) {
			lg.Warn("status check failed, will retry", "payment_id", paymentID, "attempt", attempt, "error", err)
		}),
		poller.OnStatus[mp.PaymentStatus](func(attempt int, status mp.PaymentStatus) {
			lg.Info("status checked", "payment_id", paymentID, "attempt", attempt, "status", status)
		}),
	)
	if err != nil {
		return fmt.Errorf("stopped polling payment %s: %w", paymentID, err)
	}

	fmt.Fprintf(os.Stdout, "Pagamento %s: %s\n", paymentID, status)
	return nil
}

func init() {
	pollCmd.Flags().StringVar(&apiBaseURL, "api-url", "http://localhost:3000", "Checkout API base URL")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", checkout.DefaultPollInterval, "Status check interval")

	rootCmd.AddCommand(pollCmd)
}
