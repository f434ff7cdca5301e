package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/checkout"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/spf13/cobra"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Buy a kit through the checkout API",
	Long:  `Create a PIX payment through the checkout API, print the PIX code and wait until the payment is approved or rejected`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckout(cmd.Context())
	},
}

var (
	checkoutEmail string
	checkoutKit   string
	apiBaseURL    string
	pollInterval  time.Duration
)

func runCheckout(ctx context.Context) error {
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

	kit, path, err := resolveCheckoutKit(catalog, checkoutKit)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := checkout.NewSession(checkout.NewClient(apiBaseURL, 0, lg), lg)
	pix, err := session.Start(ctx, path, checkoutEmail)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	out := os.Stdout
	fmt.Fprintf(out, "%s - R$ %s\n", kit.Title, kit.Price.StringFixed(2))
	fmt.Fprintf(out, "Pagamento %d criado (%s)\n", pix.ID, pix.Status)
	fmt.Fprintf(out, "PIX copia e cola:\n%s\n", pix.QRCode)
	if pix.TicketURL != "" {
		fmt.Fprintf(out, "Link do pagamento: %s\n", pix.TicketURL)
	}
	fmt.Fprintf(out, "Oferta expira em %s\n", checkout.FormatTimeLeft(session.TimeLeft()))

	status, err := session.WaitForPayment(ctx, pollInterval)
	if err != nil {
		return fmt.Errorf("stopped waiting for payment %d: %w", pix.ID, err)
	}

	switch status {
	case checkout.StatusApproved:
		fmt.Fprintln(out, "Pagamento aprovado!")
		if kit.DeliveryURL != "" {
			fmt.Fprintf(out, "Acesse seu kit: %s\n", kit.DeliveryURL)
		}
	case checkout.StatusRejected:
		fmt.Fprintln(out, "Pagamento rejeitado. Por favor, tente novamente.")
	}
	return nil
}

// resolveCheckoutKit maps --kit to the kit and the endpoint that sells it.
func resolveCheckoutKit(catalog *product.Service, id string) (*product.Kit, string, error) {
	switch id {
	case "", "default":
		kit, err := catalog.Default()
		return kit, checkout.GeneratePixPath, err
	case "premium":
		kit, err := catalog.Premium()
		return kit, checkout.GeneratePixPremiumPath, err
	default:
		kit, err := catalog.ByID(id)
		if err != nil {
			return nil, "", fmt.Errorf("kit %q: %w", id, err)
		}
		return kit, checkout.KitPixPath(kit.ID), nil
	}
}

func init() {
	checkoutCmd.Flags().StringVar(&checkoutEmail, "email", "", "Buyer email")
	checkoutCmd.Flags().StringVar(&checkoutKit, "kit", "", `Kit id, "default" or "premium"`)
	checkoutCmd.Flags().StringVar(&apiBaseURL, "api-url", "http://localhost:3000", "Checkout API base URL")
	checkoutCmd.Flags().DurationVar(&pollInterval, "interval", checkout.DefaultPollInterval, "Status check interval")
	_ = checkoutCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(checkoutCmd)
}
