package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/kit-checkout/internal"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/core/events"
	"github.com/frahmantamala/kit-checkout/internal/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/metrics"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/google/uuid"
)

const (
	payerFirstName = "Cliente"
	itemCategoryID = "services"
)

// Gateway is the provider API the service drives.
type Gateway interface {
	CreatePayment(ctx context.Context, req *mp.PaymentRequest, idempotencyKey string) (*mp.Payment, error)
	GetPayment(ctx context.Context, id string) (*mp.Payment, error)
	CheckCredentials(strict bool) error
}

// KitCatalog resolves the kit a payment belongs to.
type KitCatalog interface {
	ByReference(ref string) (*product.Kit, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Config struct {
	// NotificationURL is sent with each payment when set.
	NotificationURL string
	// MaskUpstreamErrors reports provider failures on create with HTTP 200.
	MaskUpstreamErrors bool
}

type Service struct {
	gateway   Gateway
	kits      KitCatalog
	publisher Publisher
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(gateway Gateway, kits KitCatalog, publisher Publisher, config Config, logger *slog.Logger) *Service {
	return &Service{
		gateway:   gateway,
		kits:      kits,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// CreatePixPayment issues one PIX charge for kit. Provider failures come back
// as AppErrors carrying the buyer-facing message; nothing is retried.
func (s *Service) CreatePixPayment(ctx context.Context, kit *product.Kit, email string) (*PaymentResponse, error) {
	now := s.now()
	requestID := internal.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = newRequestID(now)
	}
	log := logger.From(ctx).With("kit_id", kit.ID, "request_id", requestID)

	if err := s.gateway.CheckCredentials(true); err != nil {
		log.Error("access token rejected before provider call", "error", err)
		metrics.PaymentCreated(kit.ID, "config_error")
		return nil, internal.NewConfigError(msgConfigError, err)
	}

	req := s.buildPaymentRequest(kit, email, requestID, now)
	idempotencyKey := fmt.Sprintf("%s-%d-%s", kit.ReferencePrefix, now.UnixMilli(), uuid.NewString())

	start := time.Now()
	payment, err := s.gateway.CreatePayment(ctx, req, idempotencyKey)
	if err != nil {
		appErr := s.createError(err, requestID)
		metrics.ProviderRequest("create", string(appErr.Code), time.Since(start))
		metrics.PaymentCreated(kit.ID, string(appErr.Type))
		log.Error("failed to create payment", "error", err, "code", appErr.Code)
		return nil, appErr
	}
	metrics.ProviderRequest("create", "success", time.Since(start))
	metrics.PaymentCreated(kit.ID, "success")

	log.Info("pix payment created",
		"payment_id", payment.ID,
		"status", payment.Status,
		"external_reference", payment.ExternalReference)

	if payment.ExternalReference == "" {
		payment.ExternalReference = req.ExternalReference
	}
	if payment.TransactionAmount.IsZero() {
		payment.TransactionAmount = req.TransactionAmount
	}

	snapshot := s.snapshot(payment, kit)
	snapshot.PayerEmail = email
	if err := s.publisher.Publish(ctx, events.NewPaymentCreatedEvent(snapshot)); err != nil {
		log.Warn("failed to publish payment created event", "error", err)
	}

	return toPaymentResponse(payment, requestID, kit.KitType()), nil
}

func (s *Service) buildPaymentRequest(kit *product.Kit, email, requestID string, now time.Time) *mp.PaymentRequest {
	lastName, _, _ := strings.Cut(kit.Title, " - ")

	return &mp.PaymentRequest{
		TransactionAmount: kit.Price,
		Description:       kit.Title,
		PaymentMethodID:   mp.PaymentMethodPix,
		Payer: mp.Payer{
			Email:     email,
			FirstName: payerFirstName,
			LastName:  lastName,
		},
		ExternalReference:   kit.ExternalReference(now.UnixMilli()),
		NotificationURL:     s.config.NotificationURL,
		StatementDescriptor: kit.StatementDescriptor,
		Installments:        1,
		BinaryMode:          kit.Premium,
		Metadata: map[string]string{
			"kit_type":       kit.KitType(),
			"customer_email": email,
			"source":         kit.Source(),
			"request_id":     requestID,
		},
		AdditionalInfo: &mp.AdditionalInfo{
			Items: []mp.Item{
				{
					ID:          kit.ID,
					Title:       kit.Title,
					Description: kit.Description,
					CategoryID:  itemCategoryID,
					Quantity:    1,
					UnitPrice:   kit.Price,
				},
			},
		},
	}
}

func (s *Service) createError(err error, requestID string) *internal.AppError {
	var apiErr *mercadopago.APIError
	switch {
	case errors.As(err, &apiErr):
		appErr := providerError(apiErr)
		if s.config.MaskUpstreamErrors {
			return appErr.WithStatus(http.StatusOK)
		}
		return appErr
	case errors.Is(err, mercadopago.ErrInvalidResponse):
		return internal.NewExternalError(msgInvalidResponse, internal.ErrCodeInvalidResponse, http.StatusInternalServerError, err)
	case errors.Is(err, mercadopago.ErrMissingAccessToken), errors.Is(err, mercadopago.ErrMalformedAccessToken):
		return internal.NewConfigError(msgConfigError, err)
	default:
		return internal.NewInternalError(msgUnexpectedCreate, err).
			WithDetails(map[string]string{"request_id": requestID})
	}
}

// CheckPayment looks a payment up for the polling page. Terminal statuses
// are published so fulfillment and tracking can react.
func (s *Service) CheckPayment(ctx context.Context, id string) (*CheckPaymentResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, internal.NewValidationError(msgMissingPaymentID, internal.ErrCodeMissingPaymentID)
	}
	log := logger.From(ctx).With("payment_id", id)

	if err := s.gateway.CheckCredentials(false); err != nil {
		log.Error("access token not configured", "error", err)
		return nil, internal.NewConfigError(msgSystemConfig, err)
	}

	start := time.Now()
	payment, err := s.gateway.GetPayment(ctx, id)
	if err != nil {
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			metrics.ProviderRequest("get", "provider_error", time.Since(start))
			message := apiErr.Message
			if message == "" {
				message = fmt.Sprintf("Erro ao verificar pagamento (%d)", apiErr.StatusCode)
			}
			log.Warn("provider rejected payment lookup", "status", apiErr.StatusCode, "error", err)
			return nil, internal.NewExternalError(message, internal.ProviderErrorCode(apiErr.StatusCode), apiErr.StatusCode, err)
		}
		metrics.ProviderRequest("get", "error", time.Since(start))
		log.Error("failed to check payment", "error", err)
		return nil, internal.NewInternalError(msgCheckInternal, err)
	}
	metrics.ProviderRequest("get", "success", time.Since(start))
	metrics.StatusChecked(string(payment.Status))

	log.Info("payment status checked", "status", payment.Status, "status_detail", payment.StatusDetail)
	s.publishTerminal(ctx, payment)

	return toCheckPaymentResponse(payment), nil
}

// ProcessNotification handles one provider notification. The payload is only
// trusted for the payment id; the payment itself is always re-fetched.
func (s *Service) ProcessNotification(ctx context.Context, n *mp.Notification) (*NotificationResult, error) {
	eventType := n.EventType()
	if eventType != mp.NotificationTypePayment {
		metrics.WebhookReceived(eventType, "ignored")
		logger.From(ctx).Info("ignoring non-payment notification", "type", eventType, "action", n.Action)
		return &NotificationResult{Ignored: true}, nil
	}

	id := strings.TrimSpace(string(n.Data.ID))
	if id == "" {
		metrics.WebhookReceived(eventType, "invalid")
		return nil, internal.NewValidationError(msgMissingPaymentID, internal.ErrCodeMissingPaymentID)
	}
	log := logger.From(ctx).With("payment_id", id, "action", n.Action)

	if err := s.gateway.CheckCredentials(false); err != nil {
		metrics.WebhookReceived(eventType, "config_error")
		log.Error("access token not configured", "error", err)
		return nil, internal.NewConfigError(msgSystemConfig, err)
	}

	start := time.Now()
	payment, err := s.gateway.GetPayment(ctx, id)
	if err != nil {
		metrics.WebhookReceived(eventType, "error")
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			metrics.ProviderRequest("get", "provider_error", time.Since(start))
			log.Warn("provider rejected webhook lookup", "status", apiErr.StatusCode, "error", err)
			return nil, internal.NewExternalError(msgWebhookFetch, internal.ProviderErrorCode(apiErr.StatusCode), apiErr.StatusCode, err)
		}
		metrics.ProviderRequest("get", "error", time.Since(start))
		log.Error("failed to process webhook", "error", err)
		return nil, internal.NewInternalError(msgWebhookInternal, err)
	}
	metrics.ProviderRequest("get", "success", time.Since(start))
	metrics.WebhookReceived(eventType, string(payment.Status))

	switch payment.Status {
	case mp.StatusApproved:
		log.Info("webhook: payment approved", "external_reference", payment.ExternalReference, "date_approved", payment.DateApproved)
	case mp.StatusPending:
		log.Info("webhook: payment pending", "external_reference", payment.ExternalReference)
	case mp.StatusRejected:
		log.Warn("webhook: payment rejected", "external_reference", payment.ExternalReference, "status_detail", payment.StatusDetail)
	default:
		log.Info("webhook: payment status updated", "status", payment.Status, "status_detail", payment.StatusDetail)
	}
	s.publishTerminal(ctx, payment)

	return &NotificationResult{PaymentID: payment.IDString(), Status: payment.Status}, nil
}

func (s *Service) publishTerminal(ctx context.Context, payment *mp.Payment) {
	var event events.Event
	switch payment.Status {
	case mp.StatusApproved:
		event = events.NewPaymentApprovedEvent(s.snapshot(payment, nil), payment.DateApproved)
	case mp.StatusRejected:
		event = events.NewPaymentRejectedEvent(s.snapshot(payment, nil))
	default:
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.From(ctx).Warn("failed to publish payment event", "event_type", event.EventType(), "error", err)
	}
}

// snapshot resolves the kit from the external reference when kit is nil.
func (s *Service) snapshot(payment *mp.Payment, kit *product.Kit) events.PaymentSnapshot {
	if kit == nil && s.kits != nil {
		if k, err := s.kits.ByReference(payment.ExternalReference); err == nil {
			kit = k
		}
	}

	snap := events.PaymentSnapshot{
		PaymentID:         payment.IDString(),
		ExternalReference: payment.ExternalReference,
		Amount:            payment.TransactionAmount,
		Currency:          payment.CurrencyID,
		PayerEmail:        payment.Payer.Email,
		Status:            string(payment.Status),
		StatusDetail:      payment.StatusDetail,
	}
	if kit != nil {
		snap.KitID = kit.ID
		snap.KitTitle = kit.Title
		snap.Source = kit.Source()
		if snap.Amount.IsZero() {
			snap.Amount = kit.Price
		}
		if snap.Currency == "" {
			snap.Currency = kit.Currency
		}
	}
	return snap
}

func newRequestID(now time.Time) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), b)
}
