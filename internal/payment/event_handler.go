package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/kit-checkout/internal/core/events"
	"github.com/frahmantamala/kit-checkout/internal/tracking"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
)

// EventHandler reacts to payment lifecycle events: funnel tracking and the
// fulfillment hook.
type EventHandler struct {
	tracker tracking.Tracker
	logger  *slog.Logger
}

func NewEventHandler(tracker tracking.Tracker, logger *slog.Logger) *EventHandler {
	if tracker == nil {
		tracker = tracking.NoopTracker{}
	}
	return &EventHandler{
		tracker: tracker,
		logger:  logger,
	}
}

func (h *EventHandler) HandlePaymentCreated(ctx context.Context, event events.Event) error {
	created, ok := event.(*events.PaymentCreatedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment created handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentCreatedEvent, got %T", event)
	}

	h.logger.Info("handling payment created event",
		"payment_id", created.PaymentID,
		"kit_id", created.KitID,
		"payer", logger.MaskEmail(created.PayerEmail),
		"event_id", created.EventID())

	if created.KitID == "" {
		return nil
	}
	h.tracker.Emit(ctx, tracking.NewInitiateCheckout(created.Amount, created.KitID, created.KitTitle, created.PaymentID))
	return nil
}

// HandlePaymentApproved is where kit delivery hooks in; for now it logs the
// approval and reports the purchase.
func (h *EventHandler) HandlePaymentApproved(ctx context.Context, event events.Event) error {
	approved, ok := event.(*events.PaymentApprovedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment approved handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentApprovedEvent, got %T", event)
	}

	h.logger.Info("payment approved, kit ready for delivery",
		"payment_id", approved.PaymentID,
		"external_reference", approved.ExternalReference,
		"kit_id", approved.KitID,
		"amount", approved.Amount.String(),
		"date_approved", approved.DateApproved,
		"event_id", approved.EventID())

	contentID := approved.KitID
	if contentID == "" {
		contentID = approved.ExternalReference
	}
	h.tracker.Emit(ctx, tracking.NewPurchase(approved.Amount, contentID, approved.KitTitle, approved.PaymentID))
	return nil
}

func (h *EventHandler) HandlePaymentRejected(ctx context.Context, event events.Event) error {
	rejected, ok := event.(*events.PaymentRejectedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment rejected handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentRejectedEvent, got %T", event)
	}

	h.logger.Warn("payment rejected",
		"payment_id", rejected.PaymentID,
		"external_reference", rejected.ExternalReference,
		"status_detail", rejected.StatusDetail,
		"event_id", rejected.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCreated, h.HandlePaymentCreated)
	eventBus.Subscribe(events.EventTypePaymentApproved, h.HandlePaymentApproved)
	eventBus.Subscribe(events.EventTypePaymentRejected, h.HandlePaymentRejected)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCreated,
			events.EventTypePaymentApproved,
			events.EventTypePaymentRejected,
		})
}
