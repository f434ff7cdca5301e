package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentCreated  = "payment.created"
	EventTypePaymentApproved = "payment.approved"
	EventTypePaymentRejected = "payment.rejected"
)

// PaymentSnapshot is the slice of a provider payment the funnel reacts to.
type PaymentSnapshot struct {
	PaymentID         string          `json:"payment_id"`
	ExternalReference string          `json:"external_reference"`
	KitID             string          `json:"kit_id"`
	KitTitle          string          `json:"kit_title"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PayerEmail        string          `json:"-"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	Source            string          `json:"source"`
}

func (s PaymentSnapshot) data() map[string]interface{} {
	return map[string]interface{}{
		"payment_id":         s.PaymentID,
		"external_reference": s.ExternalReference,
		"kit_id":             s.KitID,
		"amount":             s.Amount.String(),
		"currency":           s.Currency,
		"status":             s.Status,
		"status_detail":      s.StatusDetail,
		"source":             s.Source,
	}
}

func newBase(eventType string, s PaymentSnapshot) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      s.data(),
	}
}

type PaymentCreatedEvent struct {
	BaseEvent
	PaymentSnapshot
}

func NewPaymentCreatedEvent(s PaymentSnapshot) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseEvent:       newBase(EventTypePaymentCreated, s),
		PaymentSnapshot: s,
	}
}

type PaymentApprovedEvent struct {
	BaseEvent
	PaymentSnapshot
	DateApproved string `json:"date_approved,omitempty"`
}

func NewPaymentApprovedEvent(s PaymentSnapshot, dateApproved string) *PaymentApprovedEvent {
	base := newBase(EventTypePaymentApproved, s)
	base.Data["date_approved"] = dateApproved
	return &PaymentApprovedEvent{
		BaseEvent:       base,
		PaymentSnapshot: s,
		DateApproved:    dateApproved,
	}
}

type PaymentRejectedEvent struct {
	BaseEvent
	PaymentSnapshot
}

func NewPaymentRejectedEvent(s PaymentSnapshot) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseEvent:       newBase(EventTypePaymentRejected, s),
		PaymentSnapshot: s,
	}
}
