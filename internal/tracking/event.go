package tracking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type EventName string

const (
	EventPageView         EventName = "PageView"
	EventInitiateCheckout EventName = "InitiateCheckout"
	EventPurchase         EventName = "Purchase"
)

const (
	DefaultContentType     = "product"
	DefaultContentCategory = "Estudos Bíblicos"
	DefaultCurrency        = "BRL"
)

// Event is a single funnel event. It is never persisted.
type Event struct {
	Name            EventName
	EventID         string
	Value           decimal.Decimal
	Currency        string
	ContentIDs      []string
	ContentName     string
	ContentCategory string
	ContentType     string
	OrderID         string
	// SessionID scopes the checkout flag to one buyer's checkout.
	SessionID string
	NumItems  int
	SourceURL string
	Referrer  string
	Timestamp time.Time
}

// ContentID is the first content identifier, used for dedup keys.
func (e Event) ContentID() string {
	if len(e.ContentIDs) == 0 {
		return ""
	}
	return e.ContentIDs[0]
}

// DedupKey is the advisory flag guarding against firing the same funnel step twice.
// Events without a key are always delivered.
func (e Event) DedupKey() string {
	switch e.Name {
	case EventInitiateCheckout:
		if e.ContentID() == "" {
			return ""
		}
		if e.SessionID == "" {
			return "fb_checkout_" + e.ContentID()
		}
		return "fb_checkout_" + e.ContentID() + "_" + e.SessionID
	case EventPurchase:
		if e.OrderID != "" {
			return "fb_purchase_" + e.OrderID
		}
		if e.ContentID() == "" {
			return ""
		}
		return "fb_purchase_" + e.ContentID()
	default:
		return ""
	}
}

func (e Event) withDefaults(now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	if e.ContentType == "" {
		e.ContentType = DefaultContentType
	}
	if e.ContentCategory == "" {
		e.ContentCategory = DefaultContentCategory
	}
	if e.EventID == "" {
		e.EventID = defaultEventID(e)
	}
	return e
}

func defaultEventID(e Event) string {
	switch e.Name {
	case EventInitiateCheckout:
		return fmt.Sprintf("initiate_checkout_%d", e.Timestamp.UnixMilli())
	case EventPurchase:
		if e.OrderID != "" {
			return "purchase_" + e.OrderID
		}
		return fmt.Sprintf("purchase_%d", e.Timestamp.UnixMilli())
	default:
		return fmt.Sprintf("%s_%d", e.Name, e.Timestamp.UnixMilli())
	}
}

// NewInitiateCheckout builds the checkout step; sessionID is the payment that opened the checkout.
func NewInitiateCheckout(value decimal.Decimal, contentID, contentName, sessionID string) Event {
	return Event{
		Name:        EventInitiateCheckout,
		Value:       value,
		ContentIDs:  []string{contentID},
		ContentName: contentName,
		SessionID:   sessionID,
	}
}

func NewPurchase(value decimal.Decimal, contentID, contentName, orderID string) Event {
	return Event{
		Name:        EventPurchase,
		Value:       value,
		ContentIDs:  []string{contentID},
		ContentName: contentName,
		OrderID:     orderID,
		NumItems:    1,
	}
}
