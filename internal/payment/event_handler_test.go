package payment_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/kit-checkout/internal/core/events"
	paymentPkg "github.com/frahmantamala/kit-checkout/internal/payment"
	"github.com/frahmantamala/kit-checkout/internal/tracking"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []tracking.Event
}

func (t *recordingTracker) Emit(ctx context.Context, ev tracking.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *recordingTracker) Shutdown(ctx context.Context) error { return nil }

func (t *recordingTracker) Events() []tracking.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]tracking.Event(nil), t.events...)
}

var _ = Describe("EventHandler", func() {
	var (
		tracker  *recordingTracker
		bus      *events.EventBus
		snapshot events.PaymentSnapshot
	)

	BeforeEach(func() {
		tracker = &recordingTracker{}
		bus = events.NewEventBus(testLogger())
		paymentPkg.NewEventHandler(tracker, testLogger()).RegisterEventHandlers(bus)
		snapshot = events.PaymentSnapshot{
			PaymentID:         "123",
			ExternalReference: "kit-essencial-1700000000000",
			KitID:             "kit-essencial",
			KitTitle:          "Kit Essencial",
			Amount:            decimal.RequireFromString("15.00"),
			Currency:          "BRL",
		}
	})

	It("reports InitiateCheckout when a payment is created", func() {
		Expect(bus.PublishSync(context.Background(), events.NewPaymentCreatedEvent(snapshot))).To(Succeed())

		Expect(tracker.Events()).To(HaveLen(1))
		ev := tracker.Events()[0]
		Expect(ev.Name).To(Equal(tracking.EventInitiateCheckout))
		Expect(ev.ContentIDs).To(Equal([]string{"kit-essencial"}))
		Expect(ev.DedupKey()).To(Equal("fb_checkout_kit-essencial_123"))
		Expect(ev.Value.Equal(decimal.RequireFromString("15.00"))).To(BeTrue())
	})

	It("reports Purchase keyed by the payment id when a payment is approved", func() {
		Expect(bus.PublishSync(context.Background(), events.NewPaymentApprovedEvent(snapshot, "2024-01-01"))).To(Succeed())

		Expect(tracker.Events()).To(HaveLen(1))
		ev := tracker.Events()[0]
		Expect(ev.Name).To(Equal(tracking.EventPurchase))
		Expect(ev.OrderID).To(Equal("123"))
		Expect(ev.DedupKey()).To(Equal("fb_purchase_123"))
	})

	It("only logs rejected payments", func() {
		Expect(bus.PublishSync(context.Background(), events.NewPaymentRejectedEvent(snapshot))).To(Succeed())
		Expect(tracker.Events()).To(BeEmpty())
	})

	It("refuses events of the wrong type", func() {
		h := paymentPkg.NewEventHandler(tracker, testLogger())
		err := h.HandlePaymentApproved(context.Background(), events.NewPaymentCreatedEvent(snapshot))
		Expect(err).To(HaveOccurred())
	})
})

type beaconCounter struct {
	mu       sync.Mutex
	sessions []string
}

func (c *beaconCounter) Ready(ctx context.Context) error { return nil }

func (c *beaconCounter) Send(ctx context.Context, ch tracking.Channel, ev tracking.Event) error {
	if ch != tracking.ChannelBeacon {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, ev.SessionID)
	return nil
}

func (c *beaconCounter) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sessions...)
}

var _ = Describe("EventHandler with the emitter", func() {
	It("reports InitiateCheckout once per payment, not once per kit", func() {
		client := &beaconCounter{}
		emitter := tracking.NewEmitter(client, tracking.NewMemoryDedupStore(0, time.Hour), tracking.EmitterConfig{
			Workers:   1,
			QueueSize: 10,
			Retry:     tracking.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		}, testLogger())

		bus := events.NewEventBus(testLogger())
		paymentPkg.NewEventHandler(emitter, testLogger()).RegisterEventHandlers(bus)

		for _, id := range []string{"111", "222", "333", "111"} {
			snapshot := events.PaymentSnapshot{
				PaymentID: id,
				KitID:     "kit-essencial",
				KitTitle:  "Kit Essencial",
				Amount:    decimal.RequireFromString("15.00"),
			}
			Expect(bus.PublishSync(context.Background(), events.NewPaymentCreatedEvent(snapshot))).To(Succeed())
		}
		Expect(emitter.Shutdown(context.Background())).To(Succeed())

		Expect(client.Sessions()).To(Equal([]string{"111", "222", "333"}))
	})
})
