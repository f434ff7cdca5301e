package tracking_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/tracking"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("PixelClient", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		requests []url.Values
		status   int
		client   *tracking.PixelClient
	)

	BeforeEach(func() {
		requests = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			requests = append(requests, r.URL.Query())
			code := status
			mu.Unlock()
			w.WriteHeader(code)
		}))
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		client = tracking.NewPixelClient(tracking.PixelConfig{
			PixelID:   "2292146237905291",
			BeaconURL: server.URL + "/tr/",
			SourceURL: "https://kit.example.com/checkout",
		}, logger)
	})

	AfterEach(func() {
		server.Close()
	})

	recorded := func() []url.Values {
		mu.Lock()
		defer mu.Unlock()
		return append([]url.Values(nil), requests...)
	}

	It("initialises lazily with a PageView beacon", func() {
		Expect(client.IsReady()).To(BeFalse())
		Expect(client.Ready(context.Background())).To(Succeed())
		Expect(client.IsReady()).To(BeTrue())

		Expect(client.Ready(context.Background())).To(Succeed())
		Expect(recorded()).To(HaveLen(1))
		Expect(recorded()[0].Get("ev")).To(Equal("PageView"))
		Expect(recorded()[0].Get("id")).To(Equal("2292146237905291"))
	})

	It("stays not ready while the beacon endpoint rejects requests", func() {
		mu.Lock()
		status = http.StatusServiceUnavailable
		mu.Unlock()

		err := client.Ready(context.Background())
		Expect(errors.Is(err, tracking.ErrNotReady)).To(BeTrue())
		Expect(client.IsReady()).To(BeFalse())
	})

	It("encodes the direct beacon with flat parameters", func() {
		ev := tracking.NewInitiateCheckout(decimal.RequireFromString("15.00"), "kit-essencial", "Kit Essencial", "")
		ev.Timestamp = time.UnixMilli(1700000000000)

		Expect(client.Send(context.Background(), tracking.ChannelBeacon, ev)).To(Succeed())

		q := recorded()[0]
		Expect(q.Get("ev")).To(Equal("InitiateCheckout"))
		Expect(q.Get("if")).To(Equal("false"))
		Expect(q.Get("ts")).To(Equal("1700000000000"))
		Expect(q.Get("value")).To(Equal("15"))
		Expect(q.Get("currency")).To(Equal("BRL"))
		Expect(q.Get("content_type")).To(Equal("product"))
		Expect(q.Get("content_ids")).To(Equal(`["kit-essencial"]`))
		Expect(q.Get("content_category")).To(Equal("Estudos Bíblicos"))
		Expect(q.Get("eventID")).To(Equal("initiate_checkout_1700000000000"))
		Expect(q.Get("dl")).To(Equal("https://kit.example.com/checkout"))
		Expect(q.Get("eventSourceUrl")).To(Equal("https://kit.example.com/checkout"))
	})

	It("encodes track calls with custom data fields", func() {
		ev := tracking.NewPurchase(decimal.RequireFromString("24.90"), "kit_lider_transformada", "Kit Líder", "555")

		Expect(client.Send(context.Background(), tracking.ChannelTrack, ev)).To(Succeed())

		q := recorded()[0]
		Expect(q.Get("ev")).To(Equal("Purchase"))
		Expect(q.Get("cd[value]")).To(Equal("24.90"))
		Expect(q.Get("cd[order_id]")).To(Equal("555"))
		Expect(q.Get("cd[num_items]")).To(Equal("1"))
		Expect(q.Get("eventID")).To(Equal("purchase_555"))
	})

	It("rejects unknown channels", func() {
		Expect(client.Send(context.Background(), tracking.Channel("carrier-pigeon"), tracking.Event{})).To(HaveOccurred())
	})
})

var _ = Describe("Event", func() {
	It("derives dedup keys per funnel step", func() {
		checkout := tracking.NewInitiateCheckout(decimal.NewFromInt(15), "kit-essencial", "Kit", "111")
		Expect(checkout.DedupKey()).To(Equal("fb_checkout_kit-essencial_111"))

		checkout.SessionID = ""
		Expect(checkout.DedupKey()).To(Equal("fb_checkout_kit-essencial"))

		purchase := tracking.NewPurchase(decimal.NewFromInt(15), "kit-essencial", "Kit", "123")
		Expect(purchase.DedupKey()).To(Equal("fb_purchase_123"))

		purchase.OrderID = ""
		Expect(purchase.DedupKey()).To(Equal("fb_purchase_kit-essencial"))

		Expect(tracking.Event{Name: tracking.EventPageView}.DedupKey()).To(BeEmpty())
	})
})

var _ = Describe("RetryPolicy", func() {
	It("doubles the delay and caps it", func() {
		policy := tracking.CheckoutRetryPolicy(tracking.DefaultRetryPolicy())
		Expect(policy.MaxAttempts).To(Equal(10))
		Expect(policy.Delays()).To(Equal([]time.Duration{
			1 * time.Second, 2 * time.Second, 4 * time.Second,
			5 * time.Second, 5 * time.Second, 5 * time.Second,
			5 * time.Second, 5 * time.Second, 5 * time.Second,
		}))
	})

	It("stops after the attempt cap", func() {
		policy := tracking.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("not yet")
		})
		Expect(err).To(MatchError("not yet"))
		Expect(calls).To(Equal(3))
	})

	It("stops as soon as the operation succeeds", func() {
		policy := tracking.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("not yet")
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(2))
	})
})

var _ = Describe("MemoryDedupStore", func() {
	It("forgets flags after the ttl", func() {
		store := tracking.NewMemoryDedupStore(0, 20*time.Millisecond)
		ctx := context.Background()

		Expect(store.Mark(ctx, "fb_checkout_kit")).To(Succeed())
		Expect(store.Seen(ctx, "fb_checkout_kit")).To(BeTrue())
		Eventually(func() bool {
			seen, _ := store.Seen(ctx, "fb_checkout_kit")
			return seen
		}).Should(BeFalse())
	})

	It("drops the oldest flag once full", func() {
		store := tracking.NewMemoryDedupStore(2, time.Hour)
		ctx := context.Background()

		for _, key := range []string{"fb_purchase_1", "fb_purchase_2", "fb_purchase_3"} {
			Expect(store.Mark(ctx, key)).To(Succeed())
		}

		Expect(store.Seen(ctx, "fb_purchase_1")).To(BeFalse())
		Expect(store.Seen(ctx, "fb_purchase_2")).To(BeTrue())
		Expect(store.Seen(ctx, "fb_purchase_3")).To(BeTrue())
	})
})
