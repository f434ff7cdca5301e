package main_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kit-checkout/cmd"
	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/internal/checkout"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/payment"
)

// fakeProvider stands in for the payments API.
type fakeProvider struct {
	mu       sync.Mutex
	status   mp.PaymentStatus
	requests []mp.PaymentRequest
	keys     []string
}

func (p *fakeProvider) setStatus(s mp.PaymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/payments":
		var req mp.PaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.requests = append(p.requests, req)
		p.keys = append(p.keys, r.Header.Get("X-Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(p.payment(req.ExternalReference))
	case r.Method == http.MethodGet && r.URL.Path == "/v1/payments/123":
		_ = json.NewEncoder(w).Encode(p.payment("kit-essencial-1700000000000"))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found","error":"not_found","status":404,"cause":[]}`))
	}
}

func (p *fakeProvider) payment(ref string) map[string]interface{} {
	return map[string]interface{}{
		"id":                 123,
		"status":             p.status,
		"status_detail":      "pending_waiting_transfer",
		"external_reference": ref,
		"transaction_amount": 15,
		"date_created":       "2024-01-01T10:00:00.000-03:00",
		"payer":              map[string]string{"email": "maria@example.com"},
		"point_of_interaction": map[string]interface{}{
			"type": "PIX",
			"transaction_data": map[string]string{
				"qr_code":        "00020126580014br.gov.bcb.pix",
				"qr_code_base64": "iVBORw0KGgo=",
				"ticket_url":     "https://www.mercadopago.com.br/payments/123/ticket",
			},
		},
	}
}

func (p *fakeProvider) IdempotencyKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *fakeProvider) Requests() []mp.PaymentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mp.PaymentRequest(nil), p.requests...)
}

// beaconRecorder collects the pixel hits.
type beaconRecorder struct {
	mu     sync.Mutex
	events []string
	ids    []string
}

func (b *beaconRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := r.URL.Query()
	b.events = append(b.events, q.Get("ev"))
	b.ids = append(b.ids, q.Get("eventID"))
	w.WriteHeader(http.StatusOK)
}

func (b *beaconRecorder) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *beaconRecorder) EventIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

var _ = Describe("Checkout flow", func() {
	var (
		provider *fakeProvider
		beacon   *beaconRecorder
		mpServer *httptest.Server
		pxServer *httptest.Server
		api      *httptest.Server
		deps     *cmd.Dependencies
		logger   *slog.Logger
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		provider = &fakeProvider{status: mp.StatusPending}
		beacon = &beaconRecorder{}
		mpServer = httptest.NewServer(provider)
		pxServer = httptest.NewServer(beacon)

		cfg := internal.DefaultConfig()
		cfg.Server.BaseURL = "https://kit.example.com"
		cfg.MercadoPago.APIURL = mpServer.URL
		cfg.MercadoPago.AccessToken = "APP_USR-1234567890123456-010101-abcdefabcdef"
		cfg.Tracking.PixelID = "1234567890"
		cfg.Tracking.BeaconURL = pxServer.URL + "/tr/"
		cfg.Tracking.Retry = internal.RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond}

		var err error
		deps, err = cmd.InitializeDependencies(ctx, cfg, logger)
		Expect(err).NotTo(HaveOccurred())
		api = httptest.NewServer(deps.Router)
	})

	AfterEach(func() {
		api.Close()
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		deps.Shutdown(shutdownCtx)
		mpServer.Close()
		pxServer.Close()
	})

	It("sells the default kit from PIX creation to purchase tracking", func() {
		session := checkout.NewSession(checkout.NewClient(api.URL, time.Second, logger), logger)

		pix, err := session.Start(ctx, checkout.GeneratePixPath, "maria@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(pix.ID).To(Equal(int64(123)))
		Expect(pix.QRCode).To(Equal("00020126580014br.gov.bcb.pix"))
		Expect(pix.TicketURL).To(ContainSubstring("/payments/123/ticket"))

		reqs := provider.Requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].NotificationURL).To(Equal("https://kit.example.com/api/webhook"))
		Expect(reqs[0].ExternalReference).To(HavePrefix("kit-essencial-"))
		Expect(reqs[0].PaymentMethodID).To(Equal(mp.PaymentMethodPix))
		Expect(reqs[0].Payer.Email).To(Equal("maria@example.com"))
		Expect(provider.IdempotencyKeys()).To(ConsistOf(HavePrefix("kit-essencial-")))

		Eventually(beacon.Events).Should(ContainElement("InitiateCheckout"))

		provider.setStatus(mp.StatusApproved)

		resp, err := http.Post(api.URL+"/api/webhook", "application/json",
			strings.NewReader(`{"type":"payment","action":"payment.updated","data":{"id":"123"}}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var hook payment.WebhookResponse
		Expect(json.NewDecoder(resp.Body).Decode(&hook)).To(Succeed())
		Expect(hook.Success).To(BeTrue())
		Expect(hook.Status).To(Equal(string(mp.StatusApproved)))

		status, err := session.WaitForPayment(ctx, 10*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(checkout.StatusApproved))

		Eventually(beacon.EventIDs).Should(ContainElement("purchase_123"))
	})

	It("ignores notifications that are not about payments", func() {
		resp, err := http.Post(api.URL+"/api/webhook", "application/json",
			strings.NewReader(`{"type":"merchant_order","data":{"id":"9"}}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var hook payment.WebhookResponse
		Expect(json.NewDecoder(resp.Body).Decode(&hook)).To(Succeed())
		Expect(hook.Success).To(BeTrue())
		Expect(hook.Message).To(Equal("Webhook ignorado"))
		Expect(provider.Requests()).To(BeEmpty())
	})

	It("forwards provider status for unknown payments", func() {
		_, err := checkout.NewClient(api.URL, time.Second, logger).CheckPayment(ctx, "999")

		var apiErr *checkout.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(apiErr.Message).To(Equal("Payment not found"))
	})

	It("reports the dependencies as healthy", func() {
		resp, err := http.Get(api.URL + "/api/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
