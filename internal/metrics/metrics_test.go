package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/metrics"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Metrics", func() {
	It("maps status codes to classes", func() {
		Expect(metrics.StatusClass(200)).To(Equal("2xx"))
		Expect(metrics.StatusClass(404)).To(Equal("4xx"))
		Expect(metrics.StatusClass(503)).To(Equal("5xx"))
		Expect(metrics.StatusClass(0)).To(Equal("unknown"))
	})

	It("exposes recorded funnel metrics", func() {
		metrics.PaymentCreated("kit-essencial", "success")
		metrics.TrackingDelivery("Purchase", "beacon", "success")
		metrics.HTTPRequest("/api/generate-pix", http.MethodPost, 200, 15*time.Millisecond)

		rec := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`kit_checkout_payments_created_total{kit="kit-essencial",outcome="success"}`))
		Expect(string(body)).To(ContainSubstring(`kit_checkout_tracking_deliveries_total{channel="beacon",event="Purchase",outcome="success"}`))
		Expect(string(body)).To(ContainSubstring("kit_checkout_http_request_duration_seconds"))
	})
})
