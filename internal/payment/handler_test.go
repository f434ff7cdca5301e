package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kit-checkout/internal"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	paymentPkg "github.com/frahmantamala/kit-checkout/internal/payment"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/internal/transport"
)

type mockPaymentService struct {
	createErr     error
	checkErr      error
	notifyErr     error
	notifyResult  *paymentPkg.NotificationResult
	createdKit    *product.Kit
	createdEmail  string
	checkedID     string
	notifications []*mp.Notification
}

func (m *mockPaymentService) CreatePixPayment(ctx context.Context, kit *product.Kit, email string) (*paymentPkg.PaymentResponse, error) {
	m.createdKit = kit
	m.createdEmail = email
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &paymentPkg.PaymentResponse{ID: 42, Status: mp.StatusPending, QRCode: "pix-code"}, nil
}

func (m *mockPaymentService) CheckPayment(ctx context.Context, id string) (*paymentPkg.CheckPaymentResponse, error) {
	m.checkedID = id
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return &paymentPkg.CheckPaymentResponse{ID: 42, Status: mp.StatusApproved}, nil
}

func (m *mockPaymentService) ProcessNotification(ctx context.Context, n *mp.Notification) (*paymentPkg.NotificationResult, error) {
	m.notifications = append(m.notifications, n)
	if m.notifyErr != nil {
		return nil, m.notifyErr
	}
	return m.notifyResult, nil
}

func decodeBody(recorder *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	Expect(json.Unmarshal(recorder.Body.Bytes(), &body)).To(Succeed())
	return body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

var _ = Describe("PaymentHandler", func() {
	var (
		handler  *paymentPkg.Handler
		service  *mockPaymentService
		recorder *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		service = &mockPaymentService{}
		kits := product.NewService(product.NewCatalogRepository(product.DefaultKits()), testLogger())
		handler = paymentPkg.NewHandler(transport.NewBaseHandler(testLogger()), service, kits)
		recorder = httptest.NewRecorder()
	})

	Describe("GeneratePix", func() {
		It("creates a payment for the default kit", func() {
			handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", `{"email":" maria@example.com "}`))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(service.createdKit.ID).To(Equal(product.KitEssencialID))
			Expect(service.createdEmail).To(Equal("maria@example.com"))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("qr_code", "pix-code"))
		})

		It("rejects a non-JSON content type", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/generate-pix", strings.NewReader(`{"email":"a@b.co"}`))
			req.Header.Set("Content-Type", "text/plain")

			handler.GeneratePix(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("code", "INVALID_CONTENT_TYPE"))
			Expect(service.createdKit).To(BeNil())
		})

		It("rejects malformed JSON", func() {
			handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", `{"email":`))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("code", "INVALID_JSON"))
		})

		It("rejects a missing email", func() {
			handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", `{}`))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			body := decodeBody(recorder)
			Expect(body).To(HaveKeyWithValue("code", "MISSING_EMAIL"))
			Expect(body).To(HaveKeyWithValue("error", "O campo 'email' é obrigatório."))
			Expect(service.createdKit).To(BeNil())
		})

		DescribeTable("applies the loose email pattern",
			func(email string, accepted bool) {
				payload, _ := json.Marshal(map[string]string{"email": email})
				handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", string(payload)))

				if accepted {
					Expect(recorder.Code).To(Equal(http.StatusOK))
					return
				}
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeBody(recorder)).To(HaveKeyWithValue("code", "INVALID_EMAIL_FORMAT"))
			},
			Entry("plain address", "maria@example.com", true),
			Entry("subdomain", "a@b.c.d", true),
			Entry("no at sign", "maria.example.com", false),
			Entry("no dot after at", "maria@example", false),
			Entry("inner whitespace", "ma ria@example.com", false),
		)

		It("returns masked provider errors as-is", func() {
			service.createErr = internal.NewExternalError("Muitas requisições", internal.ErrCodeRateLimitExceeded, http.StatusTooManyRequests, nil).
				WithStatus(http.StatusOK)

			handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", `{"email":"maria@example.com"}`))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("code", "RATE_LIMIT_EXCEEDED"))
		})

		It("exposes the request id on unexpected failures", func() {
			service.createErr = internal.NewInternalError("Ocorreu um erro inesperado", errors.New("boom")).
				WithDetails(map[string]string{"request_id": "req_1_abcdef"})

			handler.GeneratePix(recorder, jsonRequest(http.MethodPost, "/api/generate-pix", `{"email":"maria@example.com"}`))

			Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
			body := decodeBody(recorder)
			Expect(body).To(HaveKeyWithValue("code", "INTERNAL_SERVER_ERROR"))
			Expect(body["details"]).To(HaveKeyWithValue("request_id", "req_1_abcdef"))
		})
	})

	Describe("GeneratePixPremium", func() {
		It("creates a payment for the premium kit", func() {
			handler.GeneratePixPremium(recorder, jsonRequest(http.MethodPost, "/api/generate-pix-premium", `{"email":"lider@example.com"}`))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(service.createdKit.ID).To(Equal(product.KitLiderID))
		})
	})

	Describe("GenerateKitPix", func() {
		route := func(kitID, body string) {
			router := chi.NewRouter()
			router.Post("/api/kits/{kit}/pix", handler.GenerateKitPix)
			router.ServeHTTP(recorder, jsonRequest(http.MethodPost, "/api/kits/"+kitID+"/pix", body))
		}

		It("resolves the kit from the path", func() {
			route(product.KitLiderID, `{"email":"lider@example.com"}`)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(service.createdKit.ID).To(Equal(product.KitLiderID))
		})

		It("returns 404 for unknown kits", func() {
			route("kit-desconhecido", `{"email":"maria@example.com"}`)

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("code", "UNKNOWN_KIT"))
		})
	})

	Describe("CheckPayment", func() {
		route := func(id string) {
			router := chi.NewRouter()
			router.Get("/api/check-payment/{id}", handler.CheckPayment)
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/check-payment/"+id, nil))
		}

		It("returns the payment status", func() {
			route("42")

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(service.checkedID).To(Equal("42"))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("status", "approved"))
		})

		It("forwards provider failures with status error", func() {
			service.checkErr = internal.NewExternalError("Payment not found", "MP_404", http.StatusNotFound, nil)

			route("42")

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			body := decodeBody(recorder)
			Expect(body).To(HaveKeyWithValue("error", "Payment not found"))
			Expect(body).To(HaveKeyWithValue("status", "error"))
			Expect(body).To(HaveKeyWithValue("payment_id", "42"))
		})

		It("reports internal failures as 500", func() {
			service.checkErr = internal.NewInternalError("Erro interno ao verificar pagamento", errors.New("boom"))

			route("42")

			Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(recorder)).To(HaveKeyWithValue("error", "Erro interno ao verificar pagamento"))
		})
	})
})

var _ = Describe("WebhookHandler", func() {
	var (
		handler  *paymentPkg.WebhookHandler
		service  *mockPaymentService
		recorder *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		service = &mockPaymentService{}
		handler = paymentPkg.NewWebhookHandler(transport.NewBaseHandler(testLogger()), service)
		recorder = httptest.NewRecorder()
	})

	It("acknowledges ignored notifications", func() {
		service.notifyResult = &paymentPkg.NotificationResult{Ignored: true}

		handler.HandleNotification(recorder, jsonRequest(http.MethodPost, "/api/webhook", `{"type":"plan","data":{"id":"1"}}`))

		Expect(recorder.Code).To(Equal(http.StatusOK))
		body := decodeBody(recorder)
		Expect(body).To(HaveKeyWithValue("success", true))
		Expect(body).To(HaveKeyWithValue("message", "Webhook ignorado"))
	})

	It("returns the fetched status", func() {
		service.notifyResult = &paymentPkg.NotificationResult{PaymentID: "123", Status: mp.StatusApproved}

		handler.HandleNotification(recorder, jsonRequest(http.MethodPost, "/api/webhook", `{"type":"payment","action":"payment.updated","data":{"id":123}}`))

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(recorder)).To(Equal(map[string]interface{}{"success": true, "status": "approved"}))
		Expect(service.notifications).To(HaveLen(1))
		Expect(string(service.notifications[0].Data.ID)).To(Equal("123"))
	})

	It("falls back to query parameters", func() {
		service.notifyResult = &paymentPkg.NotificationResult{PaymentID: "77", Status: mp.StatusPending}
		req := httptest.NewRequest(http.MethodPost, "/api/webhook?type=payment&id=77", bytes.NewReader(nil))

		handler.HandleNotification(recorder, req)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		n := service.notifications[0]
		Expect(n.EventType()).To(Equal("payment"))
		Expect(string(n.Data.ID)).To(Equal("77"))
	})

	It("does not promote a legacy topic query into the type", func() {
		service.notifyResult = &paymentPkg.NotificationResult{Ignored: true}
		req := httptest.NewRequest(http.MethodPost, "/api/webhook?topic=payment&id=77", bytes.NewReader(nil))

		handler.HandleNotification(recorder, req)

		Expect(service.notifications).To(HaveLen(1))
		Expect(service.notifications[0].EventType()).To(BeEmpty())
	})

	It("answers malformed bodies with the generic 500 so the provider redelivers", func() {
		handler.HandleNotification(recorder, jsonRequest(http.MethodPost, "/api/webhook", `{"type":`))

		Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeBody(recorder)).To(Equal(map[string]interface{}{"error": "Erro interno no processamento do webhook"}))
		Expect(service.notifications).To(BeEmpty())
	})

	It("returns the service error status and message", func() {
		service.notifyErr = internal.NewValidationError("ID do pagamento não encontrado", internal.ErrCodeMissingPaymentID)

		handler.HandleNotification(recorder, jsonRequest(http.MethodPost, "/api/webhook", `{"type":"payment"}`))

		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeBody(recorder)).To(Equal(map[string]interface{}{"error": "ID do pagamento não encontrado"}))
	})

	It("hides unexpected failures behind the generic message", func() {
		service.notifyErr = errors.New("boom")

		handler.HandleNotification(recorder, jsonRequest(http.MethodPost, "/api/webhook", `{"type":"payment","data":{"id":"1"}}`))

		Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeBody(recorder)).To(HaveKeyWithValue("error", "Erro interno no processamento do webhook"))
	})
})
