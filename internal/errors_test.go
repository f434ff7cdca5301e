package internal_test

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kit-checkout/internal"
)

var _ = Describe("AppError", func() {
	It("hides details unless verbose", func() {
		appErr := internal.NewInternalError("Erro interno do servidor", errors.New("dial tcp: timeout")).
			WithDetails(map[string]string{"request_id": "req_1"})

		status, resp := appErr.ToHTTPResponse(false)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(resp.Error).To(Equal("Erro interno do servidor"))
		Expect(resp.Code).To(Equal(internal.ErrCodeInternal))
		Expect(resp.Details).To(BeNil())

		_, resp = appErr.ToHTTPResponse(true)
		Expect(resp.Details).To(Equal(map[string]string{"request_id": "req_1"}))
	})

	It("falls back to the cause as detail", func() {
		appErr := internal.NewConfigError("Erro de configuração", errors.New("access token not configured"))

		_, resp := appErr.ToHTTPResponse(true)
		Expect(resp.Details).To(Equal(map[string]string{"cause": "access token not configured"}))
	})

	It("copies on WithStatus", func() {
		original := internal.NewExternalError("Dados inválidos", "MP_400", http.StatusBadRequest, nil)
		masked := original.WithStatus(http.StatusOK)

		Expect(masked.StatusCode).To(Equal(http.StatusOK))
		Expect(original.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(masked.Code).To(Equal(original.Code))
	})

	It("unwraps to its cause", func() {
		cause := errors.New("boom")
		appErr := internal.NewInternalError("falhou", cause)

		Expect(errors.Is(appErr, cause)).To(BeTrue())
		Expect(appErr.Error()).To(Equal("falhou: boom"))
	})

	It("names unmapped provider statuses", func() {
		Expect(internal.ProviderErrorCode(418)).To(Equal(internal.ErrorCode("MP_418")))
	})
})

var _ = Describe("request context", func() {
	It("round-trips the request id", func() {
		ctx := internal.ContextWithRequestID(context.Background(), "trace-1")
		Expect(internal.RequestIDFromContext(ctx)).To(Equal("trace-1"))
		Expect(internal.RequestIDFromContext(context.Background())).To(BeEmpty())
	})
})
