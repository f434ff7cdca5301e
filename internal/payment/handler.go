package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/frahmantamala/kit-checkout/internal"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/product"
	"github.com/frahmantamala/kit-checkout/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreatePixPayment(ctx context.Context, kit *product.Kit, email string) (*PaymentResponse, error)
	CheckPayment(ctx context.Context, id string) (*CheckPaymentResponse, error)
	ProcessNotification(ctx context.Context, n *mp.Notification) (*NotificationResult, error)
}

type KitResolver interface {
	ByID(id string) (*product.Kit, error)
	Default() (*product.Kit, error)
	Premium() (*product.Kit, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Kits    KitResolver
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, kits KitResolver) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Kits:        kits,
	}
}

// GeneratePix handles POST /api/generate-pix for the default kit.
func (h *Handler) GeneratePix(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "GeneratePix", func() (*product.Kit, error) { return h.Kits.Default() })
}

// GeneratePixPremium handles POST /api/generate-pix-premium.
func (h *Handler) GeneratePixPremium(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, "GeneratePixPremium", func() (*product.Kit, error) { return h.Kits.Premium() })
}

// GenerateKitPix handles POST /api/kits/{kit}/pix.
func (h *Handler) GenerateKitPix(w http.ResponseWriter, r *http.Request) {
	kitID := chi.URLParam(r, "kit")
	h.generate(w, r, "GenerateKitPix", func() (*product.Kit, error) { return h.Kits.ByID(kitID) })
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, op string, resolve func() (*product.Kit, error)) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.Logger.Warn(op+": invalid content type", "content_type", r.Header.Get("Content-Type"))
		h.HandleError(w, internal.NewValidationError(msgInvalidContent, internal.ErrCodeInvalidContentType))
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn(op+": failed to parse request body", "error", err)
		h.HandleError(w, internal.NewValidationError(msgInvalidJSON, internal.ErrCodeInvalidJSON))
		return
	}
	req.Normalize()

	if err := req.Validate(); err != nil {
		h.Logger.Warn(op+": validation error", "error", err)
		h.HandleError(w, err)
		return
	}

	kit, err := resolve()
	if err != nil {
		if errors.Is(err, product.ErrKitNotFound) {
			h.HandleError(w, internal.NewNotFoundError(msgKitNotFound, internal.ErrCodeUnknownKit))
			return
		}
		h.Logger.Error(op+": failed to resolve kit", "error", err)
		h.HandleError(w, internal.NewInternalError(msgUnexpectedCreate, err))
		return
	}

	resp, err := h.Service.CreatePixPayment(r.Context(), kit, req.Email)
	if err != nil {
		h.Logger.Error(op+": failed to create payment", "error", err, "kit_id", kit.ID)
		h.handleCreateError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// handleCreateError always exposes the request id on unexpected failures so
// the buyer can quote it to support.
func (h *Handler) handleCreateError(w http.ResponseWriter, err error) {
	var appErr *internal.AppError
	if !errors.As(err, &appErr) || appErr.Code != internal.ErrCodeInternal || h.Verbose {
		h.HandleError(w, err)
		return
	}
	status, resp := appErr.ToHTTPResponse(false)
	resp.Details = appErr.Details
	h.WriteJSON(w, status, resp)
}

// CheckPayment handles GET /api/check-payment/{id}.
func (h *Handler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.Service.CheckPayment(r.Context(), id)
	if err != nil {
		var appErr *internal.AppError
		if errors.As(err, &appErr) && appErr.Type == internal.ErrorTypeExternal {
			h.Logger.Warn("CheckPayment: provider error", "payment_id", id, "status", appErr.StatusCode)
			h.WriteJSON(w, appErr.StatusCode, CheckPaymentErrorResponse{
				Error:     appErr.Message,
				Status:    "error",
				PaymentID: id,
			})
			return
		}
		h.Logger.Error("CheckPayment: failed to check payment", "payment_id", id, "error", err)
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
