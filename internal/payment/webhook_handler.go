package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/frahmantamala/kit-checkout/internal"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/transport"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	*transport.BaseHandler
	paymentService ServiceAPI
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, paymentService ServiceAPI) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    baseHandler,
		paymentService: paymentService,
	}
}

// HandleNotification handles POST /api/webhook.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	n, err := parseNotification(r)
	if err != nil {
		h.Logger.Error("HandleNotification: unreadable notification body", "error", err)
		h.WriteErrorResponse(w, http.StatusInternalServerError, msgWebhookInternal)
		return
	}

	h.Logger.Info("HandleNotification: notification received",
		"type", n.EventType(),
		"topic", n.Topic,
		"action", n.Action,
		"data_id", n.Data.ID)

	result, err := h.paymentService.ProcessNotification(r.Context(), n)
	if err != nil {
		var appErr *internal.AppError
		if !errors.As(err, &appErr) {
			appErr = internal.NewInternalError(msgWebhookInternal, err)
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.Logger.Error("HandleNotification: failed to process notification", "error", err)
		} else {
			h.Logger.Warn("HandleNotification: notification rejected", "error", err)
		}
		h.WriteErrorResponse(w, appErr.StatusCode, appErr.Message)
		return
	}

	if result.Ignored {
		h.WriteJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: msgWebhookIgnored})
		return
	}

	h.Logger.Info("HandleNotification: notification processed",
		"payment_id", result.PaymentID,
		"status", result.Status)

	h.WriteJSON(w, http.StatusOK, WebhookResponse{Success: true, Status: string(result.Status)})
}

func (h *WebhookHandler) WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.WriteJSON(w, statusCode, internal.Response{Error: message})
}

// parseNotification reads the JSON body and falls back to the query string
// (type, data.id/id) for fields the body leaves empty.
func parseNotification(r *http.Request) (*mp.Notification, error) {
	var n mp.Notification

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, err
		}
	}

	q := r.URL.Query()
	if n.Type == "" {
		n.Type = q.Get("type")
	}
	if n.Data.ID == "" {
		id := q.Get("data.id")
		if id == "" {
			id = q.Get("id")
		}
		n.Data.ID = mp.ResourceID(id)
	}
	return &n, nil
}
