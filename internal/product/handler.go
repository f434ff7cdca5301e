package product

import (
	"net/http"

	"github.com/frahmantamala/kit-checkout/internal/transport"
)

type ServiceAPI interface {
	GetActiveKits() ([]KitResponse, error)
	ByID(id string) (*Kit, error)
	ByReference(ref string) (*Kit, error)
	Default() (*Kit, error)
	Premium() (*Kit, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetKits(w http.ResponseWriter, r *http.Request) {
	kits, err := h.Service.GetActiveKits()
	if err != nil {
		h.Logger.Error("GetKits: failed to get kits", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to get kits")
		return
	}

	h.WriteJSON(w, http.StatusOK, KitsResponse{Kits: kits})
}
