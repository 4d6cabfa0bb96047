package catalog

import (
	"context"
	"net/http"

	"github.com/frahmantamala/document-request/internal/transport"
)

type ServiceAPI interface {
	ListActive(ctx context.Context) ([]DocumentTypeResponse, error)
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

func (h *Handler) GetDocumentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.ListActive(r.Context())
	if err != nil {
		h.Logger.Error("GetDocumentTypes: failed to get document types", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to get document types")
		return
	}

	h.WriteJSON(w, http.StatusOK, DocumentTypesResponse{
		DocumentTypes: types,
	})
}
