package docrequest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/auth"
	"github.com/frahmantamala/document-request/internal/transport"
)

type ServiceAPI interface {
	Submit(ctx context.Context, dto *SubmitRequestDTO) (*SubmitResponse, error)
	Cancel(ctx context.Context, rawSessionID string)
	GetByID(ctx context.Context, id int64, callerID string, isAdmin bool) (*DocumentRequest, error)
	UpdateStatus(ctx context.Context, id int64, dto *UpdateStatusDTO) (*DocumentRequest, error)
}

type ReconcilerAPI interface {
	Reconcile(ctx context.Context, rawSessionID string) Result
}

type Handler struct {
	*transport.BaseHandler
	Service    ServiceAPI
	Reconciler ReconcilerAPI
	Redirects  RedirectConfig
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, reconciler ReconcilerAPI, redirects RedirectConfig) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Reconciler:  reconciler,
		Redirects:   redirects,
	}
}

// PaymentSuccess is where the gateway sends the payer after checkout.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	res := h.Reconciler.Reconcile(r.Context(), r.URL.Query().Get("session_id"))
	http.Redirect(w, r, h.Redirects.Location(res), http.StatusSeeOther)
}

func (h *Handler) PaymentCancelled(w http.ResponseWriter, r *http.Request) {
	h.Service.Cancel(r.Context(), r.URL.Query().Get("session_id"))
	res := Result{ErrorCode: CodePaymentCancelled, Message: "Payment was cancelled."}
	http.Redirect(w, r, h.Redirects.Location(res), http.StatusSeeOther)
}

func (h *Handler) SubmitDocumentRequest(w http.ResponseWriter, r *http.Request) {
	callerID := internal.UserIDFromContext(r.Context())
	role, err := auth.RoleFromContext(r)
	if callerID == "" || err != nil {
		h.HandleError(w, internal.ErrMissingToken)
		return
	}

	var dto SubmitRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	if role == auth.RoleStudent && dto.StudentInfo.StudentID != callerID {
		h.Logger.Warn("SubmitDocumentRequest: student submitting for someone else",
			"caller_id", callerID,
			"student_id", dto.StudentInfo.StudentID)
		h.HandleError(w, internal.ErrUnauthorizedAccess)
		return
	}

	resp, err := h.Service.Submit(r.Context(), &dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetDocumentRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	role, err := auth.RoleFromContext(r)
	if err != nil {
		h.HandleError(w, internal.ErrMissingToken)
		return
	}

	req, err := h.Service.GetByID(r.Context(), id, internal.UserIDFromContext(r.Context()), role == auth.RoleAdmin)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	var dto UpdateStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	req, err := h.Service.UpdateStatus(r.Context(), id, &dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.HandleError(w, internal.NewValidationError("invalid document request id", internal.ErrCodeInvalidRequest))
		return 0, false
	}
	return id, true
}
