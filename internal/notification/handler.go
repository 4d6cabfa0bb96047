package notification

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/document-request/internal"
	notificationmodel "github.com/frahmantamala/document-request/internal/core/datamodel/notification"
	"github.com/frahmantamala/document-request/internal/transport"
)

type Lister interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]*notificationmodel.Notification, error)
}

type Handler struct {
	*transport.BaseHandler
	Lister Lister
}

type NotificationResponse struct {
	ID        int64      `json:"id"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

func NewHandler(baseHandler *transport.BaseHandler, lister Lister) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Lister:      lister,
	}
}

// ListMine returns the caller's latest notifications.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	studentID := internal.UserIDFromContext(r.Context())
	if studentID == "" {
		h.HandleError(w, internal.ErrMissingToken)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.Lister.ListByStudent(r.Context(), studentID, limit)
	if err != nil {
		h.Logger.Error("ListMine: failed to list notifications", "student_id", studentID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	resp := NotificationsResponse{Notifications: make([]NotificationResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Notifications = append(resp.Notifications, NotificationResponse{
			ID:        row.ID,
			Message:   row.Message,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
