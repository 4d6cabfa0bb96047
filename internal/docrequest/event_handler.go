package docrequest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/document-request/internal/core/events"
)

// EventHandler writes the audit trail for submitted and reconciled requests.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger.With("audit", true)}
}

func (h *EventHandler) HandleSubmitted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DocumentRequestSubmittedEvent)
	if !ok {
		return fmt.Errorf("expected DocumentRequestSubmittedEvent, got %T", event)
	}

	h.logger.Info("document request submitted",
		"event_id", e.EventID(),
		"student_id", e.StudentID,
		"payment_method", e.PaymentMethod,
		"amount", e.Amount.StringFixed(2),
		"request_id", e.RequestID,
		"session_id", e.SessionID)
	return nil
}

func (h *EventHandler) HandleReconciled(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DocumentRequestReconciledEvent)
	if !ok {
		return fmt.Errorf("expected DocumentRequestReconciledEvent, got %T", event)
	}

	h.logger.Info("online payment reconciled",
		"event_id", e.EventID(),
		"request_id", e.RequestID,
		"session_id", e.SessionID,
		"student_id", e.StudentID,
		"amount", e.Amount.StringFixed(2))

	if !e.SMSSent && !e.NotificationCreated {
		h.logger.Warn("student was not notified about reconciled request",
			"request_id", e.RequestID,
			"student_id", e.StudentID)
	}
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeDocumentRequestSubmitted, h.HandleSubmitted)
	eventBus.Subscribe(events.EventTypeDocumentRequestReconciled, h.HandleReconciled)

	h.logger.Info("document request event handlers registered",
		"handlers", []string{events.EventTypeDocumentRequestSubmitted, events.EventTypeDocumentRequestReconciled})
}
