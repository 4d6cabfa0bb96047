package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeDocumentRequestSubmitted  = "document_request.submitted"
	EventTypeDocumentRequestReconciled = "document_request.reconciled"
)

// DocumentRequestSubmittedEvent fires when a student submits a request,
// before any online payment has been confirmed.
type DocumentRequestSubmittedEvent struct {
	BaseEvent
	StudentID     string          `json:"student_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	RequestID     int64           `json:"request_id,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
}

func NewDocumentRequestSubmittedEvent(studentID, paymentMethod string, amount decimal.Decimal, requestID int64, sessionID string) *DocumentRequestSubmittedEvent {
	return &DocumentRequestSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentRequestSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"student_id":     studentID,
				"payment_method": paymentMethod,
				"amount":         amount.StringFixed(2),
				"request_id":     requestID,
				"session_id":     sessionID,
			},
		},
		StudentID:     studentID,
		PaymentMethod: paymentMethod,
		Amount:        amount,
		RequestID:     requestID,
		SessionID:     sessionID,
	}
}

// DocumentRequestReconciledEvent fires once a paid checkout session has been
// turned into a stored request.
type DocumentRequestReconciledEvent struct {
	BaseEvent
	RequestID           int64           `json:"request_id"`
	SessionID           string          `json:"session_id"`
	StudentID           string          `json:"student_id"`
	Amount              decimal.Decimal `json:"amount"`
	SMSSent             bool            `json:"sms_sent"`
	NotificationCreated bool            `json:"notification_created"`
}

func NewDocumentRequestReconciledEvent(requestID int64, sessionID, studentID string, amount decimal.Decimal, smsSent, notificationCreated bool) *DocumentRequestReconciledEvent {
	return &DocumentRequestReconciledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentRequestReconciled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":           requestID,
				"session_id":           sessionID,
				"student_id":           studentID,
				"amount":               amount.StringFixed(2),
				"sms_sent":             smsSent,
				"notification_created": notificationCreated,
			},
		},
		RequestID:           requestID,
		SessionID:           sessionID,
		StudentID:           studentID,
		Amount:              amount,
		SMSSent:             smsSent,
		NotificationCreated: notificationCreated,
	}
}
