package docrequest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
	paymentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/payment"
)

// ErrDuplicateSession is returned by Persist when a request already exists
// for the gateway session id.
var ErrDuplicateSession = errors.New("document request already exists for session")

var (
	ErrUnknownStatus        = errors.New("unknown document request status")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusCompleted      Status = "completed"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

// ParseStatus is case-insensitive. "Ongoing" is accepted as Processing.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusReadyForPickup, StatusCompleted,
		StatusApproved, StatusRejected, StatusCancelled:
		return Status(s), nil
	}
	if s == "ongoing" {
		return StatusProcessing, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodGCash PaymentMethod = "gcash"
	PaymentMethodMaya  PaymentMethod = "maya"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PaymentMethodCash, PaymentMethodGCash, PaymentMethodMaya:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, raw)
}

// IsOnline reports whether the method goes through the hosted checkout.
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodGCash || m == PaymentMethodMaya
}

type Item struct {
	DocumentTypeID int64           `json:"document_type_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

type DocumentRequest struct {
	ID                    int64           `json:"id"`
	StudentID             string          `json:"student_id"`
	StudentName           string          `json:"student_name"`
	Grade                 string          `json:"grade"`
	Section               string          `json:"section"`
	ContactNo             string          `json:"contact_no"`
	Email                 string          `json:"email"`
	PaymentMethod         PaymentMethod   `json:"payment_method"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	ScheduledPickupDate   time.Time       `json:"scheduled_pickup_date"`
	RescheduledPickupDate *time.Time      `json:"rescheduled_pickup_date,omitempty"`
	Status                Status          `json:"status"`
	GatewaySessionID      string          `json:"gateway_session_id,omitempty"`
	Items                 []Item          `json:"items"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// PickupDate is the rescheduled date when one was set.
func (d *DocumentRequest) PickupDate() time.Time {
	if d.RescheduledPickupDate != nil {
		return *d.RescheduledPickupDate
	}
	return d.ScheduledPickupDate
}

// NewRequest is everything Persist writes in a single transaction: the
// request, its items and the payment row.
type NewRequest struct {
	StudentID           string
	StudentName         string
	Grade               string
	Section             string
	ContactNo           string
	Email               string
	PaymentMethod       PaymentMethod
	Items               []Item
	TotalAmount         decimal.Decimal
	ScheduledPickupDate time.Time
	GatewaySessionID    string

	PaymentStatus   string
	PaidAt          *time.Time
	GatewayResponse json.RawMessage
}

// Total sums unit price times quantity.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func ToDataModel(n *NewRequest) (*docrequestmodel.DocumentRequest, *paymentmodel.Payment) {
	req := &docrequestmodel.DocumentRequest{
		StudentID:           n.StudentID,
		StudentName:         n.StudentName,
		Grade:               n.Grade,
		Section:             n.Section,
		ContactNo:           n.ContactNo,
		Email:               n.Email,
		PaymentMethod:       string(n.PaymentMethod),
		TotalAmount:         n.TotalAmount,
		ScheduledPickupDate: n.ScheduledPickupDate,
		Status:              string(StatusPending),
	}
	if n.GatewaySessionID != "" {
		sessionID := n.GatewaySessionID
		req.GatewaySessionID = &sessionID
	}
	for _, item := range n.Items {
		req.Items = append(req.Items, docrequestmodel.RequestItem{
			DocumentTypeID: item.DocumentTypeID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
		})
	}

	status := n.PaymentStatus
	if status == "" {
		status = paymentmodel.StatusPending
	}
	pay := &paymentmodel.Payment{
		Method:           string(n.PaymentMethod),
		Amount:           n.TotalAmount,
		Status:           status,
		GatewaySessionID: req.GatewaySessionID,
		PaidAt:           n.PaidAt,
	}
	if len(n.GatewayResponse) > 0 {
		pay.GatewayResponse = []byte(n.GatewayResponse)
	}
	return req, pay
}

func FromDataModel(m *docrequestmodel.DocumentRequest) *DocumentRequest {
	d := &DocumentRequest{
		ID:                    m.ID,
		StudentID:             m.StudentID,
		StudentName:           m.StudentName,
		Grade:                 m.Grade,
		Section:               m.Section,
		ContactNo:             m.ContactNo,
		Email:                 m.Email,
		PaymentMethod:         PaymentMethod(m.PaymentMethod),
		TotalAmount:           m.TotalAmount,
		ScheduledPickupDate:   m.ScheduledPickupDate,
		RescheduledPickupDate: m.RescheduledPickupDate,
		Status:                Status(m.Status),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
		Items:                 make([]Item, 0, len(m.Items)),
	}
	if status, err := ParseStatus(m.Status); err == nil {
		d.Status = status
	}
	if m.GatewaySessionID != nil {
		d.GatewaySessionID = *m.GatewaySessionID
	}
	for _, item := range m.Items {
		d.Items = append(d.Items, Item{
			DocumentTypeID: item.DocumentTypeID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
		})
	}
	return d
}
