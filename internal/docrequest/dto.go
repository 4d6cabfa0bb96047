package docrequest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/core/common/validation"
)

const maxQuantityPerDocument = 10

type StudentInfo struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Grade       string `json:"grade"`
	Section     string `json:"section"`
	ContactNo   string `json:"contactNo"`
	Email       string `json:"email"`
}

type SelectedDoc struct {
	ID       int64            `json:"id"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// SubmitRequestDTO is the body of POST /document-request.
type SubmitRequestDTO struct {
	StudentInfo   StudentInfo   `json:"studentInfo"`
	SelectedDocs  []SelectedDoc `json:"selectedDocs"`
	PaymentMethod string        `json:"paymentMethod"`
}

func (dto *SubmitRequestDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("studentId", dto.StudentInfo.StudentID).Required().MaxLength(64)
	v.Field("studentName", dto.StudentInfo.StudentName).Required().MaxLength(200)
	v.Field("contactNo", dto.StudentInfo.ContactNo).Required().MaxLength(32)
	v.Field("email", dto.StudentInfo.Email).Email().MaxLength(200)
	v.Field("paymentMethod", dto.PaymentMethod).
		Required().
		OneOf(internal.ErrCodeInvalidPaymentMethod, string(PaymentMethodCash), string(PaymentMethodGCash), string(PaymentMethodMaya))
	v.Field("selectedDocs", len(dto.SelectedDocs)).
		MinInt(1, internal.ErrCodeValidationFailed)
	for _, doc := range dto.SelectedDocs {
		v.Field("selectedDocs.id", doc.ID).MinInt(1, internal.ErrCodeUnknownDocumentType)
		v.Field("selectedDocs.quantity", doc.Quantity).
			MinInt(1, internal.ErrCodeInvalidQuantity).
			MaxInt(maxQuantityPerDocument, internal.ErrCodeInvalidQuantity)
	}
	return v.Validate()
}

// SubmitResponse is returned for both payment paths. Cash fills the request
// fields; online methods only carry the checkout url.
type SubmitResponse struct {
	Success             bool   `json:"success"`
	RequestID           int64  `json:"requestId,omitempty"`
	Amount              string `json:"amount"`
	PaymentMethod       string `json:"paymentMethod"`
	ScheduledPickup     string `json:"scheduledPickup"`
	SMSSent             bool   `json:"smsSent"`
	NotificationCreated bool   `json:"notificationCreated"`
	CheckoutURL         string `json:"checkoutUrl,omitempty"`
	SessionID           string `json:"sessionId,omitempty"`
}

type UpdateStatusDTO struct {
	Status                string `json:"status"`
	RescheduledPickupDate string `json:"rescheduledPickupDate,omitempty"`
}

func (dto *UpdateStatusDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("status", dto.Status).Required()
	v.Field("rescheduledPickupDate", dto.RescheduledPickupDate).Custom(pickupDate("rescheduledPickupDate"))
	return v.Validate()
}

// pickupDate accepts an empty value or a YYYY-MM-DD date.
func pickupDate(field string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		v, ok := value.(string)
		if !ok || v == "" {
			return nil
		}
		if _, err := time.Parse(pickupLayout, v); err != nil {
			return internal.NewValidationFieldError(field, field+" must be YYYY-MM-DD", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}
