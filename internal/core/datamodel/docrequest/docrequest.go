package docrequest

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentRequest struct {
	ID                    int64           `gorm:"primaryKey"`
	StudentID             string          `gorm:"column:student_id;not null;index"`
	StudentName           string          `gorm:"column:student_name;not null"`
	Grade                 string          `gorm:"column:grade"`
	Section               string          `gorm:"column:section"`
	ContactNo             string          `gorm:"column:contact_no"`
	Email                 string          `gorm:"column:email"`
	PaymentMethod         string          `gorm:"column:payment_method;not null"`
	TotalAmount           decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ScheduledPickupDate   time.Time       `gorm:"column:scheduled_pickup_date;type:date"`
	RescheduledPickupDate *time.Time      `gorm:"column:rescheduled_pickup_date;type:date"`
	Status                string          `gorm:"column:status;not null;default:pending"`
	GatewaySessionID      *string         `gorm:"column:gateway_session_id;uniqueIndex"`
	Items                 []RequestItem   `gorm:"foreignKey:RequestID"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DocumentRequest) TableName() string { return "document_requests" }

type RequestItem struct {
	ID             int64           `gorm:"primaryKey"`
	RequestID      int64           `gorm:"column:request_id;not null;index"`
	DocumentTypeID int64           `gorm:"column:document_type_id;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

func (RequestItem) TableName() string { return "document_request_items" }
