package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Payment is the payment-status row kept next to each document request.
type Payment struct {
	ID               int64           `gorm:"primaryKey"`
	RequestID        int64           `gorm:"column:request_id;not null;uniqueIndex"`
	Method           string          `gorm:"column:method;not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Status           string          `gorm:"column:status;not null;default:pending"`
	GatewaySessionID *string         `gorm:"column:gateway_session_id"`
	GatewayResponse  datatypes.JSON  `gorm:"column:gateway_response"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
