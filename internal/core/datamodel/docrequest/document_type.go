package docrequest

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentType struct {
	ID        int64           `gorm:"primaryKey" db:"id"`
	Name      string          `gorm:"column:name;uniqueIndex;not null" db:"name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" db:"price"`
	IsActive  bool            `gorm:"column:is_active;default:true" db:"is_active"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" db:"updated_at"`
}

func (DocumentType) TableName() string { return "document_types" }
