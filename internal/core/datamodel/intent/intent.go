package intent

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent records what a student is paying for between opening a
// gateway checkout session and reconciling it. It is never mutated.
type PaymentIntent struct {
	SessionID           string          `json:"session_id"`
	PayerID             string          `json:"payer_id"`
	PayerName           string          `json:"payer_name"`
	Grade               string          `json:"grade"`
	Section             string          `json:"section"`
	ContactPhone        string          `json:"contact_phone"`
	Email               string          `json:"email"`
	Selections          []Selection     `json:"selections"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	PaymentMethod       string          `json:"payment_method"`
	ScheduledPickupDate time.Time       `json:"scheduled_pickup_date"`
	CreatedAt           time.Time       `json:"created_at"`
}

type Selection struct {
	DocumentTypeID int64           `json:"document_type_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

// Age reports how old the intent is at now.
func (p *PaymentIntent) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}
