package paymentgateway

import (
	"errors"
)

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
)

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"

	IntentStatusSucceeded = "succeeded"
)

// CheckoutSessionResponse is the envelope returned by the checkout session endpoints.
type CheckoutSessionResponse struct {
	Data CheckoutSessionData `json:"data"`
}

type CheckoutSessionData struct {
	ID         string                    `json:"id"`
	Type       string                    `json:"type"`
	Attributes CheckoutSessionAttributes `json:"attributes"`
}

type CheckoutSessionAttributes struct {
	CheckoutURL        string         `json:"checkout_url"`
	Status             SessionStatus  `json:"status"`
	ReferenceNumber    string         `json:"reference_number"`
	PaymentMethodUsed  string         `json:"payment_method_used"`
	PaymentIntent      *PaymentIntent `json:"payment_intent"`
	Payments           []Payment      `json:"payments"`
	LineItems          []LineItem     `json:"line_items"`
	PaymentMethodTypes []string       `json:"payment_method_types"`
	SuccessURL         string         `json:"success_url"`
	CancelURL          string         `json:"cancel_url"`
	Description        string         `json:"description"`
}

type PaymentIntent struct {
	ID         string                  `json:"id"`
	Attributes PaymentIntentAttributes `json:"attributes"`
}

type PaymentIntentAttributes struct {
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type Payment struct {
	ID         string            `json:"id"`
	Attributes PaymentAttributes `json:"attributes"`
}

type PaymentAttributes struct {
	Amount int64  `json:"amount"`
	Status string `json:"status"`
	PaidAt int64  `json:"paid_at"`
}

type LineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

// CreateCheckoutSessionRequest is the body sent to open a hosted checkout.
type CreateCheckoutSessionRequest struct {
	Data struct {
		Attributes CreateCheckoutAttributes `json:"attributes"`
	} `json:"data"`
}

type CreateCheckoutAttributes struct {
	LineItems           []LineItem        `json:"line_items"`
	PaymentMethodTypes  []string          `json:"payment_method_types"`
	SuccessURL          string            `json:"success_url"`
	CancelURL           string            `json:"cancel_url"`
	Description         string            `json:"description,omitempty"`
	ReferenceNumber     string            `json:"reference_number,omitempty"`
	SendEmailReceipt    bool              `json:"send_email_receipt"`
	ShowDescription     bool              `json:"show_description"`
	ShowLineItems       bool              `json:"show_line_items"`
	Billing             *Billing          `json:"billing,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

type Billing struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	attrs := r.Data.Attributes
	if len(attrs.LineItems) == 0 {
		return errors.New("line_items is required")
	}
	for _, item := range attrs.LineItems {
		if item.Amount <= 0 {
			return errors.New("line item amount must be greater than 0")
		}
		if item.Quantity <= 0 {
			return errors.New("line item quantity must be greater than 0")
		}
	}
	if len(attrs.PaymentMethodTypes) == 0 {
		return errors.New("payment_method_types is required")
	}
	if attrs.SuccessURL == "" || attrs.CancelURL == "" {
		return errors.New("success_url and cancel_url are required")
	}
	return nil
}

// Paid reports whether the gateway considers the session settled.
func (a CheckoutSessionAttributes) Paid() bool {
	if a.PaymentIntent != nil && a.PaymentIntent.Attributes.Status == IntentStatusSucceeded {
		return true
	}
	for _, p := range a.Payments {
		if p.Attributes.Status == PaymentStatusPaid {
			return true
		}
	}
	return false
}

// AmountPaid sums the settled payments in centavos.
func (a CheckoutSessionAttributes) AmountPaid() int64 {
	var total int64
	for _, p := range a.Payments {
		if p.Attributes.Status == PaymentStatusPaid {
			total += p.Attributes.Amount
		}
	}
	if total == 0 && a.PaymentIntent != nil && a.PaymentIntent.Attributes.Status == IntentStatusSucceeded {
		total = a.PaymentIntent.Attributes.Amount
	}
	return total
}
