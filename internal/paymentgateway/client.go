package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/document-request/internal"
	gatewaytypes "github.com/frahmantamala/document-request/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/document-request/pkg/metrics"
)

// ErrVerificationFailed means the gateway could not be asked, so the caller
// cannot tell whether the session was paid.
var ErrVerificationFailed = errors.New("checkout session verification failed")

const maxResponseBytes = 1 << 20

type Status string

const (
	StatusPaid     Status = "paid"
	StatusUnpaid   Status = "unpaid"
	StatusNotFound Status = "not_found"
)

type Verification struct {
	SessionID  string
	Status     Status
	AmountPaid decimal.Decimal
	Raw        json.RawMessage
}

type CheckoutItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type CheckoutRequest struct {
	ReferenceNumber string
	Description     string
	PaymentMethod   string
	Items           []CheckoutItem
	BillingName     string
	BillingEmail    string
	BillingPhone    string
}

type CheckoutSession struct {
	ID          string
	CheckoutURL string
}

type Config struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Reconciliation
}

func NewClient(config Config, logger *slog.Logger, m *metrics.Reconciliation) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		secretKey:  config.SecretKey,
		successURL: config.SuccessURL,
		cancelURL:  config.CancelURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

// Verify asks the gateway for the current state of a checkout session.
// Malformed ids are rejected without a network call.
func (c *Client) Verify(ctx context.Context, sessionID string) (Verification, error) {
	id, err := ParseSessionID(sessionID)
	if err != nil {
		return Verification{}, err
	}

	start := time.Now()
	verification, err := c.fetchSession(ctx, id)
	result := string(verification.Status)
	if err != nil {
		result = "error"
	}
	c.metrics.ObserveVerify(result, time.Since(start))

	if err != nil {
		c.logger.Warn("checkout session verification failed", "session_id", id, "error", err)
		return Verification{SessionID: id}, err
	}

	c.logger.Info("checkout session verified",
		"session_id", id,
		"status", verification.Status,
		"amount_paid", verification.AmountPaid.StringFixed(2))

	return verification, nil
}

func (c *Client) fetchSession(ctx context.Context, id string) (Verification, error) {
	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/checkout_sessions/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: build request: %v", ErrVerificationFailed, err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Verification{}, fmt.Errorf("%w: read response: %v", ErrVerificationFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Verification{SessionID: id, Status: StatusNotFound}, nil
	case resp.StatusCode != http.StatusOK:
		return Verification{}, fmt.Errorf("%w: gateway returned status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var session gatewaytypes.CheckoutSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return Verification{}, fmt.Errorf("%w: decode response: %v", ErrVerificationFailed, err)
	}

	v := Verification{
		SessionID: id,
		Status:    StatusUnpaid,
		Raw:       json.RawMessage(body),
	}
	if session.Data.Attributes.Paid() {
		v.Status = StatusPaid
		v.AmountPaid = FromCentavos(session.Data.Attributes.AmountPaid())
	}
	return v, nil
}

// CreateCheckoutSession opens a hosted checkout for an online payment and
// returns the session id the redirect will carry back.
func (c *Client) CreateCheckoutSession(ctx context.Context, checkout CheckoutRequest) (*CheckoutSession, error) {
	methodType, err := gatewayMethodType(checkout.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var body gatewaytypes.CreateCheckoutSessionRequest
	attrs := gatewaytypes.CreateCheckoutAttributes{
		PaymentMethodTypes: []string{methodType},
		SuccessURL:         withSessionPlaceholder(c.successURL),
		CancelURL:          withSessionPlaceholder(c.cancelURL),
		Description:        checkout.Description,
		ReferenceNumber:    checkout.ReferenceNumber,
		ShowDescription:    checkout.Description != "",
		ShowLineItems:      true,
	}
	for _, item := range checkout.Items {
		attrs.LineItems = append(attrs.LineItems, gatewaytypes.LineItem{
			Name:     item.Name,
			Amount:   ToCentavos(item.UnitPrice),
			Currency: "PHP",
			Quantity: item.Quantity,
		})
	}
	if checkout.BillingName != "" || checkout.BillingEmail != "" {
		attrs.Billing = &gatewaytypes.Billing{
			Name:  checkout.BillingName,
			Email: checkout.BillingEmail,
			Phone: checkout.BillingPhone,
		}
	}
	body.Data.Attributes = attrs

	if err := body.Validate(); err != nil {
		c.logger.Error("checkout session request validation failed", "error", err)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout_sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var session gatewaytypes.CheckoutSessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if _, err := ParseSessionID(session.Data.ID); err != nil {
		return nil, fmt.Errorf("gateway returned unusable session id %q: %w", session.Data.ID, err)
	}

	c.logger.Info("checkout session created",
		"session_id", session.Data.ID,
		"reference_number", checkout.ReferenceNumber,
		"payment_method", checkout.PaymentMethod)

	return &CheckoutSession{
		ID:          session.Data.ID,
		CheckoutURL: session.Data.Attributes.CheckoutURL,
	}, nil
}

func gatewayMethodType(method string) (string, error) {
	switch strings.ToLower(method) {
	case "gcash":
		return "gcash", nil
	case "maya":
		return "paymaya", nil
	}
	return "", fmt.Errorf("payment method %q has no hosted checkout", method)
}

func withSessionPlaceholder(base string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "session_id={CHECKOUT_SESSION_ID}"
}

// ToCentavos converts a peso amount into the gateway's integer minor units.
func ToCentavos(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromCentavos(centavos int64) decimal.Decimal {
	return decimal.New(centavos, -2)
}
