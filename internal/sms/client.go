package sms

import (
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

	"github.com/frahmantamala/document-request/internal"
)

var (
	// ErrContentRejected means the provider refused the message text, usually
	// its anti-phishing filter. A different wording may go through.
	ErrContentRejected = errors.New("sms rejected by provider content filter")
	ErrSendFailed      = errors.New("sms send failed")
)

const MaxMessageLength = 160

var filterMarkers = []string{"filter", "blocked", "spam", "phishing", "prohibited"}

type Sender interface {
	Send(ctx context.Context, number, message string) error
}

type Config struct {
	BaseURL    string
	APIKey     string
	SenderName string
	Timeout    time.Duration
}

// Client posts messages to a Semaphore-compatible gateway.
type Client struct {
	baseURL    string
	apiKey     string
	senderName string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type messageResult struct {
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
	Recipient string `json:"recipient"`
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		senderName: config.SenderName,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Send(ctx context.Context, number, message string) error {
	if len(message) > MaxMessageLength {
		return fmt.Errorf("%w: message is %d characters", ErrSendFailed, len(message))
	}

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("number", number)
	form.Set("message", message)
	if c.senderName != "" {
		form.Set("sendername", c.senderName)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v4/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && mentionsFilter(body) {
			return fmt.Errorf("%w: status %d", ErrContentRejected, resp.StatusCode)
		}
		return fmt.Errorf("%w: provider returned status %d", ErrSendFailed, resp.StatusCode)
	}

	var results []messageResult
	if err := json.Unmarshal(body, &results); err != nil {
		// some accounts answer with a bare object; a 2xx is still accepted
		c.logger.Debug("unrecognised sms provider response", "body", string(body))
		return nil
	}
	if len(results) > 0 {
		switch strings.ToLower(results[0].Status) {
		case "failed", "refunded":
			// a delivery failure says nothing about the wording
			return fmt.Errorf("%w: message %d marked %s", ErrSendFailed, results[0].MessageID, results[0].Status)
		}
	}
	return nil
}

func mentionsFilter(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range filterMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LogSender stands in for the provider when SMS is disabled.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, number, message string) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("sms disabled, message not sent", "number", number, "message", message)
	return nil
}
