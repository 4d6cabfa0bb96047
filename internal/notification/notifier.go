package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	notificationmodel "github.com/frahmantamala/document-request/internal/core/datamodel/notification"
	"github.com/frahmantamala/document-request/internal/sms"
	"github.com/frahmantamala/document-request/pkg/logger"
	"github.com/frahmantamala/document-request/pkg/metrics"
)

type RepositoryAPI interface {
	Create(ctx context.Context, n *notificationmodel.Notification) error
}

type Notice struct {
	RequestID     int64
	StudentID     string
	StudentName   string
	Phone         string
	Amount        decimal.Decimal
	PickupDate    time.Time
	PaymentMethod string
}

type Outcome struct {
	SMSSent             bool
	NotificationCreated bool
}

// Notifier sends the SMS and writes the in-app notification for a new
// request. Neither failure is returned to the caller.
type Notifier struct {
	sender    sms.Sender
	repo      RepositoryAPI
	templates []Template
	logger    *slog.Logger
	metrics   *metrics.Reconciliation
}

func NewNotifier(sender sms.Sender, repo RepositoryAPI, lg *slog.Logger, m *metrics.Reconciliation) *Notifier {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Notifier{
		sender:    sender,
		repo:      repo,
		templates: DefaultTemplates(),
		logger:    lg,
		metrics:   m,
	}
}

// WithTemplates replaces the ordered template list.
func (n *Notifier) WithTemplates(templates ...Template) *Notifier {
	n.templates = templates
	return n
}

func (n *Notifier) Notify(ctx context.Context, notice Notice) Outcome {
	outcome := Outcome{
		SMSSent:             n.sendSMS(ctx, notice),
		NotificationCreated: n.createNotification(ctx, notice),
	}
	n.metrics.IncSMS(outcome.SMSSent)
	n.metrics.IncNotification(outcome.NotificationCreated)
	return outcome
}

func (n *Notifier) sendSMS(ctx context.Context, notice Notice) bool {
	log := n.logger.With("request_id", notice.RequestID)

	if n.sender == nil {
		return false
	}

	number, err := NormalizePhone(notice.Phone)
	if err != nil {
		log.Warn("skipping sms, invalid phone number", "phone", notice.Phone, "error", err)
		return false
	}

	for i, tmpl := range n.templates {
		msg := truncate(tmpl(notice))
		err := n.sender.Send(ctx, number, msg)
		if err == nil {
			log.Info("sms sent", "number", number, "template", i)
			return true
		}
		if !errors.Is(err, sms.ErrContentRejected) {
			log.Error("sms send failed", "number", number, "template", i, "error", err)
			return false
		}
		log.Warn("sms rejected by content filter, trying next template", "template", i, "error", err)
	}

	log.Error("sms rejected for every template", "number", number)
	return false
}

func (n *Notifier) createNotification(ctx context.Context, notice Notice) bool {
	if n.repo == nil {
		return false
	}
	row := &notificationmodel.Notification{
		StudentID: notice.StudentID,
		Message:   inAppMessage(notice),
	}
	if err := n.repo.Create(ctx, row); err != nil {
		n.logger.Error("failed to create notification",
			"request_id", notice.RequestID,
			"student_id", notice.StudentID,
			"error", err)
		return false
	}
	return true
}
