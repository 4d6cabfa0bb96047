package notification_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	notificationmodel "github.com/frahmantamala/document-request/internal/core/datamodel/notification"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/sms"
)

type sentMessage struct {
	number  string
	message string
}

type mockSender struct {
	sent   []sentMessage
	errors []error
}

func (m *mockSender) Send(ctx context.Context, number, message string) error {
	m.sent = append(m.sent, sentMessage{number: number, message: message})
	if len(m.errors) >= len(m.sent) {
		return m.errors[len(m.sent)-1]
	}
	return nil
}

type mockNotificationRepository struct {
	rows        []*notificationmodel.Notification
	createError error
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *notificationmodel.Notification) error {
	if m.createError != nil {
		return m.createError
	}
	n.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

var _ = Describe("FirstName", func() {
	DescribeTable("parses the given name",
		func(full, want string) {
			Expect(notification.FirstName(full)).To(Equal(want))
		},
		Entry("surname first", "Dela Cruz, Juan Miguel", "Juan"),
		Entry("extra spaces", "  Santos ,   Maria   Clara ", "Maria"),
		Entry("no comma", "Jose Rizal", "Jose"),
		Entry("empty", "", "Student"),
		Entry("comma only", "Reyes,", "Student"),
	)
})

var _ = Describe("NormalizePhone", func() {
	DescribeTable("accepts local mobile formats",
		func(raw string) {
			n, err := notification.NormalizePhone(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal("639171234567"))
		},
		Entry("local", "09171234567"),
		Entry("no leading zero", "9171234567"),
		Entry("international", "639171234567"),
		Entry("plus and spaces", "+63 917 123 4567"),
		Entry("dashes", "0917-123-4567"),
		Entry("parentheses", "(0917) 123.4567"),
	)

	DescribeTable("rejects anything else",
		func(raw string) {
			_, err := notification.NormalizePhone(raw)
			Expect(err).To(MatchError(notification.ErrInvalidPhone))
		},
		Entry("empty", ""),
		Entry("landline", "0281234567"),
		Entry("too short", "0917123456"),
		Entry("letters", "0917abc4567"),
		Entry("foreign", "+15551234567"),
	)
})

var _ = Describe("Templates", func() {
	notice := notification.Notice{
		RequestID:     42,
		StudentName:   "Dela Cruz, Juan Miguel",
		Amount:        decimal.NewFromInt(150),
		PickupDate:    time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "gcash",
	}

	It("renders the primary message with the amount and no payment wording for online requests", func() {
		msg := notification.PrimaryTemplate(notice)

		Expect(msg).To(Equal("Hi Juan, your request document #42 is received. Amount: PHP 150.00. Pickup on Oct 22, 2026."))
		Expect(strings.ToLower(msg)).NotTo(ContainSubstring("gcash"))
	})

	It("tells cash payers where to pay", func() {
		cash := notice
		cash.PaymentMethod = "cash"

		Expect(notification.PrimaryTemplate(cash)).To(ContainSubstring("Please pay at the cashier."))
	})

	It("keeps the plain message free of financial terms", func() {
		msg := strings.ToLower(notification.PlainTemplate(notice))

		for _, term := range []string{"php", "amount", "pay", "cash", "150"} {
			Expect(msg).NotTo(ContainSubstring(term))
		}
	})
})

var _ = Describe("Notifier", func() {
	var (
		sender   *mockSender
		repo     *mockNotificationRepository
		notifier *notification.Notifier
		notice   notification.Notice
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		sender = &mockSender{}
		repo = &mockNotificationRepository{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		notifier = notification.NewNotifier(sender, repo, logger, nil)
		notice = notification.Notice{
			RequestID:     42,
			StudentID:     "2024-0001",
			StudentName:   "Dela Cruz, Juan Miguel",
			Phone:         "0917 123 4567",
			Amount:        decimal.NewFromInt(150),
			PickupDate:    time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
			PaymentMethod: "gcash",
		}
	})

	It("sends one SMS and writes one notification", func() {
		outcome := notifier.Notify(ctx, notice)

		Expect(outcome).To(Equal(notification.Outcome{SMSSent: true, NotificationCreated: true}))
		Expect(sender.sent).To(HaveLen(1))
		Expect(sender.sent[0].number).To(Equal("639171234567"))
		Expect(repo.rows).To(HaveLen(1))
		Expect(repo.rows[0].StudentID).To(Equal("2024-0001"))
		Expect(repo.rows[0].Message).To(ContainSubstring("#42"))
	})

	It("retries with the plain template when the content filter rejects the first", func() {
		sender.errors = []error{fmt.Errorf("provider: %w", sms.ErrContentRejected)}

		outcome := notifier.Notify(ctx, notice)

		Expect(outcome.SMSSent).To(BeTrue())
		Expect(sender.sent).To(HaveLen(2))
		Expect(sender.sent[1].message).To(Equal(notification.PlainTemplate(notice)))
	})

	It("gives up when every template is rejected", func() {
		sender.errors = []error{sms.ErrContentRejected, sms.ErrContentRejected}

		outcome := notifier.Notify(ctx, notice)

		Expect(outcome.SMSSent).To(BeFalse())
		Expect(outcome.NotificationCreated).To(BeTrue())
		Expect(sender.sent).To(HaveLen(2))
	})

	It("does not retry on provider outages", func() {
		sender.errors = []error{sms.ErrSendFailed}

		outcome := notifier.Notify(ctx, notice)

		Expect(outcome.SMSSent).To(BeFalse())
		Expect(sender.sent).To(HaveLen(1))
	})

	It("skips SMS for numbers it cannot normalize but still writes the notification", func() {
		notice.Phone = "n/a"

		outcome := notifier.Notify(ctx, notice)

		Expect(outcome).To(Equal(notification.Outcome{SMSSent: false, NotificationCreated: true}))
		Expect(sender.sent).To(BeEmpty())
	})

	It("swallows notification insert failures", func() {
		repo.createError = errors.New("db down")

		outcome := notifier.Notify(ctx, notice)

		Expect(outcome).To(Equal(notification.Outcome{SMSSent: true, NotificationCreated: false}))
	})

	It("caps every message at 160 characters", func() {
		notice.StudentName = "Reyes, " + strings.Repeat("Maximiliano", 20)

		notifier.Notify(ctx, notice)

		Expect(len(sender.sent[0].message)).To(BeNumerically("<=", sms.MaxMessageLength))
	})
})
