package docrequest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/document-request/internal"
	paymentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/payment"
	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/docrequest"
	"github.com/frahmantamala/document-request/internal/intent"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/paymentgateway"
)

func submitDTO(method string) *docrequest.SubmitRequestDTO {
	return &docrequest.SubmitRequestDTO{
		StudentInfo: docrequest.StudentInfo{
			StudentID:   "2024-0001",
			StudentName: "Dela Cruz, Juan Miguel",
			Grade:       "10",
			Section:     "Rizal",
			ContactNo:   "09171234567",
			Email:       "juan@example.com",
		},
		SelectedDocs: []docrequest.SelectedDoc{
			{ID: 1, Quantity: 2},
			{ID: 2, Quantity: 1},
		},
		PaymentMethod: method,
	}
}

func appErrorCode(err error) internal.ErrorCode {
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr.Code
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		repo      *mockRepository
		catalog   *mockCatalog
		checkout  *mockCheckout
		intents   *intent.MemoryStore
		notifier  *mockNotifier
		publisher *mockPublisher
		service   *docrequest.Service
	)

	// Monday
	submittedAt := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

	BeforeEach(func() {
		ctx = context.Background()
		silent := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo = newMockRepository()
		catalog = newMockCatalog()
		checkout = &mockCheckout{session: &paymentgateway.CheckoutSession{
			ID:          "cs_checkout0001",
			CheckoutURL: "https://checkout.example.com/cs_checkout0001",
		}}
		intents = intent.NewMemoryStore(time.Hour, intent.WithLogger(silent))
		notifier = &mockNotifier{outcome: notification.Outcome{SMSSent: true, NotificationCreated: true}}
		publisher = &mockPublisher{}
		service = docrequest.NewService(docrequest.ServiceDeps{
			Repo:      repo,
			Catalog:   catalog,
			Checkout:  checkout,
			Intents:   intents,
			Notifier:  notifier,
			Publisher: publisher,
			Logger:    silent,
		}).WithClock(func() time.Time { return submittedAt })
	})

	Describe("Submit", func() {
		Context("with cash", func() {
			It("persists a pending request without a session and notifies", func() {
				resp, err := service.Submit(ctx, submitDTO("cash"))

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Success).To(BeTrue())
				Expect(resp.RequestID).To(Equal(int64(1)))
				Expect(resp.Amount).To(Equal("250.00"))
				Expect(resp.ScheduledPickup).To(Equal("2026-10-22"))
				Expect(resp.CheckoutURL).To(BeEmpty())
				Expect(resp.SMSSent).To(BeTrue())

				stored := repo.payments[resp.RequestID]
				Expect(stored.GatewaySessionID).To(BeEmpty())
				Expect(stored.PaymentStatus).To(Equal(paymentmodel.StatusPending))
				Expect(stored.PaidAt).To(BeNil())

				Expect(notifier.count()).To(Equal(1))
				Expect(notifier.notices[0].PaymentMethod).To(Equal("cash"))
				Expect(checkout.requests).To(BeEmpty())
				Expect(intents.Len()).To(BeZero())
				Expect(publisher.ofType(events.EventTypeDocumentRequestSubmitted)).To(HaveLen(1))
			})

			It("accepts the payment method in any case", func() {
				resp, err := service.Submit(ctx, submitDTO("CASH"))

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.PaymentMethod).To(Equal("cash"))
			})

			It("returns an internal error when the request cannot be saved", func() {
				repo.persistErrors = []error{errConnectionReset}

				_, err := service.Submit(ctx, submitDTO("cash"))

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodeInternal))
				Expect(notifier.count()).To(BeZero())
			})
		})

		Context("with an online method", func() {
			It("opens a checkout session and stores an intent without persisting", func() {
				resp, err := service.Submit(ctx, submitDTO("gcash"))

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.CheckoutURL).To(Equal("https://checkout.example.com/cs_checkout0001"))
				Expect(resp.SessionID).To(Equal("cs_checkout0001"))
				Expect(resp.RequestID).To(BeZero())
				Expect(repo.count()).To(BeZero())
				Expect(notifier.count()).To(BeZero())

				Expect(checkout.requests).To(HaveLen(1))
				sent := checkout.requests[0]
				Expect(sent.PaymentMethod).To(Equal("gcash"))
				Expect(sent.Items).To(HaveLen(2))
				Expect(sent.Items[0].Name).To(Equal("Transcript of Records"))
				Expect(sent.Items[0].Quantity).To(Equal(2))

				stored, err := intents.Get(ctx, "cs_checkout0001")
				Expect(err).NotTo(HaveOccurred())
				Expect(stored).NotTo(BeNil())
				Expect(stored.PayerID).To(Equal("2024-0001"))
				Expect(stored.TotalAmount.StringFixed(2)).To(Equal("250.00"))
				Expect(stored.ScheduledPickupDate.Format("2006-01-02")).To(Equal("2026-10-22"))
				Expect(stored.Selections).To(HaveLen(2))
			})

			It("reports an unavailable gateway and stores nothing", func() {
				checkout.err = errors.New("gateway returned status 503")

				_, err := service.Submit(ctx, submitDTO("maya"))

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodeGatewayUnavailable))
				Expect(intents.Len()).To(BeZero())
			})
		})

		Context("with an invalid body", func() {
			It("rejects an unknown payment method", func() {
				_, err := service.Submit(ctx, submitDTO("bitcoin"))

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodeValidationFailed))
			})

			It("rejects an empty selection", func() {
				dto := submitDTO("cash")
				dto.SelectedDocs = nil

				_, err := service.Submit(ctx, dto)

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodeValidationFailed))
			})

			It("rejects a zero quantity", func() {
				dto := submitDTO("cash")
				dto.SelectedDocs[0].Quantity = 0

				_, err := service.Submit(ctx, dto)

				Expect(err).To(HaveOccurred())
				Expect(repo.count()).To(BeZero())
			})

			It("rejects an inactive document type", func() {
				dto := submitDTO("cash")
				dto.SelectedDocs = []docrequest.SelectedDoc{{ID: 3, Quantity: 1}}

				_, err := service.Submit(ctx, dto)

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodeUnknownDocumentType))
			})

			It("rejects a tampered price", func() {
				dto := submitDTO("gcash")
				cheap := decimal.NewFromInt(1)
				dto.SelectedDocs[0].Price = &cheap

				_, err := service.Submit(ctx, dto)

				Expect(appErrorCode(err)).To(Equal(internal.ErrCodePriceMismatch))
				Expect(checkout.requests).To(BeEmpty())
			})

			It("accepts a price that matches the catalog", func() {
				dto := submitDTO("cash")
				price := mustDecimal("100")
				dto.SelectedDocs[0].Price = &price

				_, err := service.Submit(ctx, dto)

				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("Cancel", func() {
		It("removes the intent for the cancelled session", func() {
			_, err := service.Submit(ctx, submitDTO("gcash"))
			Expect(err).NotTo(HaveOccurred())

			service.Cancel(ctx, "cs_checkout0001")

			Expect(intents.Len()).To(BeZero())
		})

		It("ignores placeholder ids", func() {
			_, err := service.Submit(ctx, submitDTO("gcash"))
			Expect(err).NotTo(HaveOccurred())

			service.Cancel(ctx, "{CHECKOUT_SESSION_ID}")

			Expect(intents.Len()).To(Equal(1))
		})
	})

	Describe("GetByID", func() {
		BeforeEach(func() {
			_, err := service.Submit(ctx, submitDTO("cash"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the request to its owner", func() {
			req, err := service.GetByID(ctx, 1, "2024-0001", false)

			Expect(err).NotTo(HaveOccurred())
			Expect(req.StudentID).To(Equal("2024-0001"))
		})

		It("returns any request to an admin", func() {
			_, err := service.GetByID(ctx, 1, "registrar", true)

			Expect(err).NotTo(HaveOccurred())
		})

		It("hides the request from other students", func() {
			_, err := service.GetByID(ctx, 1, "2024-0002", false)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("reports a missing request", func() {
			_, err := service.GetByID(ctx, 99, "2024-0001", false)

			Expect(err).To(Equal(internal.ErrRequestNotFound))
		})
	})

	Describe("UpdateStatus", func() {
		BeforeEach(func() {
			_, err := service.Submit(ctx, submitDTO("cash"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts Ongoing as processing and reschedules pickup", func() {
			req, err := service.UpdateStatus(ctx, 1, &docrequest.UpdateStatusDTO{
				Status:                "Ongoing",
				RescheduledPickupDate: "2026-10-30",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(req.Status).To(Equal(docrequest.StatusProcessing))
			Expect(req.PickupDate().Format("2006-01-02")).To(Equal("2026-10-30"))
		})

		It("rejects unknown statuses", func() {
			_, err := service.UpdateStatus(ctx, 1, &docrequest.UpdateStatusDTO{Status: "shipped"})

			Expect(appErrorCode(err)).To(Equal(internal.ErrCodeInvalidStatus))
		})

		It("rejects a malformed reschedule date", func() {
			_, err := service.UpdateStatus(ctx, 1, &docrequest.UpdateStatusDTO{Status: "processing", RescheduledPickupDate: "30/10/2026"})

			Expect(appErrorCode(err)).To(Equal(internal.ErrCodeValidationFailed))
		})

		It("keeps terminal statuses frozen", func() {
			_, err := service.UpdateStatus(ctx, 1, &docrequest.UpdateStatusDTO{Status: "completed"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdateStatus(ctx, 1, &docrequest.UpdateStatusDTO{Status: "pending"})

			Expect(err).To(Equal(internal.ErrInvalidStatusTransition))
		})
	})
})

var _ = Describe("ParseStatus", func() {
	DescribeTable("known statuses",
		func(raw string, want docrequest.Status) {
			got, err := docrequest.ParseStatus(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("lower case", "pending", docrequest.StatusPending),
		Entry("upper case", "COMPLETED", docrequest.StatusCompleted),
		Entry("ongoing alias", "Ongoing", docrequest.StatusProcessing),
		Entry("spaced", "Ready for pickup", docrequest.StatusReadyForPickup),
		Entry("cancelled", "cancelled", docrequest.StatusCancelled),
	)

	It("rejects unknown values", func() {
		_, err := docrequest.ParseStatus("lost")
		Expect(err).To(MatchError(docrequest.ErrUnknownStatus))
	})

	It("marks only completed, rejected and cancelled as terminal", func() {
		for _, s := range []docrequest.Status{docrequest.StatusCompleted, docrequest.StatusRejected, docrequest.StatusCancelled} {
			Expect(s.IsTerminal()).To(BeTrue())
		}
		for _, s := range []docrequest.Status{docrequest.StatusPending, docrequest.StatusProcessing, docrequest.StatusReadyForPickup, docrequest.StatusApproved} {
			Expect(s.IsTerminal()).To(BeFalse())
		}
	})
})

var _ = Describe("PickupDate", func() {
	DescribeTable("adds three business days",
		func(from, want string) {
			start, err := time.Parse("2006-01-02 15:04", from)
			Expect(err).NotTo(HaveOccurred())
			Expect(docrequest.PickupDate(start).Format("2006-01-02")).To(Equal(want))
		},
		Entry("monday", "2026-10-19 14:30", "2026-10-22"),
		Entry("thursday skips the weekend", "2026-10-22 09:00", "2026-10-27"),
		Entry("friday", "2026-10-23 17:00", "2026-10-28"),
		Entry("saturday", "2026-10-24 10:00", "2026-10-28"),
		Entry("sunday", "2026-10-25 10:00", "2026-10-28"),
	)
})
