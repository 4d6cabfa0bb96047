package docrequest_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	intentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/intent"
	paymentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/payment"
	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/docrequest"
	"github.com/frahmantamala/document-request/internal/intent"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/paymentgateway"
	"github.com/frahmantamala/document-request/pkg/logger"
)

const (
	sessionA = "cs_alpha123456"
	sessionB = "cs_bravo123456"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func pendingIntent(sessionID string) *intentmodel.PaymentIntent {
	return &intentmodel.PaymentIntent{
		SessionID:    sessionID,
		PayerID:      "2024-0001",
		PayerName:    "Dela Cruz, Juan Miguel",
		Grade:        "10",
		Section:      "Rizal",
		ContactPhone: "09171234567",
		Email:        "juan@example.com",
		Selections: []intentmodel.Selection{
			{DocumentTypeID: 1, Quantity: 1, UnitPrice: mustDecimal("100.00")},
			{DocumentTypeID: 2, Quantity: 1, UnitPrice: mustDecimal("50.00")},
		},
		TotalAmount:         mustDecimal("150.00"),
		PaymentMethod:       "gcash",
		ScheduledPickupDate: time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
	}
}

// brokenIntentStore fails every read while writes still reach the memory store.
type brokenIntentStore struct {
	*intent.MemoryStore
	err error
}

func (b *brokenIntentStore) Get(ctx context.Context, sessionID string) (*intentmodel.PaymentIntent, error) {
	return nil, b.err
}

func (b *brokenIntentStore) FindMostRecentUnexpired(ctx context.Context, maxAge time.Duration) (*intentmodel.PaymentIntent, error) {
	return nil, b.err
}

var _ = Describe("Reconciler", func() {
	var (
		ctx        context.Context
		clock      *testClock
		verifier   *mockVerifier
		intents    *intent.MemoryStore
		repo       *mockRepository
		notifier   *mockNotifier
		publisher  *mockPublisher
		reconciler *docrequest.Reconciler
		cfg        docrequest.ReconcilerConfig
	)

	build := func() {
		reconciler = docrequest.NewReconciler(docrequest.ReconcilerDeps{
			Verifier:  verifier,
			Intents:   intents,
			Repo:      repo,
			Notifier:  notifier,
			Publisher: publisher,
		}, cfg)
	}

	BeforeEach(func() {
		silent := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = logger.Attach(context.Background(), silent)
		clock = &testClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
		verifier = newMockVerifier()
		intents = intent.NewMemoryStore(time.Hour, intent.WithClock(clock.Now), intent.WithLogger(silent))
		repo = newMockRepository()
		notifier = &mockNotifier{outcome: notification.Outcome{SMSSent: true, NotificationCreated: true}}
		publisher = &mockPublisher{}
		cfg = docrequest.ReconcilerConfig{FallbackMaxAge: 600 * time.Second}
		build()
	})

	Context("when the session is paid and the intent exists", func() {
		BeforeEach(func() {
			verifier.paid(sessionA, "150.00")
			Expect(intents.Put(ctx, pendingIntent(sessionA))).To(Succeed())
		})

		It("persists exactly one request and notifies once", func() {
			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeTrue())
			Expect(res.Duplicate).To(BeFalse())
			Expect(res.RequestID).To(Equal(int64(1)))
			Expect(res.Amount.StringFixed(2)).To(Equal("150.00"))
			Expect(res.PaymentMethod).To(Equal("gcash"))
			Expect(res.StudentName).To(Equal("Dela Cruz, Juan Miguel"))
			Expect(res.SMSSent).To(BeTrue())
			Expect(res.NotificationCreated).To(BeTrue())

			Expect(repo.count()).To(Equal(1))
			Expect(notifier.count()).To(Equal(1))
			Expect(notifier.notices[0].Phone).To(Equal("09171234567"))
		})

		It("stores the payment as paid with the gateway payload", func() {
			res := reconciler.Reconcile(ctx, sessionA)

			stored := repo.payments[res.RequestID]
			Expect(stored.PaymentStatus).To(Equal(paymentmodel.StatusPaid))
			Expect(stored.PaidAt).NotTo(BeNil())
			Expect(stored.GatewaySessionID).To(Equal(sessionA))
			Expect(string(stored.GatewayResponse)).To(ContainSubstring(sessionA))
			Expect(stored.Items).To(HaveLen(2))
		})

		It("consumes the intent and publishes a reconciled event", func() {
			reconciler.Reconcile(ctx, sessionA)

			got, err := intents.Get(ctx, sessionA)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())

			published := publisher.ofType(events.EventTypeDocumentRequestReconciled)
			Expect(published).To(HaveLen(1))
			evt := published[0].(*events.DocumentRequestReconciledEvent)
			Expect(evt.SessionID).To(Equal(sessionA))
			Expect(evt.RequestID).To(Equal(int64(1)))
		})

		It("reports a replayed redirect as a duplicate without notifying again", func() {
			first := reconciler.Reconcile(ctx, sessionA)
			second := reconciler.Reconcile(ctx, sessionA)

			Expect(second.Success).To(BeTrue())
			Expect(second.Duplicate).To(BeTrue())
			Expect(second.RequestID).To(Equal(first.RequestID))
			Expect(second.Amount.Equal(first.Amount)).To(BeTrue())
			Expect(second.SMSSent).To(BeFalse())
			Expect(repo.count()).To(Equal(1))
			Expect(notifier.count()).To(Equal(1))
		})

		It("keeps success when notification fails", func() {
			notifier.outcome = notification.Outcome{}

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeTrue())
			Expect(res.SMSSent).To(BeFalse())
			Expect(res.NotificationCreated).To(BeFalse())
			Expect(repo.count()).To(Equal(1))
		})

		It("treats a concurrent insert of the same session as a duplicate", func() {
			repo.beforePersist = func() {
				_, err := repo.Persist(ctx, &docrequest.NewRequest{
					StudentID:        "2024-0001",
					StudentName:      "Dela Cruz, Juan Miguel",
					PaymentMethod:    docrequest.PaymentMethodGCash,
					TotalAmount:      mustDecimal("150.00"),
					GatewaySessionID: sessionA,
				})
				Expect(err).NotTo(HaveOccurred())
			}

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeTrue())
			Expect(res.Duplicate).To(BeTrue())
			Expect(res.RequestID).To(Equal(int64(1)))
			Expect(repo.count()).To(Equal(1))
			Expect(notifier.count()).To(BeZero())
		})

		It("creates one request when many redirects race", func() {
			const workers = 8
			results := make([]docrequest.Result, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					results[i] = reconciler.Reconcile(ctx, sessionA)
				}(i)
			}
			wg.Wait()

			created := 0
			for _, res := range results {
				Expect(res.Success).To(BeTrue())
				Expect(res.RequestID).To(Equal(int64(1)))
				if !res.Duplicate {
					created++
				}
			}
			Expect(created).To(Equal(1))
			Expect(repo.count()).To(Equal(1))
			Expect(notifier.count()).To(Equal(1))
		})

		It("leaves the intent in place after a database failure so a retry succeeds", func() {
			repo.persistErrors = []error{errConnectionReset}

			failed := reconciler.Reconcile(ctx, sessionA)
			Expect(failed.Success).To(BeFalse())
			Expect(failed.ErrorCode).To(Equal(docrequest.CodeDBError))
			Expect(repo.count()).To(BeZero())

			got, err := intents.Get(ctx, sessionA)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())

			retried := reconciler.Reconcile(ctx, sessionA)
			Expect(retried.Success).To(BeTrue())
			Expect(retried.Duplicate).To(BeFalse())
			Expect(repo.count()).To(Equal(1))
		})
	})

	Context("when the session id is malformed", func() {
		It("fails with invalid_session without calling the gateway", func() {
			res := reconciler.Reconcile(ctx, "not-a-session")

			Expect(res.Success).To(BeFalse())
			Expect(res.ErrorCode).To(Equal(docrequest.CodeInvalidSession))
			Expect(verifier.callCount()).To(BeZero())
		})
	})

	Context("when the redirect carries a placeholder", func() {
		It("falls back to the newest intent and verifies its session", func() {
			Expect(intents.Put(ctx, pendingIntent(sessionB))).To(Succeed())
			verifier.paid(sessionB, "150.00")

			res := reconciler.Reconcile(ctx, "{CHECKOUT_SESSION_ID}")

			Expect(res.Success).To(BeTrue())
			Expect(verifier.calls).To(Equal([]string{sessionB}))
			Expect(repo.rows[res.RequestID].GatewaySessionID).To(Equal(sessionB))
		})

		It("refuses a fallback intent whose session is unpaid", func() {
			Expect(intents.Put(ctx, pendingIntent(sessionB))).To(Succeed())

			res := reconciler.Reconcile(ctx, "")

			Expect(res.Success).To(BeFalse())
			Expect(res.ErrorCode).To(Equal(docrequest.CodePaymentNotCompleted))
			Expect(repo.count()).To(BeZero())
		})

		It("does not use intents older than the fallback window", func() {
			Expect(intents.Put(ctx, pendingIntent(sessionB))).To(Succeed())
			verifier.paid(sessionB, "150.00")
			clock.Advance(600 * time.Second)

			res := reconciler.Reconcile(ctx, "{checkout_session_id}")

			Expect(res.ErrorCode).To(Equal(docrequest.CodeSessionNotFound))
		})
	})

	Context("when no intent can be found", func() {
		It("fails with session_not_found", func() {
			verifier.paid(sessionA, "150.00")

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeFalse())
			Expect(res.ErrorCode).To(Equal(docrequest.CodeSessionNotFound))
			Expect(repo.count()).To(BeZero())
		})

		It("never charges a paid session to another student's intent", func() {
			verifier.paid(sessionA, "150.00")
			verifier.paid(sessionB, "150.00")
			other := pendingIntent(sessionB)
			other.PayerID = "2024-0002"
			other.PayerName = "Santos, Maria"
			Expect(intents.Put(ctx, other)).To(Succeed())

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeFalse())
			Expect(res.ErrorCode).To(Equal(docrequest.CodeSessionNotFound))
			Expect(repo.count()).To(BeZero())
			got, _ := intents.Get(ctx, sessionB)
			Expect(got).NotTo(BeNil())

			res = reconciler.Reconcile(ctx, sessionB)

			Expect(res.Success).To(BeTrue())
			Expect(res.StudentName).To(Equal("Santos, Maria"))
			Expect(repo.rows[res.RequestID].GatewaySessionID).To(Equal(sessionB))
		})

		It("does not borrow another intent in soft mode either", func() {
			verifier.err = fmt.Errorf("%w: dial tcp: i/o timeout", paymentgateway.ErrVerificationFailed)
			cfg.SoftVerify = true
			build()
			Expect(intents.Put(ctx, pendingIntent(sessionB))).To(Succeed())

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodeSessionNotFound))
			Expect(repo.count()).To(BeZero())
			got, _ := intents.Get(ctx, sessionB)
			Expect(got).NotTo(BeNil())
		})
	})

	Context("when the intent store cannot be read", func() {
		var broken *brokenIntentStore

		BeforeEach(func() {
			broken = &brokenIntentStore{MemoryStore: intents, err: errConnectionReset}
			reconciler = docrequest.NewReconciler(docrequest.ReconcilerDeps{
				Verifier:  verifier,
				Intents:   broken,
				Repo:      repo,
				Notifier:  notifier,
				Publisher: publisher,
			}, cfg)
			verifier.paid(sessionA, "150.00")
			verifier.paid(sessionB, "150.00")
			Expect(intents.Put(ctx, pendingIntent(sessionB))).To(Succeed())
		})

		It("fails with a retryable db_error instead of falling back", func() {
			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodeDBError))
			Expect(repo.count()).To(BeZero())
			got, _ := intents.Get(ctx, sessionB)
			Expect(got).NotTo(BeNil())
		})

		It("fails with db_error when the fallback lookup errors", func() {
			res := reconciler.Reconcile(ctx, "{CHECKOUT_SESSION_ID}")

			Expect(res.ErrorCode).To(Equal(docrequest.CodeDBError))
			Expect(repo.count()).To(BeZero())
		})
	})

	Context("when the gateway does not confirm payment", func() {
		BeforeEach(func() {
			Expect(intents.Put(ctx, pendingIntent(sessionA))).To(Succeed())
		})

		It("fails with payment_not_completed and keeps the intent", func() {
			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodePaymentNotCompleted))
			Expect(repo.count()).To(BeZero())
			got, _ := intents.Get(ctx, sessionA)
			Expect(got).NotTo(BeNil())
		})

		It("maps an unknown session to invalid_session", func() {
			verifier.results[sessionA] = paymentgateway.Verification{SessionID: sessionA, Status: paymentgateway.StatusNotFound}

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodeInvalidSession))
		})

		It("fails with verification_failed when the gateway is unreachable", func() {
			verifier.err = fmt.Errorf("%w: dial tcp: i/o timeout", paymentgateway.ErrVerificationFailed)

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodeVerificationFailed))
			Expect(repo.count()).To(BeZero())
		})

		It("continues past an unreachable gateway in soft mode", func() {
			verifier.err = fmt.Errorf("%w: dial tcp: i/o timeout", paymentgateway.ErrVerificationFailed)
			cfg.SoftVerify = true
			build()

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.Success).To(BeTrue())
			Expect(repo.count()).To(Equal(1))
		})

		It("still refuses unpaid sessions in soft mode", func() {
			cfg.SoftVerify = true
			build()

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodePaymentNotCompleted))
		})
	})

	Context("when the duplicate check cannot reach the database", func() {
		It("fails with db_error", func() {
			verifier.paid(sessionA, "150.00")
			Expect(intents.Put(ctx, pendingIntent(sessionA))).To(Succeed())
			repo.findError = errConnectionReset

			res := reconciler.Reconcile(ctx, sessionA)

			Expect(res.ErrorCode).To(Equal(docrequest.CodeDBError))
		})
	})
})
