package docrequest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/docrequest"
	"github.com/frahmantamala/document-request/internal/intent"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/transport"
)

type stubReconciler struct {
	result   docrequest.Result
	received []string
}

func (s *stubReconciler) Reconcile(ctx context.Context, rawSessionID string) docrequest.Result {
	s.received = append(s.received, rawSessionID)
	return s.result
}

func withCaller(r *http.Request, userID, role string) *http.Request {
	ctx := internal.ContextWithUserID(r.Context(), userID)
	ctx = internal.ContextWithRole(ctx, role)
	return r.WithContext(ctx)
}

var _ = Describe("Handler", func() {
	var (
		reconciler *stubReconciler
		repo       *mockRepository
		service    *docrequest.Service
		handler    *docrequest.Handler
		router     chi.Router
	)

	redirects := docrequest.RedirectConfig{
		SuccessURL: "https://school.example.com/payment/success",
		FailureURL: "https://school.example.com/payment/failed",
	}

	BeforeEach(func() {
		silent := slog.New(slog.NewTextHandler(io.Discard, nil))
		reconciler = &stubReconciler{}
		repo = newMockRepository()
		service = docrequest.NewService(docrequest.ServiceDeps{
			Repo:     repo,
			Catalog:  newMockCatalog(),
			Checkout: &mockCheckout{},
			Intents:  intent.NewMemoryStore(time.Hour, intent.WithLogger(silent)),
			Notifier: &mockNotifier{outcome: notification.Outcome{SMSSent: true}},
			Logger:   silent,
		})
		handler = docrequest.NewHandler(transport.NewBaseHandler(silent), service, reconciler, redirects)

		router = chi.NewRouter()
		router.Get("/payment-success", handler.PaymentSuccess)
		router.Get("/payment-cancelled", handler.PaymentCancelled)
		router.Post("/document-request", handler.SubmitDocumentRequest)
		router.Get("/api/v1/document-requests/{id}", handler.GetDocumentRequest)
		router.Patch("/api/v1/document-requests/{id}/status", handler.UpdateStatus)
	})

	Describe("PaymentSuccess", func() {
		It("redirects to the success page with the request details", func() {
			reconciler.result = docrequest.Result{
				Success:             true,
				RequestID:           42,
				Amount:              mustDecimal("150"),
				PaymentMethod:       "gcash",
				StudentName:         "Dela Cruz, Juan",
				ScheduledPickup:     time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
				SMSSent:             true,
				NotificationCreated: true,
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/payment-success?session_id=cs_alpha123456", nil)

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(reconciler.received).To(Equal([]string{"cs_alpha123456"}))

			loc, err := url.Parse(rec.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Host + loc.Path).To(Equal("school.example.com/payment/success"))
			q := loc.Query()
			Expect(q.Get("success")).To(Equal("1"))
			Expect(q.Get("request_id")).To(Equal("42"))
			Expect(q.Get("amount")).To(Equal("150.00"))
			Expect(q.Get("payment_method")).To(Equal("gcash"))
			Expect(q.Get("student_name")).To(Equal("Dela Cruz, Juan"))
			Expect(q.Get("scheduled_pickup")).To(Equal("2026-10-22"))
			Expect(q.Get("sms_sent")).To(Equal("1"))
			Expect(q.Get("notification_created")).To(Equal("1"))
			Expect(q.Get("duplicate")).To(Equal("0"))
		})

		It("redirects to the failure page with the error code", func() {
			reconciler.result = docrequest.Result{ErrorCode: docrequest.CodePaymentNotCompleted, Message: "Your payment has not been completed."}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment-success?session_id=cs_alpha123456", nil))

			loc, err := url.Parse(rec.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Path).To(Equal("/payment/failed"))
			Expect(loc.Query().Get("success")).To(Equal("0"))
			Expect(loc.Query().Get("error")).To(Equal("payment_not_completed"))
			Expect(loc.Query().Get("message")).To(Equal("Your payment has not been completed."))
		})
	})

	Describe("PaymentCancelled", func() {
		It("redirects to the failure page", func() {
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment-cancelled?session_id=cs_alpha123456", nil))

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			loc, err := url.Parse(rec.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Query().Get("error")).To(Equal("payment_cancelled"))
		})
	})

	Describe("SubmitDocumentRequest", func() {
		post := func(body interface{}, userID, role string) *httptest.ResponseRecorder {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, "/document-request", bytes.NewReader(payload))
			if userID != "" {
				req = withCaller(req, userID, role)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("creates a cash request for the calling student", func() {
			rec := post(submitDTO("cash"), "2024-0001", "student")

			Expect(rec.Code).To(Equal(http.StatusCreated))
			var resp docrequest.SubmitResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.RequestID).To(Equal(int64(1)))
			Expect(resp.Amount).To(Equal("250.00"))
		})

		It("lets an admin submit on behalf of a student", func() {
			rec := post(submitDTO("cash"), "registrar", "admin")

			Expect(rec.Code).To(Equal(http.StatusCreated))
		})

		It("forbids a student from submitting for someone else", func() {
			rec := post(submitDTO("cash"), "2024-0002", "student")

			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(repo.count()).To(BeZero())
		})

		It("requires an authenticated caller", func() {
			rec := post(submitDTO("cash"), "", "")

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a malformed body", func() {
			req := withCaller(httptest.NewRequest(http.MethodPost, "/document-request", bytes.NewBufferString("{")), "2024-0001", "student")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("document request detail and status", func() {
		BeforeEach(func() {
			_, err := service.Submit(context.Background(), submitDTO("cash"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the request to its owner", func() {
			req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/document-requests/1", nil), "2024-0001", "student")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body docrequest.DocumentRequest
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ID).To(Equal(int64(1)))
			Expect(body.Status).To(Equal(docrequest.StatusPending))
		})

		It("rejects a non-numeric id", func() {
			req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/document-requests/abc", nil), "2024-0001", "student")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("updates the status", func() {
			body := bytes.NewBufferString(`{"status":"ready_for_pickup"}`)
			req := withCaller(httptest.NewRequest(http.MethodPatch, "/api/v1/document-requests/1/status", body), "registrar", "admin")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"status":"ready_for_pickup"`))
		})

		It("answers 409 when the request is already in a terminal status", func() {
			patch := func(status string) *httptest.ResponseRecorder {
				body := bytes.NewBufferString(`{"status":"` + status + `"}`)
				req := withCaller(httptest.NewRequest(http.MethodPatch, "/api/v1/document-requests/1/status", body), "registrar", "admin")
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				return rec
			}
			Expect(patch("cancelled").Code).To(Equal(http.StatusOK))

			rec := patch("processing")

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring(`"code":"INVALID_STATUS_TRANSITION"`))
		})

		It("rejects a reschedule date that is not YYYY-MM-DD", func() {
			body := bytes.NewBufferString(`{"status":"processing","rescheduledPickupDate":"Oct 30"}`)
			req := withCaller(httptest.NewRequest(http.MethodPatch, "/api/v1/document-requests/1/status", body), "registrar", "admin")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(`"field":"rescheduledPickupDate"`))
		})

		It("keeps decoder details out of a malformed body response", func() {
			body := bytes.NewBufferString(`{"status":`)
			req := withCaller(httptest.NewRequest(http.MethodPatch, "/api/v1/document-requests/1/status", body), "registrar", "admin")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(`"message":"invalid request body"`))
			Expect(rec.Body.String()).NotTo(ContainSubstring("EOF"))
		})
	})
})

var _ = Describe("RedirectConfig", func() {
	It("merges result parameters into a url that already has a query", func() {
		cfg := docrequest.RedirectConfig{
			SuccessURL: "https://school.example.com/payment/success?lang=fil",
			FailureURL: "https://school.example.com/payment/failed?lang=fil&success=x",
		}

		loc, err := url.Parse(cfg.Location(docrequest.Result{ErrorCode: docrequest.CodeSessionNotFound}))

		Expect(err).NotTo(HaveOccurred())
		Expect(loc.Path).To(Equal("/payment/failed"))
		Expect(loc.RawQuery).NotTo(ContainSubstring("?"))
		Expect(loc.Query().Get("lang")).To(Equal("fil"))
		Expect(loc.Query()["success"]).To(Equal([]string{"0"}))
		Expect(loc.Query().Get("error")).To(Equal("session_not_found"))
	})

	It("keeps a plain url plain", func() {
		cfg := docrequest.RedirectConfig{FailureURL: "https://school.example.com/payment/failed"}

		Expect(cfg.Location(docrequest.Result{ErrorCode: docrequest.CodePaymentCancelled})).
			To(Equal("https://school.example.com/payment/failed?error=payment_cancelled&success=0"))
	})
})
