package docrequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/document-request/internal"
	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
	intentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/intent"
	paymentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/payment"
	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/paymentgateway"
	"github.com/frahmantamala/document-request/pkg/metrics"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("document request not found")

const pickupLayout = "2006-01-02"

type RepositoryAPI interface {
	Persist(ctx context.Context, req *NewRequest) (*DocumentRequest, error)
	// FindBySessionID returns nil, nil when no request carries the session id.
	FindBySessionID(ctx context.Context, sessionID string) (*DocumentRequest, error)
	GetByID(ctx context.Context, id int64) (*DocumentRequest, error)
	UpdateStatus(ctx context.Context, id int64, status Status, rescheduled *time.Time) error
}

type CatalogAPI interface {
	Lookup(ctx context.Context, ids []int64) (map[int64]*docrequestmodel.DocumentType, error)
}

type Verifier interface {
	Verify(ctx context.Context, sessionID string) (paymentgateway.Verification, error)
}

type CheckoutAPI interface {
	CreateCheckoutSession(ctx context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutSession, error)
}

// IntentStore holds pending online payments until they are reconciled.
type IntentStore interface {
	Get(ctx context.Context, sessionID string) (*intentmodel.PaymentIntent, error)
	Put(ctx context.Context, p *intentmodel.PaymentIntent) error
	Delete(ctx context.Context, sessionID string) error
	FindMostRecentUnexpired(ctx context.Context, maxAge time.Duration) (*intentmodel.PaymentIntent, error)
}

type NotifierAPI interface {
	Notify(ctx context.Context, notice notification.Notice) notification.Outcome
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ServiceDeps struct {
	Repo      RepositoryAPI
	Catalog   CatalogAPI
	Checkout  CheckoutAPI
	Intents   IntentStore
	Notifier  NotifierAPI
	Publisher EventPublisher
	Logger    *slog.Logger
	Metrics   *metrics.Reconciliation
}

type Service struct {
	repo      RepositoryAPI
	catalog   CatalogAPI
	checkout  CheckoutAPI
	intents   IntentStore
	notifier  NotifierAPI
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Reconciliation
	now       func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Service{
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		checkout:  deps.Checkout,
		intents:   deps.Intents,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    lg,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// WithClock replaces time.Now for pickup date computation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit records a cash request right away. Online methods open a checkout
// session and park the request as a payment intent until the gateway
// redirects back.
func (s *Service) Submit(ctx context.Context, dto *SubmitRequestDTO) (*SubmitResponse, error) {
	if appErr := dto.Validate(); appErr != nil {
		s.logger.Warn("document request validation failed", "student_id", dto.StudentInfo.StudentID, "error", appErr)
		return nil, appErr
	}

	method, err := ParsePaymentMethod(dto.PaymentMethod)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidPaymentMethod)
	}

	items, names, err := s.price(ctx, dto.SelectedDocs)
	if err != nil {
		return nil, err
	}

	total := Total(items)
	pickup := PickupDate(s.now())
	s.metrics.IncSubmission(string(method))

	if method.IsOnline() {
		return s.startCheckout(ctx, dto, method, items, names, total, pickup)
	}
	return s.submitCash(ctx, dto, items, total, pickup)
}

// price resolves every selection against the catalog. Catalog prices win;
// a submitted price that disagrees is rejected.
func (s *Service) price(ctx context.Context, docs []SelectedDoc) ([]Item, map[int64]string, error) {
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}

	types, err := s.catalog.Lookup(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load document types", "error", err)
		return nil, nil, internal.NewInternalError("failed to load document types", err)
	}

	items := make([]Item, 0, len(docs))
	names := make(map[int64]string, len(docs))
	for _, doc := range docs {
		dt, ok := types[doc.ID]
		if !ok || dt == nil || !dt.IsActive {
			return nil, nil, internal.NewValidationError(
				fmt.Sprintf("document type %d is not available", doc.ID),
				internal.ErrCodeUnknownDocumentType)
		}
		if doc.Price != nil && !doc.Price.Equal(dt.Price) {
			s.logger.Warn("submitted price does not match catalog",
				"document_type_id", doc.ID,
				"submitted", doc.Price.StringFixed(2),
				"catalog", dt.Price.StringFixed(2))
			return nil, nil, internal.NewValidationError(
				fmt.Sprintf("price for %s has changed, please refresh", dt.Name),
				internal.ErrCodePriceMismatch)
		}
		items = append(items, Item{DocumentTypeID: dt.ID, Quantity: doc.Quantity, UnitPrice: dt.Price})
		names[dt.ID] = dt.Name
	}
	return items, names, nil
}

func (s *Service) submitCash(ctx context.Context, dto *SubmitRequestDTO, items []Item, total decimal.Decimal, pickup time.Time) (*SubmitResponse, error) {
	info := dto.StudentInfo
	saved, err := s.repo.Persist(ctx, &NewRequest{
		StudentID:           info.StudentID,
		StudentName:         info.StudentName,
		Grade:               info.Grade,
		Section:             info.Section,
		ContactNo:           info.ContactNo,
		Email:               info.Email,
		PaymentMethod:       PaymentMethodCash,
		Items:               items,
		TotalAmount:         total,
		ScheduledPickupDate: pickup,
		PaymentStatus:       paymentmodel.StatusPending,
	})
	if err != nil {
		s.logger.Error("failed to save cash document request", "student_id", info.StudentID, "error", err)
		return nil, internal.NewInternalError("failed to save document request", err)
	}

	outcome := s.notifier.Notify(ctx, notification.Notice{
		RequestID:     saved.ID,
		StudentID:     saved.StudentID,
		StudentName:   saved.StudentName,
		Phone:         saved.ContactNo,
		Amount:        saved.TotalAmount,
		PickupDate:    saved.ScheduledPickupDate,
		PaymentMethod: string(PaymentMethodCash),
	})

	s.publish(ctx, events.NewDocumentRequestSubmittedEvent(saved.StudentID, string(PaymentMethodCash), saved.TotalAmount, saved.ID, ""))

	s.logger.Info("cash document request created",
		"request_id", saved.ID,
		"student_id", saved.StudentID,
		"amount", saved.TotalAmount.StringFixed(2),
		"sms_sent", outcome.SMSSent)

	return &SubmitResponse{
		Success:             true,
		RequestID:           saved.ID,
		Amount:              saved.TotalAmount.StringFixed(2),
		PaymentMethod:       string(PaymentMethodCash),
		ScheduledPickup:     saved.ScheduledPickupDate.Format(pickupLayout),
		SMSSent:             outcome.SMSSent,
		NotificationCreated: outcome.NotificationCreated,
	}, nil
}

func (s *Service) startCheckout(ctx context.Context, dto *SubmitRequestDTO, method PaymentMethod, items []Item, names map[int64]string, total decimal.Decimal, pickup time.Time) (*SubmitResponse, error) {
	info := dto.StudentInfo
	checkoutItems := make([]paymentgateway.CheckoutItem, 0, len(items))
	selections := make([]intentmodel.Selection, 0, len(items))
	for _, item := range items {
		checkoutItems = append(checkoutItems, paymentgateway.CheckoutItem{
			Name:      names[item.DocumentTypeID],
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
		selections = append(selections, intentmodel.Selection{
			DocumentTypeID: item.DocumentTypeID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
		})
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, paymentgateway.CheckoutRequest{
		ReferenceNumber: fmt.Sprintf("DR-%s-%d", info.StudentID, s.now().Unix()),
		Description:     "School document request",
		PaymentMethod:   string(method),
		Items:           checkoutItems,
		BillingName:     info.StudentName,
		BillingEmail:    info.Email,
		BillingPhone:    info.ContactNo,
	})
	if err != nil {
		s.logger.Error("failed to open checkout session", "student_id", info.StudentID, "payment_method", method, "error", err)
		return nil, internal.NewExternalError("payment gateway is unavailable, please try again", internal.ErrCodeGatewayUnavailable, err)
	}

	pending := &intentmodel.PaymentIntent{
		SessionID:           session.ID,
		PayerID:             info.StudentID,
		PayerName:           info.StudentName,
		Grade:               info.Grade,
		Section:             info.Section,
		ContactPhone:        info.ContactNo,
		Email:               info.Email,
		Selections:          selections,
		TotalAmount:         total,
		PaymentMethod:       string(method),
		ScheduledPickupDate: pickup,
	}
	if err := s.intents.Put(ctx, pending); err != nil {
		s.logger.Error("failed to store payment intent", "session_id", session.ID, "error", err)
		return nil, internal.NewInternalError("failed to start payment", err)
	}

	s.publish(ctx, events.NewDocumentRequestSubmittedEvent(info.StudentID, string(method), total, 0, session.ID))

	s.logger.Info("checkout session opened",
		"session_id", session.ID,
		"student_id", info.StudentID,
		"payment_method", method,
		"amount", total.StringFixed(2))

	return &SubmitResponse{
		Success:         true,
		Amount:          total.StringFixed(2),
		PaymentMethod:   string(method),
		ScheduledPickup: pickup.Format(pickupLayout),
		CheckoutURL:     session.CheckoutURL,
		SessionID:       session.ID,
	}, nil
}

// Cancel drops the pending intent for a cancelled checkout. Unusable ids
// are ignored.
func (s *Service) Cancel(ctx context.Context, rawSessionID string) {
	id, err := paymentgateway.ParseSessionID(rawSessionID)
	if err != nil {
		s.logger.Info("checkout cancelled without a usable session id", "error", err)
		return
	}
	if err := s.intents.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to delete cancelled payment intent", "session_id", id, "error", err)
		return
	}
	s.logger.Info("checkout cancelled", "session_id", id)
}

// GetByID returns a request to its owner or to an admin.
func (s *Service) GetByID(ctx context.Context, id int64, callerID string, isAdmin bool) (*DocumentRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		s.logger.Error("failed to get document request", "request_id", id, "error", err)
		return nil, internal.NewInternalError("failed to get document request", err)
	}

	if !isAdmin && req.StudentID != callerID {
		s.logger.Warn("unauthorized access to document request", "request_id", id, "caller_id", callerID)
		return nil, internal.ErrUnauthorizedAccess
	}
	return req, nil
}

// UpdateStatus changes the status and optionally reschedules pickup.
// Requests in a terminal status keep it.
func (s *Service) UpdateStatus(ctx context.Context, id int64, dto *UpdateStatusDTO) (*DocumentRequest, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	status, err := ParseStatus(dto.Status)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidStatus)
	}

	var rescheduled *time.Time
	if dto.RescheduledPickupDate != "" {
		d, err := time.ParseInLocation(pickupLayout, dto.RescheduledPickupDate, time.Local)
		if err != nil {
			return nil, internal.NewValidationFieldError("rescheduledPickupDate", "rescheduledPickupDate must be YYYY-MM-DD", internal.ErrCodeValidationFailed)
		}
		rescheduled = &d
	}

	current, err := s.GetByID(ctx, id, "", true)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() && current.Status != status {
		s.logger.Warn("rejected status change from terminal status",
			"request_id", id,
			"from", current.Status,
			"to", status)
		return nil, internal.ErrInvalidStatusTransition
	}

	if err := s.repo.UpdateStatus(ctx, id, status, rescheduled); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		s.logger.Error("failed to update document request status", "request_id", id, "error", err)
		return nil, internal.NewInternalError("failed to update document request", err)
	}

	s.logger.Info("document request status updated", "request_id", id, "from", current.Status, "to", status)
	return s.GetByID(ctx, id, "", true)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
