package docrequest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	intentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/intent"
	paymentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/payment"
	"github.com/frahmantamala/document-request/internal/core/events"
	"github.com/frahmantamala/document-request/internal/notification"
	"github.com/frahmantamala/document-request/internal/paymentgateway"
	"github.com/frahmantamala/document-request/pkg/logger"
	"github.com/frahmantamala/document-request/pkg/metrics"
)

// Failure codes carried on the redirect back to the frontend.
const (
	CodeInvalidSession      = "invalid_session"
	CodePaymentNotCompleted = "payment_not_completed"
	CodeVerificationFailed  = "verification_failed"
	CodeSessionNotFound     = "session_not_found"
	CodeDBError             = "db_error"
)

type Stage string

const (
	StageVerifying      Stage = "verifying"
	StageIntentLookup   Stage = "intent_lookup"
	StageDuplicateCheck Stage = "duplicate_check"
	StagePersisting     Stage = "persisting"
	StageNotifying      Stage = "notifying"
	StageDone           Stage = "done"
)

const DefaultFallbackMaxAge = 600 * time.Second

// Result is what the success page redirect reports.
type Result struct {
	Success             bool
	RequestID           int64
	Amount              decimal.Decimal
	PaymentMethod       string
	StudentName         string
	ScheduledPickup     time.Time
	SMSSent             bool
	NotificationCreated bool
	Duplicate           bool
	ErrorCode           string
	Message             string
}

type ReconcilerConfig struct {
	// SoftVerify lets reconciliation continue when the gateway cannot be
	// reached. Unpaid and unknown sessions are still refused.
	SoftVerify     bool
	FallbackMaxAge time.Duration
}

type ReconcilerDeps struct {
	Verifier  Verifier
	Intents   IntentStore
	Repo      RepositoryAPI
	Notifier  NotifierAPI
	Publisher EventPublisher
	Metrics   *metrics.Reconciliation
}

// Reconciler turns a verified checkout session into exactly one stored
// document request.
type Reconciler struct {
	verifier       Verifier
	intents        IntentStore
	repo           RepositoryAPI
	notifier       NotifierAPI
	publisher      EventPublisher
	metrics        *metrics.Reconciliation
	softVerify     bool
	fallbackMaxAge time.Duration
}

func NewReconciler(deps ReconcilerDeps, cfg ReconcilerConfig) *Reconciler {
	maxAge := cfg.FallbackMaxAge
	if maxAge <= 0 {
		maxAge = DefaultFallbackMaxAge
	}
	return &Reconciler{
		verifier:       deps.Verifier,
		intents:        deps.Intents,
		repo:           deps.Repo,
		notifier:       deps.Notifier,
		publisher:      deps.Publisher,
		metrics:        deps.Metrics,
		softVerify:     cfg.SoftVerify,
		fallbackMaxAge: maxAge,
	}
}

type run struct {
	*Reconciler
	log   *slog.Logger
	stage Stage
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.log.Debug("reconciliation stage", "stage", stage)
}

func (r *run) fail(ctx context.Context, code, message string, err error) Result {
	level := slog.LevelWarn
	if code == CodeSessionNotFound || code == CodeDBError {
		level = slog.LevelError
	}
	attrs := []any{"stage", r.stage, "code", code}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if code == CodeSessionNotFound {
		attrs = append(attrs, "needs_support", true)
	}
	r.log.Log(ctx, level, "reconciliation failed", attrs...)
	r.metrics.IncOutcome(code)
	return Result{ErrorCode: code, Message: message}
}

// Reconcile runs the confirmation for one gateway redirect. It never
// returns an error; failures are reported on the Result.
func (r *Reconciler) Reconcile(ctx context.Context, rawSessionID string) Result {
	x := &run{Reconciler: r, log: logger.From(ctx).With("component", "reconciler")}

	x.enter(StageVerifying)
	sessionID, err := paymentgateway.ParseSessionID(rawSessionID)
	knownID := err == nil
	switch {
	case errors.Is(err, paymentgateway.ErrSessionIDMissing):
		x.log.Warn("redirect carried no usable session id, falling back to latest intent", "raw_session_id", rawSessionID)
	case err != nil:
		return x.fail(ctx, CodeInvalidSession, "The payment session is not valid.", err)
	}

	var verification paymentgateway.Verification
	if knownID {
		x.log = x.log.With("session_id", sessionID)
		var res *Result
		verification, res = x.verify(ctx, sessionID)
		if res != nil {
			return *res
		}
	}

	x.enter(StageIntentLookup)
	var pending *intentmodel.PaymentIntent
	if knownID {
		pending, err = r.intents.Get(ctx, sessionID)
		if err != nil {
			return x.fail(ctx, CodeDBError, "We could not look up your request. Please try again.", err)
		}
		if pending == nil {
			// the success page may be refreshed after the intent was consumed
			x.enter(StageDuplicateCheck)
			existing, res := x.findExisting(ctx, sessionID)
			if res != nil {
				return *res
			}
			if existing != nil {
				return x.duplicate(ctx, existing, sessionID)
			}
			// another payer's intent is never borrowed for a session the gateway named
			return x.fail(ctx, CodeSessionNotFound, "We could not find your request. Please contact the registrar.", nil)
		}
	} else {
		pending, err = r.intents.FindMostRecentUnexpired(ctx, r.fallbackMaxAge)
		if err != nil {
			return x.fail(ctx, CodeDBError, "We could not look up your request. Please try again.", err)
		}
		if pending == nil {
			return x.fail(ctx, CodeSessionNotFound, "We could not find your request. Please contact the registrar.", nil)
		}
		x.log.Warn("using most recent intent as fallback",
			"intent_session_id", pending.SessionID,
			"intent_age", pending.Age(time.Now()).String())

		sessionID = pending.SessionID
		x.log = x.log.With("session_id", sessionID)
		x.enter(StageVerifying)
		var res *Result
		verification, res = x.verify(ctx, sessionID)
		if res != nil {
			return *res
		}
	}

	x.enter(StageDuplicateCheck)
	existing, res := x.findExisting(ctx, sessionID)
	if res != nil {
		return *res
	}
	if existing != nil {
		return x.duplicate(ctx, existing, sessionID)
	}

	x.enter(StagePersisting)
	saved, err := r.repo.Persist(ctx, newRequestFromIntent(pending, sessionID, verification))
	if errors.Is(err, ErrDuplicateSession) {
		x.log.Info("concurrent reconciliation already stored this session")
		existing, res := x.findExisting(ctx, sessionID)
		if res != nil {
			return *res
		}
		if existing != nil {
			return x.duplicate(ctx, existing, sessionID)
		}
		return x.fail(ctx, CodeDBError, "We could not save your request. Please try again.", err)
	}
	if err != nil {
		return x.fail(ctx, CodeDBError, "We could not save your request. Please try again.", err)
	}
	x.log = x.log.With("request_id", saved.ID)

	x.enter(StageNotifying)
	outcome := r.notifier.Notify(ctx, notification.Notice{
		RequestID:     saved.ID,
		StudentID:     saved.StudentID,
		StudentName:   saved.StudentName,
		Phone:         saved.ContactNo,
		Amount:        saved.TotalAmount,
		PickupDate:    saved.ScheduledPickupDate,
		PaymentMethod: string(saved.PaymentMethod),
	})

	x.enter(StageDone)
	r.deleteIntent(ctx, x.log, sessionID)
	if r.publisher != nil {
		evt := events.NewDocumentRequestReconciledEvent(saved.ID, sessionID, saved.StudentID, saved.TotalAmount, outcome.SMSSent, outcome.NotificationCreated)
		if err := r.publisher.Publish(ctx, evt); err != nil {
			x.log.Warn("failed to publish reconciled event", "error", err)
		}
	}

	r.metrics.IncOutcome("success")
	x.log.Info("payment reconciled",
		"amount", saved.TotalAmount.StringFixed(2),
		"sms_sent", outcome.SMSSent,
		"notification_created", outcome.NotificationCreated)

	return Result{
		Success:             true,
		RequestID:           saved.ID,
		Amount:              saved.TotalAmount,
		PaymentMethod:       string(saved.PaymentMethod),
		StudentName:         saved.StudentName,
		ScheduledPickup:     saved.ScheduledPickupDate,
		SMSSent:             outcome.SMSSent,
		NotificationCreated: outcome.NotificationCreated,
	}
}

// verify returns a non-nil Result when reconciliation has to stop.
func (x *run) verify(ctx context.Context, sessionID string) (paymentgateway.Verification, *Result) {
	v, err := x.verifier.Verify(ctx, sessionID)
	if err != nil {
		if errors.Is(err, paymentgateway.ErrVerificationFailed) && x.softVerify {
			x.log.Warn("gateway verification failed, continuing in soft mode", "error", err)
			return paymentgateway.Verification{SessionID: sessionID}, nil
		}
		if errors.Is(err, paymentgateway.ErrInvalidSessionID) || errors.Is(err, paymentgateway.ErrSessionIDMissing) {
			res := x.fail(ctx, CodeInvalidSession, "The payment session is not valid.", err)
			return v, &res
		}
		res := x.fail(ctx, CodeVerificationFailed, "We could not confirm your payment yet. Please try again shortly.", err)
		return v, &res
	}

	switch v.Status {
	case paymentgateway.StatusPaid:
		return v, nil
	case paymentgateway.StatusNotFound:
		res := x.fail(ctx, CodeInvalidSession, "The payment session was not found.", nil)
		return v, &res
	default:
		res := x.fail(ctx, CodePaymentNotCompleted, "Your payment has not been completed.", nil)
		return v, &res
	}
}

func (x *run) findExisting(ctx context.Context, sessionID string) (*DocumentRequest, *Result) {
	existing, err := x.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		res := x.fail(ctx, CodeDBError, "We could not check your request. Please try again.", err)
		return nil, &res
	}
	return existing, nil
}

func (x *run) duplicate(ctx context.Context, existing *DocumentRequest, sessionID string) Result {
	x.deleteIntent(ctx, x.log, sessionID)
	x.metrics.IncOutcome("duplicate")
	x.log.Info("session already reconciled", "request_id", existing.ID)
	return Result{
		Success:         true,
		Duplicate:       true,
		RequestID:       existing.ID,
		Amount:          existing.TotalAmount,
		PaymentMethod:   string(existing.PaymentMethod),
		StudentName:     existing.StudentName,
		ScheduledPickup: existing.PickupDate(),
	}
}

func (r *Reconciler) deleteIntent(ctx context.Context, log *slog.Logger, sessionID string) {
	if err := r.intents.Delete(ctx, sessionID); err != nil {
		log.Warn("failed to delete payment intent", "error", err)
	}
}

func newRequestFromIntent(p *intentmodel.PaymentIntent, sessionID string, v paymentgateway.Verification) *NewRequest {
	items := make([]Item, 0, len(p.Selections))
	for _, sel := range p.Selections {
		items = append(items, Item{
			DocumentTypeID: sel.DocumentTypeID,
			Quantity:       sel.Quantity,
			UnitPrice:      sel.UnitPrice,
		})
	}
	paidAt := time.Now()
	return &NewRequest{
		StudentID:           p.PayerID,
		StudentName:         p.PayerName,
		Grade:               p.Grade,
		Section:             p.Section,
		ContactNo:           p.ContactPhone,
		Email:               p.Email,
		PaymentMethod:       PaymentMethod(p.PaymentMethod),
		Items:               items,
		TotalAmount:         p.TotalAmount,
		ScheduledPickupDate: p.ScheduledPickupDate,
		GatewaySessionID:    sessionID,
		PaymentStatus:       paymentmodel.StatusPaid,
		PaidAt:              &paidAt,
		GatewayResponse:     v.Raw,
	}
}
