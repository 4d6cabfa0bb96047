package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation records outcomes of the payment-success flow and its side channels.
type Reconciliation struct {
	outcomes      *prometheus.CounterVec
	verifyLatency *prometheus.HistogramVec
	sms           *prometheus.CounterVec
	notifications *prometheus.CounterVec
	submissions   *prometheus.CounterVec
}

// NewReconciliation registers the reconciliation metrics on reg. A nil
// registerer yields a recorder whose methods are no-ops.
func NewReconciliation(reg prometheus.Registerer) *Reconciliation {
	if reg == nil {
		return &Reconciliation{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docrequest_reconciliations_total",
		Help: "Payment reconciliations by outcome.",
	}, []string{"outcome"})
	verifyLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docrequest_gateway_verify_seconds",
		Help:    "Latency of gateway session verification calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	sms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docrequest_sms_total",
		Help: "SMS send attempts by result.",
	}, []string{"result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docrequest_notifications_total",
		Help: "In-app notification inserts by result.",
	}, []string{"result"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docrequest_submissions_total",
		Help: "Document request submissions by payment method.",
	}, []string{"method"})
	reg.MustRegister(outcomes, verifyLatency, sms, notifications, submissions)
	return &Reconciliation{
		outcomes:      outcomes,
		verifyLatency: verifyLatency,
		sms:           sms,
		notifications: notifications,
		submissions:   submissions,
	}
}

// IncOutcome counts one finished reconciliation. Success outcomes are
// "success" and "duplicate", failures use their error code.
func (r *Reconciliation) IncOutcome(outcome string) {
	if r == nil || r.outcomes == nil {
		return
	}
	r.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (r *Reconciliation) ObserveVerify(result string, d time.Duration) {
	if r == nil || r.verifyLatency == nil {
		return
	}
	r.verifyLatency.WithLabelValues(normalizeLabel(result)).Observe(d.Seconds())
}

func (r *Reconciliation) IncSMS(sent bool) {
	if r == nil || r.sms == nil {
		return
	}
	r.sms.WithLabelValues(boolLabel(sent)).Inc()
}

func (r *Reconciliation) IncNotification(created bool) {
	if r == nil || r.notifications == nil {
		return
	}
	r.notifications.WithLabelValues(boolLabel(created)).Inc()
}

func (r *Reconciliation) IncSubmission(method string) {
	if r == nil || r.submissions == nil {
		return
	}
	r.submissions.WithLabelValues(normalizeLabel(method)).Inc()
}

func boolLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
