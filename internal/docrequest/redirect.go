package docrequest

import (
	"net/url"
	"strconv"
)

const CodePaymentCancelled = "payment_cancelled"

type RedirectConfig struct {
	SuccessURL string
	FailureURL string
}

// Location builds the frontend url a Result is reported on.
func (c RedirectConfig) Location(res Result) string {
	q := url.Values{}
	if !res.Success {
		q.Set("success", "0")
		q.Set("error", res.ErrorCode)
		if res.Message != "" {
			q.Set("message", res.Message)
		}
		return withQuery(c.FailureURL, q)
	}

	q.Set("success", "1")
	q.Set("request_id", strconv.FormatInt(res.RequestID, 10))
	q.Set("amount", res.Amount.StringFixed(2))
	q.Set("payment_method", res.PaymentMethod)
	q.Set("student_name", res.StudentName)
	if !res.ScheduledPickup.IsZero() {
		q.Set("scheduled_pickup", res.ScheduledPickup.Format(pickupLayout))
	}
	q.Set("sms_sent", flag(res.SMSSent))
	q.Set("notification_created", flag(res.NotificationCreated))
	q.Set("duplicate", flag(res.Duplicate))
	return withQuery(c.SuccessURL, q)
}

// withQuery merges q into any query base already carries. Result keys win.
func withQuery(base string, q url.Values) string {
	if base == "" {
		base = "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
