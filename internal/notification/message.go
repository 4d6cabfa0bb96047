package notification

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/frahmantamala/document-request/internal/sms"
)

const pickupLayout = "Jan 2, 2006"

// Template renders one SMS wording for a notice.
type Template func(Notice) string

// FirstName pulls the given name out of "Surname, First Middle". Names
// without a comma use their first word.
func FirstName(fullName string) string {
	name := strings.TrimSpace(fullName)
	if i := strings.Index(name, ","); i >= 0 {
		name = strings.TrimSpace(name[i+1:])
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "Student"
}

// PrimaryTemplate mentions the amount. Cash requests also point the student
// to the cashier; online requests carry no payment wording.
func PrimaryTemplate(n Notice) string {
	msg := fmt.Sprintf("Hi %s, your request document #%d is received. Amount: PHP %s.",
		FirstName(n.StudentName), n.RequestID, n.Amount.StringFixed(2))
	if n.PaymentMethod == "cash" {
		msg += " Please pay at the cashier."
	}
	if !n.PickupDate.IsZero() {
		msg += " Pickup on " + n.PickupDate.Format(pickupLayout) + "."
	}
	return msg
}

// PlainTemplate avoids amounts and payment terms entirely.
func PlainTemplate(n Notice) string {
	msg := fmt.Sprintf("Hi %s, your request document #%d is received.", FirstName(n.StudentName), n.RequestID)
	if !n.PickupDate.IsZero() {
		msg += " Pickup on " + n.PickupDate.Format(pickupLayout) + "."
	}
	return msg + " Thank you!"
}

// DefaultTemplates is the order messages are tried in.
func DefaultTemplates() []Template {
	return []Template{PrimaryTemplate, PlainTemplate}
}

func inAppMessage(n Notice) string {
	msg := fmt.Sprintf("Your document request #%d has been received.", n.RequestID)
	if !n.PickupDate.IsZero() {
		msg += " Scheduled pickup: " + n.PickupDate.Format(pickupLayout) + "."
	}
	return msg
}

func truncate(msg string) string {
	if utf8.RuneCountInString(msg) <= sms.MaxMessageLength && len(msg) <= sms.MaxMessageLength {
		return msg
	}
	var b strings.Builder
	for _, r := range msg {
		if b.Len()+utf8.RuneLen(r) > sms.MaxMessageLength {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
