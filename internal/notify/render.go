package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/avolkmer/chaser/internal/models"
)

// RenderContext is the structured data a renderer turns into a deliverable
// message. The engine never builds HTML itself; rich templates belong to an
// external renderer implementing this interface.
type RenderContext struct {
	Kind     models.FollowUpKind
	Request  models.ServiceRequest
	Supplier models.Supplier
	Attempt  int
	Metadata map[string]string
}

// Renderer turns follow-up context into a subject and body.
type Renderer interface {
	Render(rc RenderContext) (subject, body string, err error)
}

// TextRenderer is the built-in plain-text renderer used when no external
// template collaborator is configured.
type TextRenderer struct{}

// Render produces a terse plain-text reminder.
func (TextRenderer) Render(rc RenderContext) (string, string, error) {
	subject := fmt.Sprintf("%s: %s", kindTitle(rc.Kind), rc.Request.Title)
	if rc.Attempt > 0 {
		subject = fmt.Sprintf("%s (reminder %d)", subject, rc.Attempt+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", rc.Supplier.Name)
	fmt.Fprintf(&b, "%s\n", kindLine(rc.Kind))
	fmt.Fprintf(&b, "\nRequest: %s (%s)\n", rc.Request.Title, rc.Request.ID)
	if rc.Request.ResponseDeadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", rc.Request.ResponseDeadline.Format(time.RFC1123))
	}
	if code, ok := rc.Metadata["access_code"]; ok && code != "" {
		fmt.Fprintf(&b, "Access code: %s\n", code)
	}
	return subject, b.String(), nil
}

func kindTitle(k models.FollowUpKind) string {
	switch k {
	case models.KindQuotationReminder:
		return "Quotation reminder"
	case models.KindDateConfirmation:
		return "Date confirmation needed"
	case models.KindWorkReminder:
		return "Work start reminder"
	case models.KindCompletionReminder:
		return "Completion reminder"
	}
	return "Follow-up"
}

func kindLine(k models.FollowUpKind) string {
	switch k {
	case models.KindQuotationReminder:
		return "We are still waiting for your quotation on the request below."
	case models.KindDateConfirmation:
		return "Please confirm the execution date for the request below."
	case models.KindWorkReminder:
		return "The agreed work date is approaching for the request below."
	case models.KindCompletionReminder:
		return "Please confirm completion of the request below."
	}
	return "Please take a look at the request below."
}
