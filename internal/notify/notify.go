// Package notify defines the outbound notification contract. The engine
// hands rendered messages to a Notifier and interprets the result; actual
// delivery (Slack, Discord) lives in the platform subpackages.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/avolkmer/chaser/internal/models"
)

// Recipient identifies where a notification should be delivered. Address is
// adapter-specific: a channel ID for chat platforms, an email address for
// mail-backed notifiers.
type Recipient struct {
	Name    string
	Address string
}

// Message is a rendered notification ready for delivery.
type Message struct {
	Recipient Recipient
	Subject   string
	Body      string
}

// Notifier delivers rendered messages. Implementations must honour context
// cancellation; the orchestrator applies a per-dispatch timeout.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// PermanentError marks a delivery failure that retrying cannot fix, such as
// an unknown recipient. The orchestrator fails such schedules immediately
// instead of burning retry attempts.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// RecipientResolver maps notification targets to concrete delivery
// addresses. Escalations go to the operator; reminders go to the supplier
// on record. Keeping this behind an interface means no contact is ever
// hardcoded in the engine.
type RecipientResolver interface {
	Operator() Recipient
	Supplier(s models.Supplier) Recipient
}

// StaticResolver resolves the operator from configuration and suppliers
// from their stored contact details.
type StaticResolver struct {
	OperatorName    string
	OperatorAddress string
}

// Operator returns the configured operator recipient.
func (r StaticResolver) Operator() Recipient {
	return Recipient{Name: r.OperatorName, Address: r.OperatorAddress}
}

// Supplier returns the delivery target for a supplier record.
func (r StaticResolver) Supplier(s models.Supplier) Recipient {
	return Recipient{Name: s.Name, Address: s.Email}
}
