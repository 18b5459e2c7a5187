package notify

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LogNotifier writes notifications to a writer instead of delivering them.
// Used as the "log" platform for local development and dry runs.
type LogNotifier struct {
	Out io.Writer
}

// Send prints the message.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	out := n.Out
	if out == nil {
		out = os.Stdout
	}
	if msg.Recipient.Address == "" {
		return &PermanentError{Reason: fmt.Sprintf("recipient %q has no address", msg.Recipient.Name)}
	}
	fmt.Fprintf(out, "notify → %s <%s>: %s\n", msg.Recipient.Name, msg.Recipient.Address, msg.Subject)
	return nil
}

// Name identifies the platform.
func (n *LogNotifier) Name() string { return "log" }
