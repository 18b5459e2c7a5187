// Package slack implements the notify.Notifier contract on the Slack Web API.
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/avolkmer/chaser/internal/notify"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier delivers messages to Slack channels.
type Notifier struct {
	client  slackClient
	channel string // default channel when the recipient has no address
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken string // xoxb-... Slack bot token
	Channel  string // default channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	n := &Notifier{client: opts.Client, channel: opts.Channel}
	if n.client == nil {
		n.client = slackapi.New(opts.BotToken)
	}
	return n, nil
}

// Name identifies the platform.
func (n *Notifier) Name() string { return "slack" }

// Send posts the message as an attachment to the recipient's channel, or to
// the default channel when the recipient carries no address. Failures that
// retrying cannot fix are wrapped in notify.PermanentError.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) error {
	channel := msg.Recipient.Address
	if channel == "" {
		channel = n.channel
	}
	if channel == "" {
		return &notify.PermanentError{Reason: "no slack channel for recipient " + msg.Recipient.Name}
	}

	attachment := slackapi.Attachment{
		Title: msg.Subject,
		Text:  msg.Body,
	}
	_, _, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionText(msg.Subject, false),
		slackapi.MsgOptionAttachments(attachment),
	)
	if err != nil {
		if reason, permanent := classify(err); permanent {
			return &notify.PermanentError{Reason: reason}
		}
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// permanentCodes are Slack API error strings that no amount of retrying
// will fix.
var permanentCodes = []string{
	"channel_not_found",
	"not_in_channel",
	"is_archived",
	"invalid_auth",
	"account_inactive",
	"token_revoked",
	"msg_too_long",
}

// classify inspects a Slack API error string and reports whether it is a
// permanent failure.
func classify(err error) (string, bool) {
	msg := err.Error()
	for _, code := range permanentCodes {
		if strings.Contains(msg, code) {
			return "slack: " + code, true
		}
	}
	return "", false
}
