// Package discord implements the notify.Notifier contract on the Discord
// REST API. No Gateway connection is held: the engine only sends.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avolkmer/chaser/internal/notify"
	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier delivers messages to Discord channels as embeds.
type Notifier struct {
	sess      session
	channelID string // default channel when the recipient has no address
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // default channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	n := &Notifier{sess: opts.Session, channelID: opts.ChannelID}
	if n.sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = s
	}
	return n, nil
}

// Name identifies the platform.
func (n *Notifier) Name() string { return "discord" }

// Send posts the message as an embed. Unknown channels and auth failures
// are permanent; everything else is treated as transient.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) error {
	channelID := msg.Recipient.Address
	if channelID == "" {
		channelID = n.channelID
	}
	if channelID == "" {
		return &notify.PermanentError{Reason: "no discord channel for recipient " + msg.Recipient.Name}
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Subject,
		Description: msg.Body,
	}
	_, err := n.sess.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		if reason, permanent := classify(err); permanent {
			return &notify.PermanentError{Reason: reason}
		}
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// classify inspects a discordgo REST error and reports whether it is a
// permanent failure.
func classify(err error) (string, bool) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return "", false
	}
	switch restErr.Response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Sprintf("discord: HTTP %d", restErr.Response.StatusCode), true
	}
	return "", false
}
