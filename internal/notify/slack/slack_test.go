package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkmer/chaser/internal/notify"
	slackapi "github.com/slack-go/slack"
)

type mockClient struct {
	channels []string
	err      error
}

func (m *mockClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	m.channels = append(m.channels, channelID)
	return channelID, "1234.5678", nil
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error without token or client")
	}
	if _, err := New(Opts{Client: &mockClient{}}); err != nil {
		t.Errorf("injected client should not need a token: %v", err)
	}
}

func TestSend_UsesRecipientChannel(t *testing.T) {
	mock := &mockClient{}
	n, err := New(Opts{Client: mock, Channel: "C-default"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := notify.Message{
		Recipient: notify.Recipient{Name: "supplier", Address: "C-direct"},
		Subject:   "Quotation reminder",
		Body:      "body",
	}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "C-direct" {
		t.Errorf("posted to %v, want recipient channel", mock.channels)
	}
}

func TestSend_FallsBackToDefaultChannel(t *testing.T) {
	mock := &mockClient{}
	n, _ := New(Opts{Client: mock, Channel: "C-default"})

	msg := notify.Message{Recipient: notify.Recipient{Name: "supplier"}, Subject: "s", Body: "b"}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "C-default" {
		t.Errorf("posted to %v, want default channel", mock.channels)
	}
}

func TestSend_NoChannelIsPermanent(t *testing.T) {
	n, _ := New(Opts{Client: &mockClient{}})
	err := n.Send(context.Background(), notify.Message{Recipient: notify.Recipient{Name: "supplier"}})
	if !notify.IsPermanent(err) {
		t.Errorf("err = %v, want permanent", err)
	}
}

func TestSend_ClassifiesAPIErrors(t *testing.T) {
	cases := []struct {
		err       error
		permanent bool
	}{
		{errors.New("channel_not_found"), true},
		{errors.New("invalid_auth"), true},
		{errors.New("token_revoked"), true},
		{errors.New("rate_limited"), false},
		{errors.New("internal_error"), false},
	}
	for _, c := range cases {
		n, _ := New(Opts{Client: &mockClient{err: c.err}, Channel: "C1"})
		err := n.Send(context.Background(), notify.Message{Subject: "s"})
		if err == nil {
			t.Fatalf("%v: expected error", c.err)
		}
		if notify.IsPermanent(err) != c.permanent {
			t.Errorf("%v: permanent = %v, want %v", c.err, notify.IsPermanent(err), c.permanent)
		}
	}
}
