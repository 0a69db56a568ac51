package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Notifier delivers one alert text to the configured channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Nop discards alerts. It is used when no channel is configured.
type Nop struct {
	Logger *zap.Logger
}

func (n Nop) Send(ctx context.Context, text string) error {
	if n.Logger != nil {
		n.Logger.Debug("notify_disabled_drop", zap.Int("text_len", len(text)))
	}
	return nil
}

var ErrMultipleChannels = errors.New("notify: configure either a slack webhook or a generic webhook, not both")

// Settings selects and configures the single outbound channel.
type Settings struct {
	SlackWebhookURL string
	WebhookURL      string
	WebhookSecret   string
	Label           string
}

// New returns the one channel described by s, or Nop when none is set.
func New(s Settings, logger *zap.Logger) (Notifier, error) {
	switch {
	case s.SlackWebhookURL != "" && s.WebhookURL != "":
		return nil, ErrMultipleChannels
	case s.SlackWebhookURL != "":
		return NewSlack(s.SlackWebhookURL, s.Label), nil
	case s.WebhookURL != "":
		return NewWebhook(s.WebhookURL, s.WebhookSecret, s.Label), nil
	default:
		if logger != nil {
			logger.Warn("notify_no_channel_configured")
		}
		return Nop{Logger: logger}, nil
	}
}
