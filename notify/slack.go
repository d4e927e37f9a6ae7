package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/internal/httpstatus"
)

// Slack posts messages to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlack returns a Slack notifier. A nil client gets a 10 second timeout.
func NewSlack(webhookURL string, client *http.Client, logger *slog.Logger) *Slack {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Slack{webhookURL: webhookURL, client: client, logger: logger}
}

// Name implements Notifier.
func (s *Slack) Name() string {
	return "slack"
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Notify posts msg. Channel overrides the webhook's default channel when set.
func (s *Slack) Notify(ctx context.Context, msg Message) error {
	if s.webhookURL == "" {
		return errors.New(errors.CodeInvalidConfig, "slack webhook url is required")
	}

	body, err := json.Marshal(slackPayload{Channel: msg.Channel, Text: msg.Text})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to marshal slack payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid slack webhook url")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "failed to send webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpstatus.Error(resp, errors.CodeNotifyFailed, "slack webhook")
	}
	s.logger.Info("sent slack message", "channel", msg.Channel)
	return nil
}
