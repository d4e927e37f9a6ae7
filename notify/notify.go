// Package notify announces finished releases on chat services.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// DefaultTemplate is the message used when none is configured.
const DefaultTemplate = "{{.Name}} {{.Version}} has been released"

// Message is a chat message addressed to a channel or room.
type Message struct {
	Channel string
	Text    string
	// Key identifies the message for de-duplication on retry. Services that
	// support idempotent sends derive their transaction id from it.
	Key string
}

// Notifier delivers a Message.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// TemplateData is the data available to message templates.
type TemplateData struct {
	Name       string
	Version    string
	Tag        string
	ReleaseURL string
	Changelog  string
}

// Render executes tmpl with data. The result must mention the version so a
// template that drops it is rejected.
func Render(tmpl string, data TemplateData) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	t, err := template.New("message").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid message template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if data.Version != "" && !strings.Contains(text, data.Version) {
		return "", fmt.Errorf("rendered message %q does not contain version %s", text, data.Version)
	}
	return text, nil
}
