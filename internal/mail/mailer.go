// Package mail is the outbound email collaborator. Delivery is best-effort
// by contract: callers log failures and move on, and no retry/backoff is
// attempted here.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sort"
	"strings"
)

// Template identifiers for transactional emails.
const (
	TemplateRequestSubmitted  = "request_submitted"
	TemplateRequestInProgress = "request_in_progress"
	TemplateRequestCompleted  = "request_completed"
)

// subjects maps template id -> language -> subject line. English is the
// fallback language.
var subjects = map[string]map[string]string{
	TemplateRequestSubmitted: {
		"en": "New service request %s",
		"ru": "Новая заявка %s",
	},
	TemplateRequestInProgress: {
		"en": "Work on request %s has started",
		"ru": "Работа по заявке %s начата",
	},
	TemplateRequestCompleted: {
		"en": "Request %s is completed",
		"ru": "Заявка %s выполнена",
	},
}

// Subject resolves the subject line for a template and language, formatted
// with the request number.
func Subject(templateID, language, requestNumber string) string {
	byLang, ok := subjects[templateID]
	if !ok {
		return requestNumber
	}
	format, ok := byLang[language]
	if !ok {
		format = byLang["en"]
	}
	return fmt.Sprintf(format, requestNumber)
}

// Mailer sends one templated email to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, templateID string, payload map[string]string, language string) error
}

// LogMailer writes emails to the log instead of sending them. Used in
// development and tests.
type LogMailer struct {
	Log *slog.Logger
}

// Send logs the email instead of delivering it.
func (m *LogMailer) Send(ctx context.Context, to, templateID string, payload map[string]string, language string) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "email (log mailer)",
		slog.String("to", to),
		slog.String("template", templateID),
		slog.String("language", language),
		slog.String("payload", flatten(payload)),
	)
	return nil
}

// SMTPMailer delivers via a plain SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

// Send renders the template subject plus a key/value body and submits it to
// the relay.
func (m *SMTPMailer) Send(_ context.Context, to, templateID string, payload map[string]string, language string) error {
	subject := Subject(templateID, language, payload["request_number"])

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(flatten(payload))

	if err := smtp.SendMail(m.Addr, m.Auth, m.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func flatten(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, payload[k])
	}
	return b.String()
}
