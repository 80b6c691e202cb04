// Package notify fans a request transition out to its audience: one
// Notification row per recipient, a best-effort Redis publish, and for a
// small set of transitions a best-effort email. Nothing in this package may
// fail the transition that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dispatch/internal/featureflags"
	"dispatch/internal/mail"
	"dispatch/internal/models"
	"dispatch/internal/notifications"
	"dispatch/internal/observability"
	"dispatch/internal/repository"
)

// EventType tags the transition that triggered a fan-out.
type EventType string

const (
	EventSubmitted  EventType = "request_submitted"
	EventAssigned   EventType = "request_assigned"
	EventConfirmed  EventType = "request_confirmed"
	EventRejected   EventType = "request_rejected"
	EventInProgress EventType = "request_in_progress"
	EventCompleted  EventType = "request_completed"
	EventClosed     EventType = "request_closed"
	EventRated      EventType = "request_rated"
	EventSLABreach  EventType = "sla_breached"
)

// Event is one fan-out trigger. The request row is re-read at dispatch
// time, so events stay small and stale snapshots are impossible.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	RequestID  uint      `json:"request_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

const defaultLanguage = "en"

// Fanout resolves audiences and emits notifications.
type Fanout struct {
	users         repository.UserRepository
	requests      repository.RequestRepository
	notifications repository.NotificationRepository
	settings      repository.SettingRepository
	mailer        mail.Mailer
	notifier      *notifications.Notifier
	flags         *featureflags.Manager
	log           *slog.Logger
}

// NewFanout wires a Fanout. notifier and flags may be nil.
func NewFanout(
	users repository.UserRepository,
	requests repository.RequestRepository,
	notificationRepo repository.NotificationRepository,
	settings repository.SettingRepository,
	mailer mail.Mailer,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
	log *slog.Logger,
) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{
		users:         users,
		requests:      requests,
		notifications: notificationRepo,
		settings:      settings,
		mailer:        mailer,
		notifier:      notifier,
		flags:         flags,
		log:           log,
	}
}

// Dispatch processes one event. Every failure is logged and swallowed;
// recipients are handled independently so one bad address cannot starve
// the rest of the audience.
func (f *Fanout) Dispatch(ctx context.Context, evt Event) {
	request, err := f.requests.GetByID(ctx, evt.RequestID)
	if err != nil {
		f.log.ErrorContext(ctx, "fanout: request lookup failed",
			slog.String("event_id", evt.ID),
			slog.String("event_type", string(evt.Type)),
			slog.Uint64("request_id", uint64(evt.RequestID)),
			slog.String("error", err.Error()),
		)
		return
	}

	title, body := content(evt.Type, request)
	recipients := f.resolveAudience(ctx, evt.Type, request)

	for _, recipient := range recipients {
		f.notifyOne(ctx, evt, request, recipient, title, body)
	}

	if evt.Type == EventSubmitted {
		f.emailOpsList(ctx, request)
	}
	if evt.Type == EventSLABreach && f.notifier != nil && !f.muted("mute_realtime") {
		if err := f.notifier.PublishOps(ctx, notifications.Payload{
			Type:      string(evt.Type),
			Title:     title,
			Body:      body,
			RequestID: request.ID,
		}); err != nil {
			f.log.WarnContext(ctx, "fanout: ops publish failed",
				slog.String("event_id", evt.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *Fanout) notifyOne(ctx context.Context, evt Event, request *models.Request, recipient models.User, title, body string) {
	requestID := request.ID
	row := models.Notification{
		UserID:    recipient.ID,
		Type:      string(evt.Type),
		Title:     title,
		Body:      body,
		RequestID: &requestID,
	}
	if err := f.notifications.Create(ctx, &row); err != nil {
		f.log.ErrorContext(ctx, "fanout: notification write failed",
			slog.String("event_id", evt.ID),
			slog.Uint64("user_id", uint64(recipient.ID)),
			slog.String("error", err.Error()),
		)
	} else {
		observability.NotificationsSent.WithLabelValues("inapp").Inc()
	}

	if f.notifier != nil && !f.muted("mute_realtime") {
		if err := f.notifier.PublishUser(ctx, recipient.ID, notifications.Payload{
			Type:      string(evt.Type),
			Title:     title,
			Body:      body,
			RequestID: request.ID,
		}); err != nil {
			f.log.WarnContext(ctx, "fanout: realtime publish failed",
				slog.String("event_id", evt.ID),
				slog.Uint64("user_id", uint64(recipient.ID)),
				slog.String("error", err.Error()),
			)
		}
	}

	if template, emailed := emailTemplate(evt.Type); emailed && recipient.Email != "" {
		f.email(ctx, recipient.Email, template, request)
	}
}

// email sends one best-effort email; failures are logged for later
// investigation and never propagated.
func (f *Fanout) email(ctx context.Context, to, templateID string, request *models.Request) {
	if f.mailer == nil || f.muted("mute_emails") {
		return
	}
	payload := map[string]string{
		"request_number": request.Number,
		"status":         string(request.Status),
		"customer_name":  request.CustomerName,
	}
	if err := f.mailer.Send(ctx, to, templateID, payload, defaultLanguage); err != nil {
		f.log.ErrorContext(ctx, "fanout: email delivery failed",
			slog.String("to", to),
			slog.String("template", templateID),
			slog.String("request_number", request.Number),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.NotificationsSent.WithLabelValues("email").Inc()
}

// emailOpsList mails the configured operations recipients about a new
// submission. The list is a comma-separated setting; an unset or broken
// setting simply means no ops mail.
func (f *Fanout) emailOpsList(ctx context.Context, request *models.Request) {
	raw, err := f.settings.Get(ctx, models.SettingScopeNotifications, models.SettingKeyOpsEmails)
	if err != nil {
		f.log.WarnContext(ctx, "fanout: ops email list lookup failed",
			slog.String("error", err.Error()))
		return
	}
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		f.email(ctx, addr, mail.TemplateRequestSubmitted, request)
	}
}

// resolveAudience maps an event type to its recipients.
func (f *Fanout) resolveAudience(ctx context.Context, eventType EventType, request *models.Request) []models.User {
	var recipients []models.User

	addCustomer := func() {
		customer, err := f.users.GetByID(ctx, request.CustomerID)
		if err != nil {
			f.log.WarnContext(ctx, "fanout: customer lookup failed",
				slog.Uint64("customer_id", uint64(request.CustomerID)),
				slog.String("error", err.Error()))
			return
		}
		if customer.Active {
			recipients = append(recipients, *customer)
		}
	}
	addAdmins := func() {
		admins, err := f.users.ListAdmins(ctx)
		if err != nil {
			f.log.WarnContext(ctx, "fanout: admin lookup failed",
				slog.String("error", err.Error()))
			return
		}
		recipients = append(recipients, admins...)
	}
	addBranchUsers := func() {
		if request.BranchID == nil {
			return
		}
		staff, err := f.users.ListBranchUsers(ctx, *request.BranchID)
		if err != nil {
			f.log.WarnContext(ctx, "fanout: branch staff lookup failed",
				slog.Uint64("branch_id", uint64(*request.BranchID)),
				slog.String("error", err.Error()))
			return
		}
		recipients = append(recipients, staff...)
	}

	switch eventType {
	case EventSubmitted:
		addAdmins()
	case EventAssigned:
		addCustomer()
		addBranchUsers()
	case EventConfirmed:
		addCustomer()
		addAdmins()
	case EventRejected:
		addCustomer()
		addAdmins()
	case EventInProgress:
		addCustomer()
	case EventCompleted:
		addCustomer()
		addAdmins()
	case EventClosed:
		addCustomer()
		addBranchUsers()
	case EventRated:
		addAdmins()
	case EventSLABreach:
		addAdmins()
	}

	return recipients
}

func (f *Fanout) muted(flag string) bool {
	return f.flags != nil && f.flags.Enabled(flag, 0)
}

// emailTemplate returns the template for event types that are emailed;
// everything else is in-app only.
func emailTemplate(eventType EventType) (string, bool) {
	switch eventType {
	case EventSubmitted:
		return mail.TemplateRequestSubmitted, true
	case EventInProgress:
		return mail.TemplateRequestInProgress, true
	case EventCompleted:
		return mail.TemplateRequestCompleted, true
	default:
		return "", false
	}
}

func content(eventType EventType, request *models.Request) (title, body string) {
	switch eventType {
	case EventSubmitted:
		return "New service request",
			fmt.Sprintf("Request %s was submitted by %s.", request.Number, request.CustomerName)
	case EventAssigned:
		return "Request assigned",
			fmt.Sprintf("Request %s has been assigned to a service branch.", request.Number)
	case EventConfirmed:
		return "Assignment confirmed",
			fmt.Sprintf("The partner confirmed request %s.", request.Number)
	case EventRejected:
		return "Assignment rejected",
			fmt.Sprintf("The partner rejected request %s; it is back in the pool.", request.Number)
	case EventInProgress:
		return "Work started",
			fmt.Sprintf("Work on request %s has started.", request.Number)
	case EventCompleted:
		return "Request completed",
			fmt.Sprintf("Request %s has been completed.", request.Number)
	case EventClosed:
		return "Request closed",
			fmt.Sprintf("Request %s is now closed.", request.Number)
	case EventRated:
		return "Request rated",
			fmt.Sprintf("The customer rated request %s.", request.Number)
	case EventSLABreach:
		return "SLA breach",
			fmt.Sprintf("Request %s was not confirmed before its SLA deadline and has returned to the pool.", request.Number)
	default:
		return string(eventType), fmt.Sprintf("Update on request %s.", request.Number)
	}
}
