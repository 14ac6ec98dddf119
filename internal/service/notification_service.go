package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/config"
	"github.com/edutech-ops/chromebook-helpdesk/internal/events"
)

const notificationDateLayout = "02/01/2006 15:04"

// Notification is the message delivered to the owner channel.
type Notification struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Notifier delivers a notification somewhere outside the service.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// WebhookNotifier posts notifications as JSON to a webhook.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier returns nil when no webhook URL is configured.
func NewWebhookNotifier(cfg config.NotificationConfig) *WebhookNotifier {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, url: cfg.WebhookURL}
}

func (w *WebhookNotifier) Notify(ctx context.Context, notification Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(notification).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode())
	}
	return nil
}

// NotificationService turns domain events into owner notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	location   *time.Location
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil notifier logs only.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, location *time.Location, logger *zap.Logger) *NotificationService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		location:   location,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventSLAViolated, n.handleSLAViolated)
	n.dispatcher.Subscribe(events.EventCriticalUnattended, n.handleCriticalUnattended)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleSLAViolated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAViolatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.deliver(ctx, event, Notification{
		Title: fmt.Sprintf("⚠️ SLA Vencido: %s", payload.TicketNumber),
		Content: fmt.Sprintf(
			"Chamado %s de %s (%s) ultrapassou o prazo de SLA.\nTipo: %s\nAberto em: %s\nPrazo: %s",
			payload.TicketNumber,
			payload.Requester,
			payload.SchoolUnit,
			payload.ProblemType,
			payload.OpenedAt.In(n.location).Format(notificationDateLayout),
			payload.Deadline.In(n.location).Format(notificationDateLayout),
		),
	})
	return nil
}

func (n *NotificationService) handleCriticalUnattended(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CriticalUnattendedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.deliver(ctx, event, Notification{
		Title: fmt.Sprintf("🔴 Chamado Crítico Sem Atendimento: %s", payload.TicketNumber),
		Content: fmt.Sprintf(
			"Chamado crítico %s de %s está aberto há %d horas sem atendimento.\nTipo: %s\nAberto em: %s",
			payload.TicketNumber,
			payload.Requester,
			payload.HoursOpen,
			payload.ProblemType,
			payload.OpenedAt.In(n.location).Format(notificationDateLayout),
		),
	})
	return nil
}

// deliver never fails the caller; webhook errors are logged.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, notification Notification) {
	if n.notifier == nil {
		n.logger.Info("notification",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.String("title", notification.Title))
		return
	}
	if err := n.notifier.Notify(ctx, notification); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
