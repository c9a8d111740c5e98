package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/adelbrx/univhub/internal/events"
)

// NotificationService records account lifecycle events for operators. Mail
// that participates in a flow's rollback contract is sent synchronously by
// AuthService; this service only observes.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleEvent)
	n.dispatcher.Subscribe(events.EventAccountActivated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handleEvent)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handleEvent)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Info("account event",
		zap.String("type", string(event.Type)),
		zap.String("email", event.Email),
		zap.Time("at", event.Timestamp))
	return nil
}
