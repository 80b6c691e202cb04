package service

import (
	"context"
	"time"

	"dispatch/internal/models"
	"dispatch/internal/repository"
)

type NotificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications as read. Marking someone
// else's notification surfaces as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.notifications.MarkRead(ctx, userID, notificationID, time.Now().UTC())
}
