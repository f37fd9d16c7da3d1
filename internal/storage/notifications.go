package storage

import (
	"context"
	"fmt"

	"crmchat/backend/internal/models"
)

// CreateNotification inserts n and fills its ID and timestamps.
func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification for %s: %w", n.Recipient, err)
	}
	return nil
}

// ListNotifications returns recipient's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("created_at desc, id desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", recipient, err)
	}
	return out, nil
}

// MarkNotificationsSeen flags all of recipient's unseen notifications.
func (s *Service) MarkNotificationsSeen(ctx context.Context, recipient string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND seen = ?", recipient, false).
		Update("seen", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications seen for %s: %w", recipient, res.Error)
	}
	return res.RowsAffected, nil
}
