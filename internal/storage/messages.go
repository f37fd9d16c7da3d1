package storage

import (
	"context"
	"fmt"

	"crmchat/backend/internal/models"
)

// SaveDirectMessage persists a one-to-one message. Content is not validated here;
// callers decide whether an empty body is acceptable.
func (s *Service) SaveDirectMessage(ctx context.Context, sender, recipient string, c Content) (*models.Message, error) {
	msg := &models.Message{
		Sender:    sender,
		Recipient: recipient,
		Message:   c.Text,
		File:      c.File,
		FileName:  c.FileName,
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save direct message from %s: %w", sender, err)
	}
	return msg, nil
}

// SaveGroupMessage persists one message for the whole group.
func (s *Service) SaveGroupMessage(ctx context.Context, sender, groupID string, c Content) (*models.Message, error) {
	msg := &models.Message{
		Sender:   sender,
		GroupID:  groupID,
		Message:  c.Text,
		File:     c.File,
		FileName: c.FileName,
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save group message in %s: %w", groupID, err)
	}
	return msg, nil
}

// ListMessagesBetween returns the one-to-one conversation of two users, oldest first.
func (s *Service) ListMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("group_id = ''").
		Where("(sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)", userA, userB, userB, userA).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages between %s and %s: %w", userA, userB, err)
	}
	return msgs, nil
}

// ListGroupMessages returns a group's messages, oldest first, each joined with its sender.
// A sender missing from the admins table resolves to an empty list.
func (s *Service) ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessageView, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list group messages %s: %w", groupID, err)
	}

	senderIDs := make([]string, 0, len(msgs))
	seen := make(map[string]bool)
	for _, m := range msgs {
		if !seen[m.Sender] {
			seen[m.Sender] = true
			senderIDs = append(senderIDs, m.Sender)
		}
	}

	admins := make(map[string]models.AdminSummary, len(senderIDs))
	if len(senderIDs) > 0 {
		var rows []models.Admin
		if err := s.DB.WithContext(ctx).Where("id IN ?", senderIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("resolve senders for group %s: %w", groupID, err)
		}
		for i := range rows {
			admins[rows[i].ID] = rows[i].Summary()
		}
	}

	views := make([]models.GroupMessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.GroupMessageView{Message: m, Sender: []models.AdminSummary{}}
		if a, ok := admins[m.Sender]; ok {
			view.Sender = append(view.Sender, a)
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkDirectRead flags every unread message from sender to recipient as read.
func (s *Service) MarkDirectRead(ctx context.Context, recipient, sender string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("sender = ? AND recipient = ? AND is_read = ?", sender, recipient, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark messages from %s to %s read: %w", sender, recipient, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkGroupRead flags every unread message in groupID not sent by userID as read.
func (s *Service) MarkGroupRead(ctx context.Context, userID, groupID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("group_id = ? AND sender <> ? AND is_read = ?", groupID, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark group %s read for %s: %w", groupID, userID, res.Error)
	}
	return res.RowsAffected, nil
}

type countRow struct {
	Bucket string
	Total  int64
}

// UnreadCounts maps each sender to the number of unread one-to-one messages userID has from them.
func (s *Service) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []countRow
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("sender AS bucket, COUNT(*) AS total").
		Where("recipient = ? AND is_read = ? AND group_id = ''", userID, false).
		Group("sender").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("unread counts for %s: %w", userID, err)
	}
	return toCountMap(rows), nil
}

// GroupUnreadCounts maps each group to its unread messages not sent by userID.
func (s *Service) GroupUnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []countRow
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("group_id AS bucket, COUNT(*) AS total").
		Where("group_id <> '' AND is_read = ? AND sender <> ?", false, userID).
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("group unread counts for %s: %w", userID, err)
	}
	return toCountMap(rows), nil
}

func toCountMap(rows []countRow) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] = r.Total
	}
	return out
}
