package storage

import (
	"context"
	"fmt"

	"crmchat/backend/internal/models"
)

// SaveAdmin inserts or updates an admin.
func (s *Service) SaveAdmin(ctx context.Context, admin *models.Admin) error {
	if err := s.DB.WithContext(ctx).Save(admin).Error; err != nil {
		return fmt.Errorf("save admin %s: %w", admin.Email, err)
	}
	return nil
}

// GetAdminByID returns ErrNotFound when no admin has that ID.
func (s *Service) GetAdminByID(ctx context.Context, id string) (*models.Admin, error) {
	var admin models.Admin
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&admin).Error; err != nil {
		return nil, notFound(err, "admin", id)
	}
	return &admin, nil
}

// ListAdmins returns the admins of an organization except exclude, ordered by name.
func (s *Service) ListAdmins(ctx context.Context, organization, exclude string) ([]models.Admin, error) {
	var out []models.Admin
	err := s.DB.WithContext(ctx).
		Where("organization = ? AND id <> ?", organization, exclude).
		Order("name asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list admins of %s: %w", organization, err)
	}
	return out, nil
}

// SaveChatRoom inserts or updates a group record.
func (s *Service) SaveChatRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := s.DB.WithContext(ctx).Save(room).Error; err != nil {
		return fmt.Errorf("save chat room %s: %w", room.GroupName, err)
	}
	return nil
}

// GetChatRoom returns ErrNotFound when the group does not exist.
func (s *Service) GetChatRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, notFound(err, "chat room", id)
	}
	return &room, nil
}
