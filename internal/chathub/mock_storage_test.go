package chathub_test

import (
	"context"

	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) SaveDirectMessage(ctx context.Context, sender, recipient string, c storage.Content) (*models.Message, error) {
	args := m.Called(ctx, sender, recipient, c)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockStorage) SaveGroupMessage(ctx context.Context, sender, groupID string, c storage.Content) (*models.Message, error) {
	args := m.Called(ctx, sender, groupID, c)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockStorage) ListMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *MockStorage) ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessageView, error) {
	args := m.Called(ctx, groupID)
	msgs, _ := args.Get(0).([]models.GroupMessageView)
	return msgs, args.Error(1)
}

func (m *MockStorage) MarkDirectRead(ctx context.Context, recipient, sender string) (int64, error) {
	args := m.Called(ctx, recipient, sender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) MarkGroupRead(ctx context.Context, userID, groupID string) (int64, error) {
	args := m.Called(ctx, userID, groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

func (m *MockStorage) GroupUnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

func (m *MockStorage) CreateNotification(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockStorage) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	args := m.Called(ctx, recipient)
	list, _ := args.Get(0).([]models.Notification)
	return list, args.Error(1)
}

func (m *MockStorage) MarkNotificationsSeen(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SaveAdmin(ctx context.Context, admin *models.Admin) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

func (m *MockStorage) GetAdminByID(ctx context.Context, id string) (*models.Admin, error) {
	args := m.Called(ctx, id)
	admin, _ := args.Get(0).(*models.Admin)
	return admin, args.Error(1)
}

func (m *MockStorage) ListAdmins(ctx context.Context, organization, exclude string) ([]models.Admin, error) {
	args := m.Called(ctx, organization, exclude)
	admins, _ := args.Get(0).([]models.Admin)
	return admins, args.Error(1)
}

func (m *MockStorage) SaveChatRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetChatRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	args := m.Called(ctx, id)
	room, _ := args.Get(0).(*models.ChatRoom)
	return room, args.Error(1)
}

func (m *MockStorage) SetOnline(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockStorage) SetOffline(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockStorage) OnlineUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]string)
	return users, args.Error(1)
}
