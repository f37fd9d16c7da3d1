package chathub_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crmchat/backend/internal/chathub"
	"crmchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type fakeNotificationStore struct {
	mu      sync.Mutex
	failFor map[string]error
	saved   []models.Notification
}

func (s *fakeNotificationStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[n.Recipient]; err != nil {
		return err
	}
	n.ID = uint(len(s.saved) + 1)
	s.saved = append(s.saved, *n)
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	pushed map[string][]models.OutboundEvent
}

func (e *recordingEmitter) EmitTo(ev models.OutboundEvent, channels ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pushed == nil {
		e.pushed = map[string][]models.OutboundEvent{}
	}
	for _, ch := range channels {
		e.pushed[ch] = append(e.pushed[ch], ev)
	}
}

func groupBuild(recipient string) models.Notification {
	return models.Notification{Author: "A", Recipient: recipient, Message: "hi", MessageType: models.NotificationGroupMessage}
}

func groupPush(n *models.Notification) models.OutboundEvent {
	return models.NewOutbound(models.EventNewNotification, models.GroupNotificationPush{Notification: *n, GroupName: "Sales"})
}

func TestNotifier_NotifyPersistsBeforePush(t *testing.T) {
	store := &fakeNotificationStore{}
	emit := &recordingEmitter{}
	n := chathub.NewNotifier(store, emit, zap.NewNop())

	var pushedID uint
	err := n.Notify(context.Background(), &models.Notification{Recipient: "B", MessageType: models.NotificationChat},
		func(rec *models.Notification) models.OutboundEvent {
			pushedID = rec.ID
			return models.NewOutbound(models.EventSendNotification, nil)
		})
	require.NoError(t, err)
	assert.Equal(t, uint(1), pushedID)
	assert.Len(t, emit.pushed["B"], 1)
}

func TestNotifier_NotifyWriteFailureSkipsPush(t *testing.T) {
	store := &fakeNotificationStore{failFor: map[string]error{"B": errors.New("db down")}}
	emit := &recordingEmitter{}
	n := chathub.NewNotifier(store, emit, zap.NewNop())

	err := n.Notify(context.Background(), &models.Notification{Recipient: "B"}, groupPush)
	require.Error(t, err)
	assert.Empty(t, emit.pushed["B"])
}

func TestNotifier_FanOutExcludesAuthor(t *testing.T) {
	store := &fakeNotificationStore{}
	emit := &recordingEmitter{}
	n := chathub.NewNotifier(store, emit, zap.NewNop())

	err := n.FanOut(context.Background(), "A", []string{"A", "B", "C", "B"}, groupBuild, groupPush)
	require.NoError(t, err)

	assert.Len(t, store.saved, 2)
	assert.Empty(t, emit.pushed["A"])
	assert.Len(t, emit.pushed["B"], 1)
	assert.Len(t, emit.pushed["C"], 1)
}

func TestNotifier_FanOutCollectsFailures(t *testing.T) {
	store := &fakeNotificationStore{failFor: map[string]error{
		"B": errors.New("b failed"),
		"D": errors.New("d failed"),
	}}
	emit := &recordingEmitter{}
	n := chathub.NewNotifier(store, emit, zap.NewNop())

	err := n.FanOut(context.Background(), "A", []string{"A", "B", "C", "D", "E"}, groupBuild, groupPush)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	assert.Len(t, emit.pushed["C"], 1)
	assert.Len(t, emit.pushed["E"], 1)
	assert.Empty(t, emit.pushed["B"])
	assert.Empty(t, emit.pushed["D"])
}
