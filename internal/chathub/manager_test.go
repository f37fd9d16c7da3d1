package chathub_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crmchat/backend/internal/chathub"
	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type testHub struct {
	hub   *chathub.ManagerService
	store *MockStorage
	logs  *observer.ObservedLogs
	dir   string
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	store := new(MockStorage)
	store.On("SetOnline", mock.Anything, mock.Anything).Return(nil).Maybe()
	store.On("SetOffline", mock.Anything, mock.Anything).Return(nil).Maybe()

	dir := filepath.Join(t.TempDir(), "uploads")
	hub, err := chathub.NewManagerService(store, dir, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return &testHub{hub: hub, store: store, logs: logs, dir: dir}
}

// connect registers a mock client under identity.
func (h *testHub) connect(t *testing.T, connID, identity string) *MockClient {
	t.Helper()
	c := newMockClient(connID)
	require.NoError(t, h.hub.Register(c))
	h.dispatch(t, c, models.EventRegister, identity)
	return c
}

func (h *testHub) dispatch(t *testing.T, c *MockClient, event string, args ...any) {
	t.Helper()
	h.hub.Dispatch(context.Background(), c, envelope(t, event, args...))
}

func directMessage(id uint, sender, recipient, text string) *models.Message {
	return &models.Message{Model: gorm.Model{ID: id}, Sender: sender, Recipient: recipient, Message: text}
}

func TestRegister_LatestConnectionWins(t *testing.T) {
	h := newTestHub(t)
	first := h.connect(t, "c1", "alice")
	second := h.connect(t, "c2", "alice")

	connID, ok := h.hub.Presence.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", connID)

	h.hub.Unregister(first)
	connID, ok = h.hub.Presence.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", connID)
	h.store.AssertNotCalled(t, "SetOffline", mock.Anything, "alice")

	h.hub.Unregister(second)
	_, ok = h.hub.Presence.Lookup("alice")
	assert.False(t, ok)
	h.store.AssertCalled(t, "SetOffline", mock.Anything, "alice")
	assert.True(t, second.IsClosed())
	assert.Zero(t, h.hub.ConnectionCount())
}

func TestSendMessage_DeliversThenNotifies(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")
	c := h.connect(t, "cc", "C")

	saved := directMessage(7, "A", "B", "hi")
	h.store.On("SaveDirectMessage", mock.Anything, "A", "B", storage.Content{Text: "hi"}).Return(saved, nil).Once()
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Recipient == "B" && n.Author == "A" &&
			n.MessageType == models.NotificationChat &&
			n.Message == "You have a new message from Alice"
	})).Return(nil).Once()

	h.dispatch(t, a, models.EventSendMessage, models.SendMessageRequest{Sender: "A", Recipient: "B", Message: "hi", SenderName: "Alice"})

	ev := expectEvent(t, a, models.EventReceiveMessage)
	assert.Equal(t, saved, ev.Args[0])
	expectNoEvent(t, a)

	expectEvent(t, b, models.EventReceiveMessage)
	push := expectEvent(t, b, models.EventSendNotification)
	assert.Equal(t, models.DirectNotificationPush{Message: "new chat notification", Sender: "A", Recipient: "B"}, push.Args[0])

	expectNoEvent(t, c)
	h.store.AssertExpectations(t)
}

func TestSendMessage_SelfMessageDeliveredOnce(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")

	h.store.On("SaveDirectMessage", mock.Anything, "A", "A", mock.Anything).Return(directMessage(1, "A", "A", "note"), nil)
	h.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	h.dispatch(t, a, models.EventSendMessage, models.SendMessageRequest{Sender: "A", Recipient: "A", Message: "note"})

	expectEvent(t, a, models.EventReceiveMessage)
	expectEvent(t, a, models.EventSendNotification)
	expectNoEvent(t, a)
}

func TestSendMessage_PersistenceFailureEmitsNothing(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	h.store.On("SaveDirectMessage", mock.Anything, "A", "B", mock.Anything).Return(nil, errors.New("db down"))

	h.dispatch(t, a, models.EventSendMessage, models.SendMessageRequest{Sender: "A", Recipient: "B", Message: "hi"})

	expectNoEvent(t, a)
	expectNoEvent(t, b)
	h.store.AssertNotCalled(t, "CreateNotification", mock.Anything, mock.Anything)
	assert.Equal(t, 1, h.logs.FilterMessage("event failed").Len())
}

func TestSendMessage_EmptyTextIsDropped(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")

	h.dispatch(t, a, models.EventSendMessage, models.SendMessageRequest{Sender: "A", Recipient: "B"})

	expectNoEvent(t, a)
	h.store.AssertNotCalled(t, "SaveDirectMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessages_RepliesOnlyToRequester(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	history := []models.Message{*directMessage(1, "A", "B", "one"), *directMessage(2, "B", "A", "two")}
	h.store.On("ListMessagesBetween", mock.Anything, "A", "B").Return(history, nil)

	h.dispatch(t, a, models.EventGetMessages, models.GetMessagesRequest{User1: "A", User2: "B"})

	ev := expectEvent(t, a, models.EventAllMessages)
	assert.Equal(t, history, ev.Args[0])
	expectNoEvent(t, b)
}

func TestMarkAsRead_NotifiesOtherParty(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	h.store.On("MarkDirectRead", mock.Anything, "B", "A").Return(int64(3), nil)

	h.dispatch(t, b, models.EventMarkAsRead, models.MarkAsReadRequest{UserID: "B", OtherUserID: "A"})

	ev := expectEvent(t, a, models.EventMessagesRead)
	assert.Equal(t, models.MarkAsReadRequest{UserID: "B", OtherUserID: "A"}, ev.Args[0])
	expectNoEvent(t, b)
}

func TestMarkAsRead_NoMatchingRowsStillEmits(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	h.store.On("MarkDirectRead", mock.Anything, "B", "A").Return(int64(0), nil)

	h.dispatch(t, b, models.EventMarkAsRead, models.MarkAsReadRequest{UserID: "B", OtherUserID: "A"})
	expectEvent(t, a, models.EventMessagesRead)
	assert.Zero(t, h.logs.FilterMessage("event failed").Len())
}

func TestJoinGroup_AnnouncesToOthers(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	h.dispatch(t, a, models.EventJoinGroup, "g1", "alice")
	expectNoEvent(t, a)

	h.dispatch(t, b, models.EventJoinGroup, "g1", "bob")
	ev := expectEvent(t, a, models.EventUserJoined)
	assert.Equal(t, models.UserJoinedPayload{Username: "bob"}, ev.Args[0])
	expectNoEvent(t, b)

	h.dispatch(t, b, models.EventJoinGroup, "g1", "bob")
	expectEvent(t, a, models.EventUserJoined)
	assert.Equal(t, []string{"alice", "bob"}, h.hub.Groups.Members("g1"))
}

func TestMarkGroupAsRead_BroadcastsToGroup(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")
	h.dispatch(t, a, models.EventJoinGroup, "g1", "A")
	h.dispatch(t, b, models.EventJoinGroup, "g1", "B")
	expectEvent(t, a, models.EventUserJoined)

	h.store.On("MarkGroupRead", mock.Anything, "B", "g1").Return(int64(1), nil)
	h.dispatch(t, b, models.EventMarkGroupAsRead, models.MarkGroupAsReadRequest{UserID: "B", GroupID: "g1"})

	expectEvent(t, a, models.EventGroupMessagesRead)
	expectEvent(t, b, models.EventGroupMessagesRead)
}

// joinAll registers A, B and C and joins each to group g.
func joinAll(t *testing.T, h *testHub) (a, b, c *MockClient) {
	a = h.connect(t, "ca", "A")
	b = h.connect(t, "cb", "B")
	c = h.connect(t, "cc", "C")
	h.dispatch(t, a, models.EventJoinGroup, "g", "A")
	h.dispatch(t, b, models.EventJoinGroup, "g", "B")
	h.dispatch(t, c, models.EventJoinGroup, "g", "C")
	expectEvent(t, a, models.EventUserJoined)
	expectEvent(t, a, models.EventUserJoined)
	expectEvent(t, b, models.EventUserJoined)
	return a, b, c
}

func TestSendGroupMessage_FansOutToParticipants(t *testing.T) {
	h := newTestHub(t)
	a, b, c := joinAll(t, h)

	saved := &models.Message{Model: gorm.Model{ID: 9}, Sender: "A", GroupID: "g", Message: "hello"}
	h.store.On("SaveGroupMessage", mock.Anything, "A", "g", storage.Content{Text: "hello"}).Return(saved, nil)
	h.store.On("GetAdminByID", mock.Anything, "A").Return(&models.Admin{ID: "A", Name: "Alice"}, nil)
	h.store.On("GetChatRoom", mock.Anything, "g").Return(&models.ChatRoom{ID: "g", GroupName: "Sales", Participants: []string{"A", "B", "C"}}, nil)
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Author == "A" && n.MessageType == models.NotificationGroupMessage &&
			n.Message == "New message in Sales from Alice"
	})).Return(nil).Twice()

	h.dispatch(t, a, models.EventSendGroupMessage, models.SendGroupMessageRequest{Sender: "A", GroupID: "g", Message: "hello"})

	for _, cl := range []*MockClient{a, b, c} {
		ev := expectEvent(t, cl, models.EventReceiveGroupMessage)
		view := ev.Args[0].(models.GroupMessageView)
		assert.Equal(t, uint(9), view.ID)
		require.Len(t, view.Sender, 1)
		assert.Equal(t, "Alice", view.Sender[0].Name)
	}
	for identity, cl := range map[string]*MockClient{"B": b, "C": c} {
		ev := expectEvent(t, cl, models.EventNewNotification)
		push := ev.Args[0].(models.GroupNotificationPush)
		assert.Equal(t, "Sales", push.GroupName)
		assert.Equal(t, "Alice", push.SenderName)
		assert.Equal(t, identity, push.Notification.Recipient)
		expectNoEvent(t, cl)
	}
	expectNoEvent(t, a)

	h.store.AssertNumberOfCalls(t, "SaveGroupMessage", 1)
	h.store.AssertNumberOfCalls(t, "CreateNotification", 2)
}

func TestSendGroupMessage_OneFailedNotificationDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(t)
	a, b, c := joinAll(t, h)

	h.store.On("SaveGroupMessage", mock.Anything, "A", "g", mock.Anything).Return(&models.Message{Sender: "A", GroupID: "g", Message: "x"}, nil)
	h.store.On("GetAdminByID", mock.Anything, "A").Return(nil, storage.ErrNotFound)
	h.store.On("GetChatRoom", mock.Anything, "g").Return(&models.ChatRoom{ID: "g", GroupName: "Sales", Participants: []string{"A", "B", "C"}}, nil)
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool { return n.Recipient == "B" })).Return(errors.New("write failed"))
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Recipient == "C" && n.Message == "New message in Sales from Unknown"
	})).Return(nil)

	h.dispatch(t, a, models.EventSendGroupMessage, models.SendGroupMessageRequest{Sender: "A", GroupID: "g", Message: "x"})

	ev := expectEvent(t, a, models.EventReceiveGroupMessage)
	assert.Empty(t, ev.Args[0].(models.GroupMessageView).Sender)
	expectEvent(t, b, models.EventReceiveGroupMessage)
	expectEvent(t, c, models.EventReceiveGroupMessage)

	expectEvent(t, c, models.EventNewNotification)
	expectNoEvent(t, b)
	assert.Equal(t, 1, h.logs.FilterMessage("notification failed").Len())
}

func TestSendGroupMessage_MissingGroupRecordSkipsNotifications(t *testing.T) {
	h := newTestHub(t)
	a, b, _ := joinAll(t, h)

	h.store.On("SaveGroupMessage", mock.Anything, "A", "g", mock.Anything).Return(&models.Message{Sender: "A", GroupID: "g", Message: "x"}, nil)
	h.store.On("GetAdminByID", mock.Anything, "A").Return(&models.Admin{ID: "A", Name: "Alice"}, nil)
	h.store.On("GetChatRoom", mock.Anything, "g").Return(nil, storage.ErrNotFound)

	h.dispatch(t, a, models.EventSendGroupMessage, models.SendGroupMessageRequest{Sender: "A", GroupID: "g", Message: "x"})

	expectEvent(t, a, models.EventReceiveGroupMessage)
	expectEvent(t, b, models.EventReceiveGroupMessage)
	expectNoEvent(t, b)
	h.store.AssertNotCalled(t, "CreateNotification", mock.Anything, mock.Anything)
}

func TestGetGroupMessages_RepliesOnlyToRequester(t *testing.T) {
	h := newTestHub(t)
	a, b, _ := joinAll(t, h)

	views := []models.GroupMessageView{{Message: models.Message{Sender: "B", GroupID: "g", Message: "m"}}}
	h.store.On("ListGroupMessages", mock.Anything, "g").Return(views, nil)

	h.dispatch(t, a, models.EventGetGroupMessages, "g")
	ev := expectEvent(t, a, models.EventAllGroupMessages)
	assert.Equal(t, views, ev.Args[0])
	expectNoEvent(t, b)
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileUpload_DirectEndToEnd(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	b := h.connect(t, "cb", "B")

	h.store.On("SaveDirectMessage", mock.Anything, "A", "B", mock.MatchedBy(func(c storage.Content) bool {
		return c.Text == "see file" && c.FileName == "x.txt" &&
			strings.HasPrefix(c.File, "uploads/") && strings.HasSuffix(c.File, "-x.txt")
	})).Return(&models.Message{Sender: "A", Recipient: "B", File: "uploads/x", FileName: "x.txt"}, nil).Once()
	h.store.On("GetAdminByID", mock.Anything, "A").Return(nil, storage.ErrNotFound)
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Recipient == "B" && n.MessageType == models.NotificationChatFile &&
			n.Message == "Someone sent you a file: x.txt"
	})).Return(nil).Once()

	h.dispatch(t, a, models.EventStartUpload, models.StartUploadRequest{FileName: "x.txt", Sender: "A", Recipient: "B", Message: "see file"})
	require.NoError(t, h.hub.HandleChunk(a, []byte("ab")))
	h.dispatch(t, a, models.EventFileChunk, []byte("cd"))
	require.NoError(t, h.hub.HandleChunk(a, []byte("ef")))
	h.dispatch(t, a, models.EventFileChunkEnd)

	expectEvent(t, a, models.EventReceiveMessage)
	expectEvent(t, b, models.EventReceiveMessage)
	push := expectEvent(t, b, models.EventSendNotification)
	assert.Equal(t, "new file received", push.Args[0].(models.DirectNotificationPush).Message)

	files := uploadedFiles(t, h.dir)
	require.Len(t, files, 1)
	data, err := os.ReadFile(filepath.Join(h.dir, files[0]))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
	h.store.AssertExpectations(t)
}

func TestFileUpload_GroupEndToEnd(t *testing.T) {
	h := newTestHub(t)
	a, b, c := joinAll(t, h)

	h.store.On("SaveGroupMessage", mock.Anything, "A", "g", mock.MatchedBy(func(content storage.Content) bool {
		return content.FileName == "deck.pdf"
	})).Return(&models.Message{Sender: "A", GroupID: "g", File: "uploads/deck", FileName: "deck.pdf"}, nil).Once()
	h.store.On("GetAdminByID", mock.Anything, "A").Return(&models.Admin{ID: "A", Name: "Alice"}, nil)
	h.store.On("GetChatRoom", mock.Anything, "g").Return(&models.ChatRoom{ID: "g", GroupName: "Sales", Participants: []string{"A", "B", "C"}}, nil)
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.MessageType == models.NotificationGroupFile && n.Message == "Alice sent a file in Sales"
	})).Return(nil).Twice()

	h.dispatch(t, a, models.EventStartGroupUpload, models.StartUploadRequest{FileName: "deck.pdf", Sender: "A", GroupID: "g"})
	require.NoError(t, h.hub.HandleChunk(a, []byte("%PDF")))
	h.dispatch(t, a, models.EventFileChunkEnd)

	for _, cl := range []*MockClient{a, b, c} {
		expectEvent(t, cl, models.EventReceiveGroupMessage)
	}
	for _, cl := range []*MockClient{b, c} {
		ev := expectEvent(t, cl, models.EventNewNotification)
		assert.Equal(t, "deck.pdf", ev.Args[0].(models.GroupNotificationPush).FileName)
	}
	expectNoEvent(t, a)
}

func TestFileUpload_ZeroChunksStillPersists(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")

	h.store.On("SaveDirectMessage", mock.Anything, "A", "B", mock.MatchedBy(func(c storage.Content) bool {
		return c.File != "" && c.FileName == "empty.txt"
	})).Return(&models.Message{Sender: "A", Recipient: "B"}, nil).Once()
	h.store.On("GetAdminByID", mock.Anything, "A").Return(nil, storage.ErrNotFound)
	h.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	h.dispatch(t, a, models.EventStartUpload, models.StartUploadRequest{FileName: "empty.txt", Sender: "A", Recipient: "B"})
	h.dispatch(t, a, models.EventFileChunkEnd)

	expectEvent(t, a, models.EventReceiveMessage)
	files := uploadedFiles(t, h.dir)
	require.Len(t, files, 1)
	info, err := os.Stat(filepath.Join(h.dir, files[0]))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFileUpload_StrayChunksAreIgnored(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")

	assert.ErrorIs(t, h.hub.HandleChunk(a, []byte("x")), chathub.ErrNoSession)
	h.dispatch(t, a, models.EventFileChunkEnd)

	expectNoEvent(t, a)
	assert.Zero(t, h.logs.FilterMessage("event failed").Len())
	assert.Empty(t, uploadedFiles(t, h.dir))
}

func TestDisconnect_AbortsOpenUpload(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")

	h.dispatch(t, a, models.EventStartUpload, models.StartUploadRequest{FileName: "x.txt", Sender: "A", Recipient: "B"})
	require.NoError(t, h.hub.HandleChunk(a, []byte("partial")))
	h.hub.Unregister(a)

	require.Eventually(t, func() bool {
		return h.hub.Uploads.State("ca") == chathub.StateIdle && len(uploadedFiles(t, h.dir)) == 0
	}, 2*time.Second, 10*time.Millisecond)
	h.store.AssertNotCalled(t, "SaveDirectMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShutdown_ClosesClientsAndRefusesNew(t *testing.T) {
	h := newTestHub(t)
	a := h.connect(t, "ca", "A")
	h.dispatch(t, a, models.EventStartUpload, models.StartUploadRequest{FileName: "x.txt", Sender: "A", Recipient: "B"})
	require.NoError(t, h.hub.HandleChunk(a, []byte("partial")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.hub.Shutdown(ctx))

	assert.True(t, a.IsClosed())
	assert.Empty(t, uploadedFiles(t, h.dir))
	assert.ErrorIs(t, h.hub.Register(newMockClient("late")), chathub.ErrShuttingDown)
	assert.Error(t, h.hub.Context().Err())
	h.store.AssertNotCalled(t, "SaveDirectMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessage_NotificationTextFollowsLanguage(t *testing.T) {
	h := newTestHub(t)
	h.hub.Lang = "uk"
	a := h.connect(t, "ca", "A")

	h.store.On("SaveDirectMessage", mock.Anything, "A", "B", mock.Anything).Return(directMessage(1, "A", "B", "привіт"), nil)
	h.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Message == "Нове повідомлення від Олена"
	})).Return(nil).Once()

	h.dispatch(t, a, models.EventSendMessage, models.SendMessageRequest{Sender: "A", Recipient: "B", Message: "привіт", SenderName: "Олена"})

	expectEvent(t, a, models.EventReceiveMessage)
	h.store.AssertExpectations(t)
}
