package chathub

import (
	"context"
	"errors"
	"fmt"

	"crmchat/backend/internal/localization"
	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"

	"go.uber.org/zap"
)

var errMissingField = errors.New("required field missing")

// Dispatch routes one inbound event from c. Events carry no acknowledgement:
// failures are logged and the client hears nothing.
func (m *ManagerService) Dispatch(ctx context.Context, c Client, env models.Envelope) {
	var err error
	switch env.Event {
	case models.EventRegister:
		err = m.handleRegister(ctx, c, env)
	case models.EventStartUpload:
		err = m.handleStartUpload(c, env, false)
	case models.EventStartGroupUpload:
		err = m.handleStartUpload(c, env, true)
	case models.EventFileChunk:
		var chunk []byte
		if err = env.Arg(0, &chunk); err == nil {
			err = m.HandleChunk(c, chunk)
		}
	case models.EventFileChunkEnd:
		err = m.Uploads.End(c.GetConnID())
	case models.EventSendMessage:
		err = m.handleSendMessage(ctx, env)
	case models.EventGetMessages:
		err = m.handleGetMessages(ctx, c, env)
	case models.EventMarkAsRead:
		err = m.handleMarkAsRead(ctx, env)
	case models.EventMarkGroupAsRead:
		err = m.handleMarkGroupAsRead(ctx, env)
	case models.EventJoinGroup:
		err = m.handleJoinGroup(c, env)
	case models.EventSendGroupMessage:
		err = m.handleSendGroupMessage(ctx, env)
	case models.EventGetGroupMessages:
		err = m.handleGetGroupMessages(ctx, c, env)
	case models.EventDisconnect:
		m.Unregister(c)
	default:
		m.log.Debug("unknown event", zap.String("event", env.Event), zap.String("conn_id", c.GetConnID()))
		return
	}

	if err == nil {
		return
	}
	// Stray chunks after an upload ended are expected noise.
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionClosed) {
		m.log.Debug("upload event ignored", zap.String("event", env.Event), zap.String("conn_id", c.GetConnID()), zap.Error(err))
		return
	}
	m.log.Error("event failed", zap.String("event", env.Event), zap.String("conn_id", c.GetConnID()), zap.Error(err))
}

// HandleChunk appends a binary frame to the connection's open upload.
func (m *ManagerService) HandleChunk(c Client, chunk []byte) error {
	return m.Uploads.Chunk(c.GetConnID(), chunk)
}

func (m *ManagerService) handleRegister(ctx context.Context, c Client, env models.Envelope) error {
	var identity string
	if err := env.Arg(0, &identity); err != nil {
		return err
	}
	if identity == "" {
		return fmt.Errorf("register: identity: %w", errMissingField)
	}
	m.Presence.Register(identity, c.GetConnID())
	m.channels.join(c, identity)
	if err := m.Storage.SetOnline(ctx, identity); err != nil {
		m.log.Warn("presence mirror update failed", zap.String("identity", identity), zap.Error(err))
	}
	m.log.Info("user registered", zap.String("identity", identity), zap.String("conn_id", c.GetConnID()))
	return nil
}

func (m *ManagerService) handleStartUpload(c Client, env models.Envelope, group bool) error {
	var req models.StartUploadRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	meta := UploadMeta{Sender: req.Sender, Message: req.Message, FileName: req.FileName}
	if group {
		meta.GroupID = req.GroupID
	} else {
		meta.Recipient = req.Recipient
	}
	if meta.Sender == "" || (meta.Recipient == "" && meta.GroupID == "") {
		return fmt.Errorf("%s: sender and target: %w", env.Event, errMissingField)
	}
	return m.Uploads.Start(c.GetConnID(), meta)
}

func (m *ManagerService) handleSendMessage(ctx context.Context, env models.Envelope) error {
	var req models.SendMessageRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	if req.Sender == "" || req.Recipient == "" {
		return fmt.Errorf("sendMessage: sender and recipient: %w", errMissingField)
	}
	if req.Message == "" {
		return fmt.Errorf("sendMessage: %w", models.ErrEmptyMessage)
	}

	msg, err := m.Storage.SaveDirectMessage(ctx, req.Sender, req.Recipient, storage.Content{Text: req.Message})
	if err != nil {
		return fmt.Errorf("save direct message: %w", err)
	}
	m.EmitTo(models.NewOutbound(models.EventReceiveMessage, msg), req.Sender, req.Recipient)

	rec := &models.Notification{
		Author:      req.Sender,
		Recipient:   req.Recipient,
		Message:     m.text(localization.KeyNotifyChat, map[string]string{"sender": req.SenderName}),
		MessageType: models.NotificationChat,
	}
	return m.Notifier.Notify(ctx, rec, directPush(m.text(localization.KeyPushChat, nil), req.Sender, req.Recipient))
}

func (m *ManagerService) handleGetMessages(ctx context.Context, c Client, env models.Envelope) error {
	var req models.GetMessagesRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	msgs, err := m.Storage.ListMessagesBetween(ctx, req.User1, req.User2)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	m.send(c, models.NewOutbound(models.EventAllMessages, msgs))
	return nil
}

func (m *ManagerService) handleMarkAsRead(ctx context.Context, env models.Envelope) error {
	var req models.MarkAsReadRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	if _, err := m.Storage.MarkDirectRead(ctx, req.UserID, req.OtherUserID); err != nil {
		return fmt.Errorf("mark direct read: %w", err)
	}
	m.EmitTo(models.NewOutbound(models.EventMessagesRead, req), req.OtherUserID)
	return nil
}

func (m *ManagerService) handleMarkGroupAsRead(ctx context.Context, env models.Envelope) error {
	var req models.MarkGroupAsReadRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	if _, err := m.Storage.MarkGroupRead(ctx, req.UserID, req.GroupID); err != nil {
		return fmt.Errorf("mark group read: %w", err)
	}
	m.EmitTo(models.NewOutbound(models.EventGroupMessagesRead, req), req.GroupID)
	return nil
}

func (m *ManagerService) handleJoinGroup(c Client, env models.Envelope) error {
	var groupID, username string
	if err := env.Arg(0, &groupID); err != nil {
		return err
	}
	if err := env.Arg(1, &username); err != nil {
		return err
	}
	if groupID == "" {
		return fmt.Errorf("joinGroup: group id: %w", errMissingField)
	}
	m.channels.join(c, groupID)
	if m.Groups.Join(groupID, username) {
		m.log.Debug("group created", zap.String("group_id", groupID))
	}
	m.log.Info("joined group", zap.String("group_id", groupID), zap.String("username", username))
	m.emitExcept(models.NewOutbound(models.EventUserJoined, models.UserJoinedPayload{Username: username}), groupID, c)
	return nil
}

func (m *ManagerService) handleSendGroupMessage(ctx context.Context, env models.Envelope) error {
	var req models.SendGroupMessageRequest
	if err := env.Arg(0, &req); err != nil {
		return err
	}
	if req.Sender == "" || req.GroupID == "" {
		return fmt.Errorf("sendGroupMessage: sender and group: %w", errMissingField)
	}
	if req.Message == "" {
		return fmt.Errorf("sendGroupMessage: %w", models.ErrEmptyMessage)
	}
	msg, err := m.Storage.SaveGroupMessage(ctx, req.Sender, req.GroupID, storage.Content{Text: req.Message})
	if err != nil {
		return fmt.Errorf("save group message: %w", err)
	}
	return m.deliverGroupMessage(ctx, msg, "")
}

func (m *ManagerService) handleGetGroupMessages(ctx context.Context, c Client, env models.Envelope) error {
	var groupID string
	if err := env.Arg(0, &groupID); err != nil {
		return err
	}
	msgs, err := m.Storage.ListGroupMessages(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list group messages: %w", err)
	}
	m.send(c, models.NewOutbound(models.EventAllGroupMessages, msgs))
	return nil
}

// deliverGroupMessage broadcasts a stored group message with its sender record
// and notifies every persisted participant except the sender. fileName is set
// for file shares.
func (m *ManagerService) deliverGroupMessage(ctx context.Context, msg *models.Message, fileName string) error {
	author := m.lookupAdmin(ctx, msg.Sender)
	view := models.GroupMessageView{Message: *msg, Sender: []models.AdminSummary{}}
	if author != nil {
		view.Sender = []models.AdminSummary{author.Summary()}
	}
	m.EmitTo(models.NewOutbound(models.EventReceiveGroupMessage, view), msg.GroupID)

	room, err := m.Storage.GetChatRoom(ctx, msg.GroupID)
	if errors.Is(err, storage.ErrNotFound) {
		m.log.Warn("group record missing, skipping notifications", zap.String("group_id", msg.GroupID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load group %s: %w", msg.GroupID, err)
	}

	senderName := ""
	if author != nil {
		senderName = author.Name
	}
	kind, text := models.NotificationGroupMessage, m.text(localization.KeyNotifyGroupMessage, map[string]string{
		"group":  room.GroupName,
		"sender": nameOr(senderName, m.text(localization.KeySenderUnknown, nil)),
	})
	if fileName != "" {
		kind, text = models.NotificationGroupFile, m.text(localization.KeyNotifyGroupFile, map[string]string{
			"group":  room.GroupName,
			"sender": nameOr(senderName, m.text(localization.KeySenderSomeone, nil)),
		})
	}

	build := func(recipient string) models.Notification {
		return models.Notification{Author: msg.Sender, Recipient: recipient, Message: text, MessageType: kind}
	}
	push := func(n *models.Notification) models.OutboundEvent {
		return models.NewOutbound(models.EventNewNotification, models.GroupNotificationPush{
			Notification: *n,
			GroupName:    room.GroupName,
			SenderName:   senderName,
			FileName:     fileName,
		})
	}
	return m.Notifier.FanOut(ctx, msg.Sender, room.Participants, build, push)
}

// completeUpload persists the message for a finalized upload and delivers it
// like a text message of the same kind.
func (m *ManagerService) completeUpload(ctx context.Context, res UploadResult) {
	content := storage.Content{Text: res.Meta.Message, File: res.FileRef, FileName: res.Meta.FileName}
	meta := res.Meta

	if meta.GroupID != "" {
		msg, err := m.Storage.SaveGroupMessage(ctx, meta.Sender, meta.GroupID, content)
		if err != nil {
			m.log.Error("save group file message", zap.String("ref", res.FileRef), zap.Error(err))
			return
		}
		if err := m.deliverGroupMessage(ctx, msg, meta.FileName); err != nil {
			m.log.Error("group file delivery", zap.String("group_id", meta.GroupID), zap.Error(err))
		}
		return
	}

	msg, err := m.Storage.SaveDirectMessage(ctx, meta.Sender, meta.Recipient, content)
	if err != nil {
		m.log.Error("save file message", zap.String("ref", res.FileRef), zap.Error(err))
		return
	}
	m.EmitTo(models.NewOutbound(models.EventReceiveMessage, msg), meta.Sender, meta.Recipient)

	senderName := ""
	if author := m.lookupAdmin(ctx, meta.Sender); author != nil {
		senderName = author.Name
	}
	text := m.text(localization.KeyNotifyChatFile, map[string]string{
		"sender": nameOr(senderName, m.text(localization.KeySenderSomeone, nil)),
		"file":   meta.FileName,
	})
	rec := &models.Notification{
		Author:      meta.Sender,
		Recipient:   meta.Recipient,
		Message:     text,
		MessageType: models.NotificationChatFile,
	}
	if err := m.Notifier.Notify(ctx, rec, directPush(m.text(localization.KeyPushChatFile, nil), meta.Sender, meta.Recipient)); err != nil {
		m.log.Error("file notification", zap.String("recipient", meta.Recipient), zap.Error(err))
	}
}

// lookupAdmin returns nil when the sender has no directory record.
func (m *ManagerService) lookupAdmin(ctx context.Context, id string) *models.Admin {
	admin, err := m.Storage.GetAdminByID(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("sender lookup failed", zap.String("sender", id), zap.Error(err))
		}
		return nil
	}
	return admin
}

func directPush(text, sender, recipient string) PushFunc {
	return func(*models.Notification) models.OutboundEvent {
		return models.NewOutbound(models.EventSendNotification, models.DirectNotificationPush{
			Message:   text,
			Sender:    sender,
			Recipient: recipient,
		})
	}
}

// text renders a notification string in the hub's language.
func (m *ManagerService) text(key string, vars map[string]string) string {
	return m.Texts.Format(m.Lang, key, vars)
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
