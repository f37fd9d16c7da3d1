package models

import (
	"encoding/json"
	"fmt"
)

// Inbound socket events.
const (
	EventRegister         = "register"
	EventStartUpload      = "start upload"
	EventStartGroupUpload = "startgroupupload"
	EventFileChunk        = "file chunk"
	EventFileChunkEnd     = "file chunk end"
	EventSendMessage      = "sendMessage"
	EventGetMessages      = "getMessages"
	EventMarkAsRead       = "markAsRead"
	EventMarkGroupAsRead  = "markGroupAsRead"
	EventJoinGroup        = "joinGroup"
	EventSendGroupMessage = "sendGroupMessage"
	EventGetGroupMessages = "getgroupMessages"
	EventDisconnect       = "disconnect"
)

// Outbound socket events.
const (
	EventReceiveMessage      = "receiveMessage"
	EventReceiveGroupMessage = "receiveGroupMessage"
	EventSendNotification    = "sendNotification"
	EventNewNotification     = "newNotification"
	EventAllMessages         = "allMessages"
	EventAllGroupMessages    = "allgroupMessages"
	EventMessagesRead        = "messagesRead"
	EventGroupMessagesRead   = "groupMessagesRead"
	EventUserJoined          = "user-joined"
)

// Envelope is the JSON frame exchanged over the socket. Args are positional,
// so an event like joinGroup(groupId, username) travels as two args.
type Envelope struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args,omitempty"`
}

// Arg decodes the i-th positional argument into out.
func (e Envelope) Arg(i int, out any) error {
	if i >= len(e.Args) {
		return fmt.Errorf("event %q: missing argument %d", e.Event, i)
	}
	if err := json.Unmarshal(e.Args[i], out); err != nil {
		return fmt.Errorf("event %q: argument %d: %w", e.Event, i, err)
	}
	return nil
}

// OutboundEvent is queued on a client's send channel and encoded by its write pump.
type OutboundEvent struct {
	Event string `json:"event"`
	Args  []any  `json:"args"`
}

// NewOutbound builds an outbound event with a single payload argument.
func NewOutbound(event string, payload any) OutboundEvent {
	return OutboundEvent{Event: event, Args: []any{payload}}
}

// StartUploadRequest opens an upload session. Exactly one of Recipient or GroupID is used.
type StartUploadRequest struct {
	FileName  string `json:"fileName"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	Message   string `json:"message"`
}

type SendMessageRequest struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Message    string `json:"message"`
	SenderName string `json:"sendername"`
}

type SendGroupMessageRequest struct {
	Sender  string `json:"sender"`
	GroupID string `json:"groupId"`
	Message string `json:"message"`
}

type GetMessagesRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// MarkAsReadRequest is shared by the socket event and the REST endpoint.
type MarkAsReadRequest struct {
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
}

type MarkGroupAsReadRequest struct {
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

// DirectNotificationPush is the lightweight sendNotification payload.
type DirectNotificationPush struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
}

// GroupNotificationPush is the newNotification payload sent to each group participant.
type GroupNotificationPush struct {
	Notification Notification `json:"notification"`
	GroupName    string       `json:"groupName"`
	SenderName   string       `json:"senderName,omitempty"`
	FileName     string       `json:"fileName,omitempty"`
}

type UserJoinedPayload struct {
	Username string `json:"username"`
}
