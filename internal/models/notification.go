package models

import "time"

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationChat         NotificationType = "chat"
	NotificationChatFile     NotificationType = "chat_file"
	NotificationGroupMessage NotificationType = "group_message"
	NotificationGroupFile    NotificationType = "group_file"
)

// Notification is a persisted record telling Recipient that something happened.
type Notification struct {
	ID uint `gorm:"primaryKey" json:"_id"`
	// Author is the admin whose action produced the notification.
	Author string `gorm:"type:text;not null" json:"author"`
	// Recipient is the admin the notification is addressed to.
	Recipient string `gorm:"type:text;not null;index" json:"recipient"`
	// Message is the human-readable text shown to the recipient.
	Message string `gorm:"type:text;not null" json:"message"`
	// MessageType is one of the NotificationType values.
	MessageType NotificationType `gorm:"type:text;not null" json:"messageType"`
	// Seen is flipped by the recipient through the REST layer.
	Seen      bool      `gorm:"not null;default:false" json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
