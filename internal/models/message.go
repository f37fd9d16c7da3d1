package models

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrAmbiguousTarget is returned when a message names both a recipient and a group, or neither.
	ErrAmbiguousTarget = errors.New("message must have exactly one of recipient or group")
	// ErrEmptyMessage is returned when a message carries neither text nor a file reference.
	ErrEmptyMessage = errors.New("message must have text or a file")
)

// Message represents one persisted chat utterance or file share.
// The embedded gorm.Model provides the ID and the creation timestamp used for ordering.
type Message struct {
	gorm.Model

	// Sender is the admin identity that wrote the message.
	Sender string `gorm:"type:text;not null;index:idx_direct_msg" json:"sender"`
	// Recipient is set for one-to-one messages and empty for group messages.
	Recipient string `gorm:"type:text;index:idx_direct_msg" json:"recipient,omitempty"`
	// GroupID is set for group messages and empty for one-to-one messages.
	GroupID string `gorm:"type:text;index" json:"groupId,omitempty"`
	// Message is the text body; it may be empty when a file is attached.
	Message string `gorm:"type:text" json:"message"`
	// File is the reference to the stored upload, relative to the uploads root.
	File string `gorm:"type:text" json:"file,omitempty"`
	// FileName is the original name of the uploaded file.
	FileName string `gorm:"type:text" json:"fileName,omitempty"`
	// Read flips to true once the recipient (or a group member) has seen the message.
	Read bool `gorm:"column:is_read;not null;default:false;index" json:"read"`
}

// IsGroup reports whether the message was addressed to a group.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// Validate checks the target and body invariants.
func (m *Message) Validate() error {
	if (m.Recipient == "") == (m.GroupID == "") {
		return ErrAmbiguousTarget
	}
	if m.Message == "" && m.File == "" {
		return ErrEmptyMessage
	}
	return nil
}

// GroupMessageView is a group message joined with its sender's display record.
// Sender is a list to keep the shape clients already consume.
type GroupMessageView struct {
	Message
	Sender []AdminSummary `json:"sender"`
}
