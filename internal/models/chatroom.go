package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ChatRoom is the persisted group record. Its Participants list decides
// who is notified about group events.
type ChatRoom struct {
	// ID is the group identity used as the delivery channel name.
	ID string `gorm:"primaryKey" json:"_id"`
	// GroupName is shown in notifications.
	GroupName string `gorm:"type:text;not null" json:"groupName"`
	Image     string `gorm:"type:text" json:"image,omitempty"`
	// Organization scopes the group to one tenant.
	Organization string `gorm:"type:text;index" json:"organization"`
	// Creator is the admin who created the group.
	Creator string `gorm:"type:text" json:"creator"`
	// Participants are admin IDs.
	Participants pq.StringArray `gorm:"type:text[]" json:"participants"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the ID has not been set.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether id is in the participant list.
func (r *ChatRoom) HasParticipant(id string) bool {
	return slices.Contains(r.Participants, id)
}

// OtherParticipants returns every participant except exclude, without duplicates.
func (r *ChatRoom) OtherParticipants(exclude string) []string {
	out := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p == exclude || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
