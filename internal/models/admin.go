package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Admin is a CRM user. Chat identities are admin IDs.
type Admin struct {
	ID           string `gorm:"primaryKey" json:"_id"`
	Name         string `gorm:"type:text;not null" json:"name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	Organization string `gorm:"type:text;index" json:"organization"`
	Role         string `gorm:"type:text" json:"role"`
	// AllowedRoutes lists the CRM sections this admin may open.
	AllowedRoutes pq.StringArray `gorm:"type:text[]" json:"allowedroutes"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the ID has not been set.
func (a *Admin) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}

// Summary returns the display fields shared with chat clients.
func (a *Admin) Summary() AdminSummary {
	return AdminSummary{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

// AdminSummary is the public part of an Admin.
type AdminSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
