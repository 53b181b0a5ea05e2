package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to a user.
type Notification struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID              `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Type         enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title        string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message      string                 `gorm:"column:message;type:text;not null" json:"message"`
	ResourceType *string                `gorm:"column:resource_type" json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID             `gorm:"column:resource_id;type:uuid" json:"resource_id,omitempty"`
	ReadAt       *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
