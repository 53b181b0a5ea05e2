package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/livelihood-backend/pkg/db/types"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// AuditLog is append-only; nothing in the codebase updates or deletes rows.
type AuditLog struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       *uuid.UUID          `gorm:"column:user_id;type:uuid" json:"user_id,omitempty"`
	Action       enums.AuditAction   `gorm:"column:action;not null" json:"action"`
	ResourceType enums.AuditResource `gorm:"column:resource_type;not null" json:"resource_type"`
	ResourceID   *uuid.UUID          `gorm:"column:resource_id;type:uuid" json:"resource_id,omitempty"`
	OldValues    dbtypes.JSONMap     `gorm:"column:old_values;type:jsonb" json:"old_values,omitempty"`
	NewValues    dbtypes.JSONMap     `gorm:"column:new_values;type:jsonb" json:"new_values,omitempty"`
	IPAddress    *string             `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent    *string             `gorm:"column:user_agent" json:"user_agent,omitempty"`
	Description  *string             `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
