package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// Application is a user's request to join a program.
type Application struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	ProgramID  uuid.UUID               `gorm:"column:program_id;type:uuid;not null"`
	Status     enums.ApplicationStatus `gorm:"column:status;type:text;not null"`
	Notes      *string                 `gorm:"column:notes;type:text"`
	AppliedAt  time.Time               `gorm:"column:applied_at;not null"`
	ReviewedBy *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt *time.Time              `gorm:"column:reviewed_at"`
	IsActive   bool                    `gorm:"column:is_active;not null"`
	IsDeleted  bool                    `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Application) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
