package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// Program is a livelihood offering citizens can apply to.
type Program struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title               string                `gorm:"column:title;not null"`
	Description         string                `gorm:"column:description;type:text;not null"`
	Category            enums.ProgramCategory `gorm:"column:category;type:text;not null"`
	ProgramCode         string                `gorm:"column:program_code;not null;uniqueIndex"`
	MaxParticipants     *int                  `gorm:"column:max_participants"`
	CurrentParticipants int                   `gorm:"column:current_participants;not null"`
	StartDate           *time.Time            `gorm:"column:start_date;type:date"`
	EndDate             *time.Time            `gorm:"column:end_date;type:date"`
	ApplicationDeadline *time.Time            `gorm:"column:application_deadline"`
	Location            *string               `gorm:"column:location"`
	Requirements        *string               `gorm:"column:requirements;type:text"`
	Budget              *decimal.Decimal      `gorm:"column:budget;type:numeric(14,2)"`
	Status              enums.ProgramStatus   `gorm:"column:status;type:text;not null"`
	IsActive            bool                  `gorm:"column:is_active;not null"`
	IsFeatured          bool                  `gorm:"column:is_featured;not null"`
	IsDeleted           bool                  `gorm:"column:is_deleted;not null"`
	CreatedBy           *uuid.UUID            `gorm:"column:created_by;type:uuid"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Program) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
