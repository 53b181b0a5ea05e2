package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// Beneficiary tracks an approved applicant's participation in a program.
type Beneficiary struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	ProgramID             uuid.UUID               `gorm:"column:program_id;type:uuid;not null"`
	ApplicationID         uuid.UUID               `gorm:"column:application_id;type:uuid;not null"`
	EnrollmentDate        time.Time               `gorm:"column:enrollment_date;type:date;not null"`
	CompletionDate        *time.Time              `gorm:"column:completion_date;type:date"`
	Status                enums.BeneficiaryStatus `gorm:"column:status;type:text;not null"`
	EmergencyContactName  *string                 `gorm:"column:emergency_contact_name"`
	EmergencyContactPhone *string                 `gorm:"column:emergency_contact_phone"`
	HouseholdSize         *int                    `gorm:"column:household_size"`
	MonthlyIncome         *decimal.Decimal        `gorm:"column:monthly_income;type:numeric(12,2)"`
	ProgressNotes         *string                 `gorm:"column:progress_notes;type:text"`
	IsActive              bool                    `gorm:"column:is_active;not null"`
	CreatedBy             *uuid.UUID              `gorm:"column:created_by;type:uuid"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Beneficiary) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
