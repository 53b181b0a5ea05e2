package beneficiaries

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
)

// BeneficiaryDTO is the transport shape for an enrollment.
type BeneficiaryDTO struct {
	ID                    uuid.UUID               `json:"id"`
	UserID                uuid.UUID               `json:"user_id"`
	ProgramID             uuid.UUID               `json:"program_id"`
	ApplicationID         uuid.UUID               `json:"application_id"`
	EnrollmentDate        string                  `json:"enrollment_date"`
	CompletionDate        *string                 `json:"completion_date,omitempty"`
	Status                enums.BeneficiaryStatus `json:"status"`
	EmergencyContactName  *string                 `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string                 `json:"emergency_contact_phone,omitempty"`
	HouseholdSize         *int                    `json:"household_size,omitempty"`
	MonthlyIncome         *decimal.Decimal        `json:"monthly_income,omitempty"`
	ProgressNotes         *string                 `json:"progress_notes,omitempty"`
	IsActive              bool                    `json:"is_active"`
	CreatedBy             *uuid.UUID              `json:"created_by,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
}

// CreateInput converts an approved application into an enrollment.
// EnrollmentDate defaults to today.
type CreateInput struct {
	ApplicationID         uuid.UUID        `json:"application_id" validate:"required"`
	EnrollmentDate        *time.Time       `json:"enrollment_date,omitempty"`
	EmergencyContactName  *string          `json:"emergency_contact_name,omitempty" validate:"omitempty,max=200"`
	EmergencyContactPhone *string          `json:"emergency_contact_phone,omitempty" validate:"omitempty,max=32"`
	HouseholdSize         *int             `json:"household_size,omitempty" validate:"omitempty,gte=1,lte=50"`
	MonthlyIncome         *decimal.Decimal `json:"monthly_income,omitempty"`
	ProgressNotes         *string          `json:"progress_notes,omitempty"`
}

// UpdateInput carries optional contact and household changes.
type UpdateInput struct {
	EmergencyContactName  *string          `json:"emergency_contact_name,omitempty" validate:"omitempty,max=200"`
	EmergencyContactPhone *string          `json:"emergency_contact_phone,omitempty" validate:"omitempty,max=32"`
	HouseholdSize         *int             `json:"household_size,omitempty" validate:"omitempty,gte=1,lte=50"`
	MonthlyIncome         *decimal.Decimal `json:"monthly_income,omitempty"`
}

// NoteInput is the optional free text attached to a transition.
type NoteInput struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListFilter narrows the enrollment listing.
type ListFilter struct {
	Status    *enums.BeneficiaryStatus
	ProgramID *uuid.UUID
	UserID    *uuid.UUID
	pagination.Params
}

// Page is one page of enrollments.
type Page struct {
	Items      []BeneficiaryDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ProgramCount is the number of enrollments in one program.
type ProgramCount struct {
	ProgramID uuid.UUID `json:"program_id"`
	Title     string    `json:"program_title"`
	Total     int64     `json:"count"`
}

// Statistics summarises enrollments that are not soft-deleted.
type Statistics struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	RecentEnrollments int64            `json:"recent_enrollments"`
	RecentCompletions int64            `json:"recent_completions"`
	ByProgram         []ProgramCount   `json:"by_program"`
}

const dateLayout = "2006-01-02"

func FromModel(b *models.Beneficiary) *BeneficiaryDTO {
	if b == nil {
		return nil
	}
	dto := &BeneficiaryDTO{
		ID:                    b.ID,
		UserID:                b.UserID,
		ProgramID:             b.ProgramID,
		ApplicationID:         b.ApplicationID,
		EnrollmentDate:        b.EnrollmentDate.Format(dateLayout),
		Status:                b.Status,
		EmergencyContactName:  b.EmergencyContactName,
		EmergencyContactPhone: b.EmergencyContactPhone,
		HouseholdSize:         b.HouseholdSize,
		MonthlyIncome:         b.MonthlyIncome,
		ProgressNotes:         b.ProgressNotes,
		IsActive:              b.IsActive,
		CreatedBy:             b.CreatedBy,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
	if b.CompletionDate != nil {
		formatted := b.CompletionDate.Format(dateLayout)
		dto.CompletionDate = &formatted
	}
	return dto
}

func statusSnapshot(status enums.BeneficiaryStatus) map[string]any {
	return map[string]any{"status": string(status)}
}
