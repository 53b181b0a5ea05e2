package programs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
)

// ProgramDTO is the transport shape for a program.
type ProgramDTO struct {
	ID                    uuid.UUID             `json:"id"`
	Title                 string                `json:"title"`
	Description           string                `json:"description"`
	Category              enums.ProgramCategory `json:"category"`
	ProgramCode           string                `json:"program_code"`
	MaxParticipants       *int                  `json:"max_participants,omitempty"`
	CurrentParticipants   int                   `json:"current_participants"`
	StartDate             *time.Time            `json:"start_date,omitempty"`
	EndDate               *time.Time            `json:"end_date,omitempty"`
	ApplicationDeadline   *time.Time            `json:"application_deadline,omitempty"`
	Location              *string               `json:"location,omitempty"`
	Requirements          *string               `json:"requirements,omitempty"`
	Budget                *decimal.Decimal      `json:"budget,omitempty"`
	Status                enums.ProgramStatus   `json:"status"`
	IsActive              bool                  `json:"is_active"`
	IsFeatured            bool                  `json:"is_featured"`
	AcceptingApplications bool                  `json:"accepting_applications"`
	CreatedBy             *uuid.UUID            `json:"created_by,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// CreateInput carries the fields for a new program. An empty ProgramCode is
// generated from the title.
type CreateInput struct {
	Title               string                `json:"title" validate:"required,min=5,max=200"`
	Description         string                `json:"description" validate:"required,min=10"`
	Category            enums.ProgramCategory `json:"category" validate:"required"`
	ProgramCode         string                `json:"program_code,omitempty" validate:"omitempty,max=50"`
	MaxParticipants     *int                  `json:"max_participants,omitempty" validate:"omitempty,gt=0"`
	StartDate           *time.Time            `json:"start_date,omitempty"`
	EndDate             *time.Time            `json:"end_date,omitempty"`
	ApplicationDeadline *time.Time            `json:"application_deadline,omitempty"`
	Location            *string               `json:"location,omitempty" validate:"omitempty,max=255"`
	Requirements        *string               `json:"requirements,omitempty"`
	Budget              *decimal.Decimal      `json:"budget,omitempty"`
}

// UpdateInput is a partial update; nil means "not provided".
type UpdateInput struct {
	Title               *string                `json:"title,omitempty" validate:"omitempty,min=5,max=200"`
	Description         *string                `json:"description,omitempty" validate:"omitempty,min=10"`
	Category            *enums.ProgramCategory `json:"category,omitempty"`
	ProgramCode         *string                `json:"program_code,omitempty" validate:"omitempty,min=1,max=50"`
	MaxParticipants     *int                   `json:"max_participants,omitempty" validate:"omitempty,gt=0"`
	StartDate           *time.Time             `json:"start_date,omitempty"`
	EndDate             *time.Time             `json:"end_date,omitempty"`
	ApplicationDeadline *time.Time             `json:"application_deadline,omitempty"`
	Location            *string                `json:"location,omitempty" validate:"omitempty,max=255"`
	Requirements        *string                `json:"requirements,omitempty"`
	Budget              *decimal.Decimal       `json:"budget,omitempty"`
	Status              *enums.ProgramStatus   `json:"status,omitempty"`
}

// ListFilter narrows program listings. Active is forced to true for callers
// that cannot manage programs.
type ListFilter struct {
	Search   string
	Category *enums.ProgramCategory
	Status   *enums.ProgramStatus
	Featured *bool
	Active   *bool
	pagination.Params
}

// Page is one page of programs.
type Page struct {
	Items      []ProgramDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Statistics summarises participation in one program.
type Statistics struct {
	ProgramID             uuid.UUID        `json:"program_id"`
	ProgramCode           string           `json:"program_code"`
	Applications          map[string]int64 `json:"applications"`
	TotalApplications     int64            `json:"total_applications"`
	Beneficiaries         map[string]int64 `json:"beneficiaries"`
	TotalBeneficiaries    int64            `json:"total_beneficiaries"`
	MaxParticipants       *int             `json:"max_participants,omitempty"`
	CurrentParticipants   int              `json:"current_participants"`
	CapacityUtilization   *float64         `json:"capacity_utilization,omitempty"`
	AcceptingApplications bool             `json:"accepting_applications"`
}

// FromModel converts a program row into its DTO, evaluating acceptance at now.
func FromModel(p *models.Program, now time.Time) *ProgramDTO {
	if p == nil {
		return nil
	}
	return &ProgramDTO{
		ID:                    p.ID,
		Title:                 p.Title,
		Description:           p.Description,
		Category:              p.Category,
		ProgramCode:           p.ProgramCode,
		MaxParticipants:       p.MaxParticipants,
		CurrentParticipants:   p.CurrentParticipants,
		StartDate:             p.StartDate,
		EndDate:               p.EndDate,
		ApplicationDeadline:   p.ApplicationDeadline,
		Location:              p.Location,
		Requirements:          p.Requirements,
		Budget:                p.Budget,
		Status:                p.Status,
		IsActive:              p.IsActive,
		IsFeatured:            p.IsFeatured,
		AcceptingApplications: AcceptingApplications(p, now),
		CreatedBy:             p.CreatedBy,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

// AcceptingApplications reports whether citizens may currently apply.
func AcceptingApplications(p *models.Program, now time.Time) bool {
	if p == nil || !p.IsActive || p.IsDeleted || p.Status != enums.ProgramStatusActive {
		return false
	}
	if p.ApplicationDeadline != nil && now.After(*p.ApplicationDeadline) {
		return false
	}
	if p.MaxParticipants != nil && p.CurrentParticipants >= *p.MaxParticipants {
		return false
	}
	return true
}

func stateSnapshot(p *models.Program) map[string]any {
	return map[string]any{
		"status":      string(p.Status),
		"is_active":   p.IsActive,
		"is_featured": p.IsFeatured,
	}
}
