package applications

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
)

// ApplicationDTO is the transport shape for an application.
type ApplicationDTO struct {
	ID         uuid.UUID               `json:"id"`
	UserID     uuid.UUID               `json:"user_id"`
	ProgramID  uuid.UUID               `json:"program_id"`
	Status     enums.ApplicationStatus `json:"status"`
	Notes      *string                 `json:"notes,omitempty"`
	AppliedAt  time.Time               `json:"applied_at"`
	ReviewedBy *uuid.UUID              `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time              `json:"reviewed_at,omitempty"`
	IsActive   bool                    `json:"is_active"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// CreateInput is the applicant's request to join a program.
type CreateInput struct {
	ProgramID uuid.UUID `json:"program_id" validate:"required"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateInput carries optional changes. Owners may only touch Notes; Status
// and ReviewedBy are reserved for reviewers.
type UpdateInput struct {
	Notes      *string                  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Status     *enums.ApplicationStatus `json:"status,omitempty"`
	ReviewedBy *uuid.UUID               `json:"reviewed_by,omitempty"`
}

// ReviewInput carries the optional reviewer note for approve/reject.
type ReviewInput struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListFilter narrows the staff application listing.
type ListFilter struct {
	Status    *enums.ApplicationStatus
	ProgramID *uuid.UUID
	UserID    *uuid.UUID
	pagination.Params
}

// Page is one page of applications.
type Page struct {
	Items      []ApplicationDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func FromModel(a *models.Application) *ApplicationDTO {
	if a == nil {
		return nil
	}
	return &ApplicationDTO{
		ID:         a.ID,
		UserID:     a.UserID,
		ProgramID:  a.ProgramID,
		Status:     a.Status,
		Notes:      a.Notes,
		AppliedAt:  a.AppliedAt,
		ReviewedBy: a.ReviewedBy,
		ReviewedAt: a.ReviewedAt,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func statusSnapshot(status enums.ApplicationStatus) map[string]any {
	return map[string]any{"status": string(status)}
}
