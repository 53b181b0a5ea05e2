package beneficiaries

import (
	"context"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/repo"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists enrollments.
type Repository struct {
	repo.Base
}

// NewRepository binds a beneficiaries repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, b *models.Beneficiary) error {
	return r.DB(ctx).Create(b).Error
}

// FindByID loads an enrollment that has not been soft-deleted.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error) {
	var b models.Beneficiary
	if err := r.DB(ctx).Where("is_active = ?", true).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByIDForUpdate loads and row-locks an enrollment that has not been soft-deleted.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error) {
	var b models.Beneficiary
	if err := r.ForUpdate(ctx).Where("is_active = ?", true).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// FindApplicationForUpdate locks the application being converted.
func (r *Repository) FindApplicationForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.ForUpdate(ctx).Where("is_active = ? AND is_deleted = ?", true, false).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// FindProgramForUpdate locks a program that has not been soft-deleted.
func (r *Repository) FindProgramForUpdate(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	if err := r.ForUpdate(ctx).Where("is_deleted = ?", false).First(&program, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// ProgramTitle returns the title of a program, deleted or not.
func (r *Repository) ProgramTitle(ctx context.Context, id uuid.UUID) (string, error) {
	var program models.Program
	if err := r.DB(ctx).Select("id", "title").First(&program, "id = ?", id).Error; err != nil {
		return "", err
	}
	return program.Title, nil
}

// HasActiveForApplication reports whether the application already has a live enrollment row.
func (r *Repository) HasActiveForApplication(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Beneficiary{}).
		Where("application_id = ? AND is_active = ?", applicationID, true).
		Count(&count).Error
	return count > 0, err
}

// IncrementParticipants bumps the program's participant counter.
func (r *Repository) IncrementParticipants(ctx context.Context, programID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Program{}).
		Where("id = ?", programID).
		UpdateColumn("current_participants", gorm.Expr("current_participants + ?", 1)).Error
}

func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).
		Model(&models.Beneficiary{}).
		Where("id = ?", id).
		Updates(fields).Error
}

type listQuery struct {
	status    *enums.BeneficiaryStatus
	programID *uuid.UUID
	userID    *uuid.UUID
	cursor    *pagination.Cursor
	limit     int
}

// List returns live enrollments newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Beneficiary, error) {
	query := r.DB(ctx).Model(&models.Beneficiary{}).Where("is_active = ?", true)

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.programID != nil {
		query = query.Where("program_id = ?", *opts.programID)
	}
	if opts.userID != nil {
		query = query.Where("user_id = ?", *opts.userID)
	}

	var rows []models.Beneficiary
	if err := repo.NewestFirst(query, opts.cursor, opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// StatusCount is one grouped row of a status breakdown.
type StatusCount struct {
	Status enums.BeneficiaryStatus
	Total  int64
}

// CountByStatus groups live enrollments by status.
func (r *Repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.DB(ctx).Model(&models.Beneficiary{}).
		Select("status, COUNT(*) AS total").
		Where("is_active = ?", true).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// CountEnrolledSince counts live enrollments dated on or after since.
func (r *Repository) CountEnrolledSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Beneficiary{}).
		Where("is_active = ? AND enrollment_date >= ?", true, since).
		Count(&count).Error
	return count, err
}

// CountCompletedSince counts live completed enrollments finished on or after since.
func (r *Repository) CountCompletedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Beneficiary{}).
		Where("is_active = ? AND status = ? AND completion_date >= ?", true, enums.BeneficiaryStatusCompleted, since).
		Count(&count).Error
	return count, err
}

type programCountRow struct {
	ProgramID uuid.UUID
	Title     string
	Total     int64
}

// CountByProgram groups live enrollments per program, largest first.
func (r *Repository) CountByProgram(ctx context.Context) ([]programCountRow, error) {
	var rows []programCountRow
	err := r.DB(ctx).Table("beneficiaries").
		Select("beneficiaries.program_id AS program_id, programs.title AS title, COUNT(*) AS total").
		Joins("JOIN programs ON programs.id = beneficiaries.program_id").
		Where("beneficiaries.is_active = ?", true).
		Group("beneficiaries.program_id, programs.title").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}
