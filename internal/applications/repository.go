package applications

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

// Repository persists applications.
type Repository struct {
	repo.Base
}

// NewRepository binds an applications repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, app *models.Application) error {
	return r.DB(ctx).Create(app).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.DB(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByIDForUpdate loads and row-locks an application.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.ForUpdate(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// FindProgramForUpdate locks the program an application targets. Deleted
// programs are not returned.
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

// HasActive reports whether the user already holds an active application for the program.
func (r *Repository) HasActive(ctx context.Context, userID, programID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Application{}).
		Where("user_id = ? AND program_id = ? AND is_active = ?", userID, programID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		Updates(fields).Error
}

type listQuery struct {
	status    *enums.ApplicationStatus
	programID *uuid.UUID
	userID    *uuid.UUID
	cursor    *pagination.Cursor
	limit     int
}

// List returns non-deleted applications newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Application, error) {
	query := r.DB(ctx).Model(&models.Application{}).Where("is_deleted = ?", false)

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.programID != nil {
		query = query.Where("program_id = ?", *opts.programID)
	}
	if opts.userID != nil {
		query = query.Where("user_id = ?", *opts.userID)
	}

	var rows []models.Application
	if err := repo.NewestFirst(query, opts.cursor, opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Pending returns active pending applications oldest first.
func (r *Repository) Pending(ctx context.Context, limit int) ([]models.Application, error) {
	var rows []models.Application
	err := r.DB(ctx).
		Where("status = ? AND is_active = ? AND is_deleted = ?", enums.ApplicationStatusPending, true, false).
		Order("applied_at ASC").Order("id ASC").
		Limit(limit).Find(&rows).Error
	return rows, err
}

// StatusCount is one grouped row of a status breakdown.
type StatusCount struct {
	Status enums.ApplicationStatus
	Total  int64
}

// CountByStatus groups applications that are not soft-deleted by status.
func (r *Repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.DB(ctx).Model(&models.Application{}).
		Select("status, COUNT(*) AS total").
		Where("is_deleted = ?", false).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// AppliedSince returns the applied timestamps of non-deleted applications at or after since.
func (r *Repository) AppliedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.DB(ctx).Model(&models.Application{}).
		Where("applied_at >= ? AND is_deleted = ?", since, false).
		Order("applied_at ASC").
		Pluck("applied_at", &stamps).Error
	return stamps, err
}
