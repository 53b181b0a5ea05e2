package programs

import (
	"context"
	"strings"

	"github.com/angelmondragon/livelihood-backend/internal/repo"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists programs.
type Repository struct {
	repo.Base
}

// NewRepository binds a programs repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, program *models.Program) error {
	return r.DB(ctx).Create(program).Error
}

// FindByID loads a non-deleted program.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	if err := r.DB(ctx).Where("is_deleted = ?", false).First(&program, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

// FindByIDForUpdate loads and row-locks a non-deleted program.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	if err := r.ForUpdate(ctx).Where("is_deleted = ?", false).First(&program, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).
		Model(&models.Program{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// IncrementParticipants bumps current_participants by delta.
func (r *Repository) IncrementParticipants(ctx context.Context, id uuid.UUID, delta int) error {
	return r.DB(ctx).
		Model(&models.Program{}).
		Where("id = ?", id).
		UpdateColumn("current_participants", gorm.Expr("current_participants + ?", delta)).Error
}

// CodeExists reports whether any program other than exclude uses code.
// Soft-deleted programs keep their code.
func (r *Repository) CodeExists(ctx context.Context, code string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Program{}).
		Where("program_code = ? AND id <> ?", code, exclude).
		Count(&count).Error
	return count > 0, err
}

// CountByCodePrefix counts programs whose code starts with "<prefix>-".
func (r *Repository) CountByCodePrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Program{}).
		Where("program_code LIKE ?", prefix+"-%").
		Count(&count).Error
	return count, err
}

// CountBlockingDependents counts pending/approved applications and live
// enrollments that keep the program from being deleted.
func (r *Repository) CountBlockingDependents(ctx context.Context, programID uuid.UUID) (int64, int64, error) {
	var applications int64
	if err := r.DB(ctx).Model(&models.Application{}).
		Where("program_id = ? AND is_active = ? AND status IN ?", programID, true, enums.BlockingApplicationStatuses()).
		Count(&applications).Error; err != nil {
		return 0, 0, err
	}
	var beneficiaries int64
	if err := r.DB(ctx).Model(&models.Beneficiary{}).
		Where("program_id = ? AND is_active = ? AND status IN ?", programID, true, enums.LiveBeneficiaryStatuses()).
		Count(&beneficiaries).Error; err != nil {
		return 0, 0, err
	}
	return applications, beneficiaries, nil
}

type listQuery struct {
	search   string
	category *enums.ProgramCategory
	status   *enums.ProgramStatus
	featured *bool
	active   *bool
	cursor   *pagination.Cursor
	limit    int
}

// List returns non-deleted programs newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Program, error) {
	query := r.DB(ctx).Model(&models.Program{}).Where("is_deleted = ?", false)

	if term := strings.ToLower(strings.TrimSpace(opts.search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(program_code) LIKE ?)", like, like, like)
	}
	if opts.category != nil {
		query = query.Where("category = ?", *opts.category)
	}
	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.featured != nil {
		query = query.Where("is_featured = ?", *opts.featured)
	}
	if opts.active != nil {
		query = query.Where("is_active = ?", *opts.active)
	}

	var rows []models.Program
	if err := repo.NewestFirst(query, opts.cursor, opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListInactive returns non-deleted programs that are switched off, most recently changed first.
func (r *Repository) ListInactive(ctx context.Context, limit int) ([]models.Program, error) {
	var rows []models.Program
	err := r.DB(ctx).
		Where("is_deleted = ? AND is_active = ?", false, false).
		Order("updated_at DESC").Order("id DESC").
		Limit(limit).Find(&rows).Error
	return rows, err
}

// StatusCount is one grouped row of a status breakdown.
type StatusCount struct {
	Status string
	Total  int64
}

// ApplicationCountsByStatus groups a program's non-deleted applications by status.
func (r *Repository) ApplicationCountsByStatus(ctx context.Context, programID uuid.UUID) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.DB(ctx).Model(&models.Application{}).
		Select("status, COUNT(*) AS total").
		Where("program_id = ? AND is_deleted = ?", programID, false).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// BeneficiaryCountsByStatus groups a program's non-deleted enrollments by status.
func (r *Repository) BeneficiaryCountsByStatus(ctx context.Context, programID uuid.UUID) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.DB(ctx).Model(&models.Beneficiary{}).
		Select("status, COUNT(*) AS total").
		Where("program_id = ? AND is_active = ?", programID, true).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// Totals is the dashboard program summary.
type Totals struct {
	Total    int64
	Active   int64
	Featured int64
}

// Counts summarises non-deleted programs.
func (r *Repository) Counts(ctx context.Context) (Totals, error) {
	var totals Totals
	base := func() *gorm.DB {
		return r.DB(ctx).Model(&models.Program{}).Where("is_deleted = ?", false)
	}
	if err := base().Count(&totals.Total).Error; err != nil {
		return Totals{}, err
	}
	if err := base().Where("is_active = ? AND status = ?", true, enums.ProgramStatusActive).Count(&totals.Active).Error; err != nil {
		return Totals{}, err
	}
	if err := base().Where("is_featured = ?", true).Count(&totals.Featured).Error; err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// Titles maps program ids to titles, including soft-deleted programs.
func (r *Repository) Titles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Program
	if err := r.DB(ctx).Select("id", "title").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Title
	}
	return out, nil
}
