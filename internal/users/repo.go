package users

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/repo"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the stored (normalized) email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByFederatedSubject retrieves the user linked to an external identity.
func (r *Repository) FindByFederatedSubject(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("federated_subject = ?", subject).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a non-deleted user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("is_deleted = ?", false).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate loads and row-locks a non-deleted user.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.ForUpdate(ctx).Where("is_deleted = ?", false).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateFields writes the provided columns for one user.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// EmailTaken reports whether another user already owns the email.
func (r *Repository) EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exclude).
		Count(&count).Error
	return count > 0, err
}

// CountBlockingDependents counts live applications and enrollments that keep the user from being deleted.
func (r *Repository) CountBlockingDependents(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var applications int64
	if err := r.DB(ctx).Model(&models.Application{}).
		Where("user_id = ? AND is_active = ? AND status IN ?", userID, true, enums.BlockingApplicationStatuses()).
		Count(&applications).Error; err != nil {
		return 0, 0, err
	}
	var beneficiaries int64
	if err := r.DB(ctx).Model(&models.Beneficiary{}).
		Where("user_id = ? AND is_active = ? AND status IN ?", userID, true, enums.LiveBeneficiaryStatuses()).
		Count(&beneficiaries).Error; err != nil {
		return 0, 0, err
	}
	return applications, beneficiaries, nil
}

type listQuery struct {
	search string
	role   *enums.Role
	active *bool
	cursor *pagination.Cursor
	limit  int
}

// List returns non-deleted users newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.User, error) {
	query := r.DB(ctx).Model(&models.User{}).Where("is_deleted = ?", false)

	if term := strings.ToLower(strings.TrimSpace(opts.search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("(LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)", like, like, like)
	}
	if opts.role != nil {
		query = query.Where("role = ?", *opts.role)
	}
	if opts.active != nil {
		query = query.Where("is_active = ?", *opts.active)
	}

	var rows []models.User
	if err := repo.NewestFirst(query, opts.cursor, opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Recent returns the most recently created users.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.User, error) {
	var rows []models.User
	err := r.DB(ctx).Where("is_deleted = ?", false).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&rows).Error
	return rows, err
}

// RoleCount is one row of CountByRole.
type RoleCount struct {
	Role  enums.Role
	Total int64
}

// CountByRole groups non-deleted users by role.
func (r *Repository) CountByRole(ctx context.Context) ([]RoleCount, error) {
	var rows []RoleCount
	err := r.DB(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS total").
		Where("is_deleted = ?", false).
		Group("role").
		Scan(&rows).Error
	return rows, err
}

// CountActive counts non-deleted users by active flag.
func (r *Repository) CountActive(ctx context.Context) (total int64, active int64, err error) {
	if err = r.DB(ctx).Model(&models.User{}).Where("is_deleted = ?", false).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.DB(ctx).Model(&models.User{}).Where("is_deleted = ? AND is_active = ?", false, true).Count(&active).Error
	return total, active, err
}
