package audit

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

// Repository appends and reads audit rows. It deliberately has no update or delete.
type Repository struct {
	repo.Base
}

// NewRepository constructs an audit repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Append inserts one audit row.
func (r *Repository) Append(ctx context.Context, entry *models.AuditLog) error {
	return r.DB(ctx).Create(entry).Error
}

type listQuery struct {
	userID       *uuid.UUID
	action       *enums.AuditAction
	resourceType *enums.AuditResource
	resourceID   *uuid.UUID
	since        *time.Time
	until        *time.Time
	cursor       *pagination.Cursor
	limit        int
}

// List returns rows newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.AuditLog, error) {
	query := r.DB(ctx).Model(&models.AuditLog{})

	if opts.userID != nil {
		query = query.Where("user_id = ?", *opts.userID)
	}
	if opts.action != nil {
		query = query.Where("action = ?", *opts.action)
	}
	if opts.resourceType != nil {
		query = query.Where("resource_type = ?", *opts.resourceType)
	}
	if opts.resourceID != nil {
		query = query.Where("resource_id = ?", *opts.resourceID)
	}
	if opts.since != nil {
		query = query.Where("created_at >= ?", *opts.since)
	}
	if opts.until != nil {
		query = query.Where("created_at < ?", *opts.until)
	}

	query = repo.NewestFirst(query, opts.cursor, opts.limit)

	var rows []models.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
