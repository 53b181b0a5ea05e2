package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/repo"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists in-app notifications. Every read and write is scoped
// to the owning user.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, q listQuery) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listQuery struct {
	userID     uuid.UUID
	unreadOnly bool
	cursor     *pagination.Cursor
	limit      int
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// List returns the user's notifications newest first.
func (r *repository) List(ctx context.Context, q listQuery) ([]models.Notification, error) {
	query := r.inbox(ctx, q.userID)
	if q.unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	err := repo.NewestFirst(query, q.cursor, q.limit).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at once; an already-read row keeps its first
// timestamp. The bool reports whether the row exists for this user.
func (r *repository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	result := r.inbox(ctx, userID).
		Where("id = ?", id).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	result := r.inbox(ctx, userID).
		Where("read_at IS NULL").
		UpdateColumn("read_at", at)
	return result.RowsAffected, result.Error
}

func (r *repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.inbox(ctx, userID).Where("read_at IS NULL").Count(&count).Error
	return count, err
}

func (r *repository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}
