package dashboard

import (
	"context"

	"github.com/angelmondragon/livelihood-backend/internal/repo"
	"gorm.io/gorm"
)

// countedTables are reported by the health endpoint, including soft-deleted rows.
var countedTables = []string{"users", "programs", "applications", "beneficiaries", "audit_logs"}

// Repository reads raw table sizes.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// RecordCounts returns the row count of every reported table.
func (r *Repository) RecordCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		var count int64
		if err := r.DB(ctx).Table(table).Count(&count).Error; err != nil {
			return nil, err
		}
		out[table] = count
	}
	return out, nil
}
