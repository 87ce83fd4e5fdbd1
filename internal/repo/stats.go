package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/domain"
)

// TodosStats feeds the list ETag: how many todos the owner has and when the
// most recent one changed. maxUpdatedAt is nil for an owner with no todos.
func TodosStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Todo{}).Where("owner_id = ?", ownerID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// ORDER BY instead of MAX(): SQLite returns MAX over datetimes as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Todo{}).
		Where("owner_id = ?", ownerID).
		Select("updated_at").Order("updated_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
