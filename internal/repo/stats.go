package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-reqlarr/internal/domain"
)

// RequestsStats returns aggregate metadata for the ledger: the total number
// of rows and the greatest id. Since rows are never updated or deleted, the
// pair changes exactly when a row is appended, which makes it a cheap
// validator for conditional GETs.
//
// When the ledger is empty both values are 0.
func RequestsStats(ctx context.Context, db *gorm.DB) (count int64, maxID uint, err error) {
	q := db.WithContext(ctx).Model(&domain.RequestRecord{})

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var row struct {
		ID uint
	}
	if err = q.Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}
