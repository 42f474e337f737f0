// Package repo implements the data persistence layer for the request ledger,
// backed by GORM. This file provides repository functions for RequestRecord.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a transaction. The ledger is append-only: there is deliberately
// no update or delete function for RequestRecord in this package.
//
// Functions:
//
//   - InsertRequest(ctx, db, rec) -> *domain.RequestRecord, error
//     Inserts a new row; the database assigns the id.
//
//   - ListRequests(ctx, db) -> []domain.RequestRecord, error
//     Returns every row ordered by ascending id.
//
//   - ListRequestsPage(ctx, db, offset, limit) -> []domain.RequestRecord, error
//     Returns a window of rows ordered by ascending id.
//
//   - GetRequest(ctx, db, id) -> *domain.RequestRecord, error
//     Fetches a single row, or ErrNotFound.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-reqlarr/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrInvalidRecord is returned when a record is missing its kind or status.
var ErrInvalidRecord = errors.New("invalid request record")

// InsertRequest appends rec to the requests table. Any ID set by the caller is
// ignored so that the database always assigns it. CreatedAt defaults to now.
func InsertRequest(ctx context.Context, db *gorm.DB, rec domain.RequestRecord) (*domain.RequestRecord, error) {
	if !rec.Kind.Valid() || rec.Status == "" {
		return nil, ErrInvalidRecord
	}
	rec.ID = 0
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRequests returns all rows in insertion (ascending id) order. It returns
// an empty slice when the ledger is empty.
func ListRequests(ctx context.Context, db *gorm.DB) ([]domain.RequestRecord, error) {
	out := []domain.RequestRecord{}
	err := db.WithContext(ctx).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListRequestsPage returns a window of rows ordered by ascending id.
// The caller is responsible for computing offset and limit.
func ListRequestsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.RequestRecord, error) {
	out := []domain.RequestRecord{}
	err := db.WithContext(ctx).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetRequest fetches a single row by id.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.RequestRecord, error) {
	var rec domain.RequestRecord
	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
