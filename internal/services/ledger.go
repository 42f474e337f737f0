package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ledger is the append-only request log. Appends are serialized by a writer
// mutex so ids are handed out in call order; reads run concurrently and may
// not observe an append that is still in flight.
type Ledger struct {
	DB *gorm.DB

	mu sync.Mutex
}

// NewLedger returns a Ledger backed by db. The schema must already exist
// (see repo.AutoMigrate).
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// Append stores rec and returns the id assigned to it. The row is durable
// when Append returns. Failures are wrapped in ErrPersistence.
func (l *Ledger) Append(ctx context.Context, rec domain.RequestRecord) (uint, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "Append", recordAttrs(rec))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	out, err := repo.InsertRequest(ctx, l.DB, rec)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return out.ID, nil
}

// AppendOnce stores rec unless (scope, key) was already used within its TTL,
// in which case it returns the id recorded the first time and replayed=true.
// The row and its idempotency entry are written in one transaction. A blank
// key degrades to a plain Append.
func (l *Ledger) AppendOnce(ctx context.Context, rec domain.RequestRecord, scope, key string, ttl time.Duration) (id uint, replayed bool, err error) {
	if strings.TrimSpace(key) == "" {
		id, err = l.Append(ctx, rec)
		return id, false, err
	}

	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "AppendOnce",
		recordAttrs(rec),
		trace.WithAttributes(attribute.String("idempotency.scope", scope)),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	prev, err := repo.GetIdempotency(ctx, l.DB, scope, key, now)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("idempotency.replayed", true))
		return prev.RequestID, true, nil
	case !errors.Is(err, repo.ErrNotFound):
		span.RecordError(err)
		return 0, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// An expired entry still holds the unique (scope, key) slot.
		if _, err := repo.PurgeExpiredIdempotency(ctx, tx, now); err != nil {
			return err
		}
		out, err := repo.InsertRequest(ctx, tx, rec)
		if err != nil {
			return err
		}
		if _, err := repo.CreateIdempotency(ctx, tx, scope, key, out.ID, ttl); err != nil {
			return err
		}
		id = out.ID
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Another process sharing the database file recorded the key first.
		if prev, gerr := repo.GetIdempotency(ctx, l.DB, scope, key, now); gerr == nil {
			return prev.RequestID, true, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return id, false, nil
}

// ReadAll returns every record in ascending id order.
func (l *Ledger) ReadAll(ctx context.Context) ([]domain.RequestRecord, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "ReadAll")
	defer span.End()

	return repo.ListRequests(ctx, l.DB)
}

// ReadPage returns one page of records in ascending id order plus the total
// number of records. page is 1-based.
func (l *Ledger) ReadPage(ctx context.Context, page, pageSize int) ([]domain.RequestRecord, int64, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "ReadPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	total, _, err := repo.RequestsStats(ctx, l.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RequestRecord{}, 0, nil
	}
	items, err := repo.ListRequestsPage(ctx, l.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the record count and the highest id, which together change
// on every append.
func (l *Ledger) Stats(ctx context.Context) (count int64, maxID uint, err error) {
	return repo.RequestsStats(ctx, l.DB)
}

func recordAttrs(rec domain.RequestRecord) trace.SpanStartEventOption {
	return trace.WithAttributes(
		attribute.String("request.kind", string(rec.Kind)),
		attribute.String("request.status", string(rec.Status)),
	)
}
