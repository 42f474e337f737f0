package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/repo"
)

// ---------- test helpers ----------

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func movie(user, title string, st domain.Status) domain.RequestRecord {
	return domain.RequestRecord{User: user, Kind: domain.KindMovie, Title: title, Status: st}
}

// ---------- Append / ReadAll ----------

func TestLedger_AppendAndReadAll_Order(t *testing.T) {
	l := NewLedger(newLedgerDB(t))
	ctx := context.Background()

	var ids []uint
	for _, title := range []string{"A", "B", "C"} {
		id, err := l.Append(ctx, movie("u", title, domain.StatusRequested))
		if err != nil {
			t.Fatalf("Append(%s): %v", title, err)
		}
		ids = append(ids, id)
	}

	got, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.ID != ids[i] || rec.Title != string(rune('A'+i)) {
			t.Fatalf("record %d = %+v; want id %d", i, rec, ids[i])
		}
	}

	again, _ := l.ReadAll(ctx)
	if len(again) != len(got) {
		t.Fatalf("repeated ReadAll changed length")
	}
	for i := range got {
		if again[i].ID != got[i].ID || again[i].Title != got[i].Title || again[i].Status != got[i].Status {
			t.Fatalf("repeated ReadAll differs at %d", i)
		}
	}
}

func TestLedger_Append_ConcurrentUniqueIDs(t *testing.T) {
	l := NewLedger(newLedgerDB(t))
	ctx := context.Background()

	const n = 25
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uint]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := l.Append(ctx, movie("u", fmt.Sprintf("t%d", i), domain.StatusRequested))
			if err != nil {
				t.Errorf("Append: %v", err)
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != n {
		t.Fatalf("want %d distinct ids, got %d", n, len(ids))
	}
	count, maxID, err := l.Stats(ctx)
	if err != nil || count != n {
		t.Fatalf("Stats = (%d, %d, %v); want count %d", count, maxID, err, n)
	}
}

func TestLedger_Append_FailureIsPersistence(t *testing.T) {
	db := newLedgerDB(t)
	l := NewLedger(db)
	if err := db.Migrator().DropTable(&domain.RequestRecord{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := l.Append(context.Background(), movie("u", "x", domain.StatusFailed))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
}

// ---------- AppendOnce ----------

func TestLedger_AppendOnce_ReplaysSameKey(t *testing.T) {
	l := NewLedger(newLedgerDB(t))
	ctx := context.Background()
	rec := domain.RequestRecord{User: "alice", Kind: domain.KindNotification, Title: "Dune", Status: domain.StatusDownloaded}

	id1, replayed, err := l.AppendOnce(ctx, rec, "webhook", "evt-1", time.Hour)
	if err != nil || replayed {
		t.Fatalf("first AppendOnce = (%d, %v, %v)", id1, replayed, err)
	}
	id2, replayed, err := l.AppendOnce(ctx, rec, "webhook", "evt-1", time.Hour)
	if err != nil || !replayed || id2 != id1 {
		t.Fatalf("second AppendOnce = (%d, %v, %v); want (%d, true, nil)", id2, replayed, err, id1)
	}

	all, _ := l.ReadAll(ctx)
	if len(all) != 1 {
		t.Fatalf("replay must not append; got %d rows", len(all))
	}

	id3, replayed, err := l.AppendOnce(ctx, rec, "webhook", "evt-2", time.Hour)
	if err != nil || replayed || id3 == id1 {
		t.Fatalf("different key should append: (%d, %v, %v)", id3, replayed, err)
	}
}

func TestLedger_AppendOnce_BlankKeyAlwaysAppends(t *testing.T) {
	l := NewLedger(newLedgerDB(t))
	ctx := context.Background()
	rec := domain.RequestRecord{User: "alice", Kind: domain.KindNotification, Title: "Dune", Status: domain.StatusDownloaded}

	for i := 0; i < 2; i++ {
		if _, replayed, err := l.AppendOnce(ctx, rec, "webhook", "  ", time.Hour); err != nil || replayed {
			t.Fatalf("AppendOnce blank key: replayed=%v err=%v", replayed, err)
		}
	}
	if all, _ := l.ReadAll(ctx); len(all) != 2 {
		t.Fatalf("want 2 rows, got %d", len(all))
	}
}

func TestLedger_AppendOnce_ExpiredKeyAppendsAgain(t *testing.T) {
	db := newLedgerDB(t)
	l := NewLedger(db)
	ctx := context.Background()
	rec := domain.RequestRecord{User: "alice", Kind: domain.KindNotification, Title: "Dune", Status: domain.StatusDownloaded}

	id1, _, err := l.AppendOnce(ctx, rec, "webhook", "k", time.Hour)
	if err != nil {
		t.Fatalf("AppendOnce: %v", err)
	}
	if err := db.Model(&domain.Idempotency{}).Where("key = ?", "k").
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire key: %v", err)
	}

	id2, replayed, err := l.AppendOnce(ctx, rec, "webhook", "k", time.Hour)
	if err != nil || replayed || id2 == id1 {
		t.Fatalf("expired key should append anew: (%d, %v, %v)", id2, replayed, err)
	}
}

func TestLedger_AppendOnce_InsertFailureRollsBack(t *testing.T) {
	db := newLedgerDB(t)
	l := NewLedger(db)
	ctx := context.Background()

	bad := domain.RequestRecord{User: "alice", Kind: "bogus", Title: "Dune", Status: domain.StatusDownloaded}
	if _, _, err := l.AppendOnce(ctx, bad, "webhook", "k", time.Hour); !errors.Is(err, ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
	if _, err := repo.GetIdempotency(ctx, db, "webhook", "k", time.Now().UTC()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("idempotency row should not survive a failed append: %v", err)
	}
}

// ---------- ReadPage / Stats ----------

func TestLedger_ReadPage(t *testing.T) {
	l := NewLedger(newLedgerDB(t))
	ctx := context.Background()

	items, total, err := l.ReadPage(ctx, 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty ledger page = (%v, %d, %v)", items, total, err)
	}

	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, movie("u", fmt.Sprintf("t%d", i), domain.StatusRequested)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	items, total, err = l.ReadPage(ctx, 2, 2)
	if err != nil || total != 5 || len(items) != 2 || items[0].Title != "t2" {
		t.Fatalf("page 2 = (%+v, %d, %v)", items, total, err)
	}
	items, _, _ = l.ReadPage(ctx, 0, 0)
	if len(items) != 5 {
		t.Fatalf("defaults should clamp to page 1 and a large page size, got %d", len(items))
	}
}
