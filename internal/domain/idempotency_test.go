package domain

import (
	"testing"
	"time"
)

func TestIdempotency_UniqueScopeKey(t *testing.T) {
	db := newDomainDB(t)

	if !db.Migrator().HasIndex(&Idempotency{}, "ux_scope_key") {
		t.Fatalf("expected composite index ux_scope_key to exist")
	}

	now := time.Now().UTC()
	first := &Idempotency{ID: "i1", Scope: "webhook", Key: "k1", RequestID: 7, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "i1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Scope != "webhook" || got.Key != "k1" || got.RequestID != 7 {
		t.Fatalf("unexpected row: %+v", got)
	}

	dup := &Idempotency{ID: "i2", Scope: "webhook", Key: "k1", RequestID: 8, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (scope, key)")
	}

	other := &Idempotency{ID: "i3", Scope: "other", Key: "k1", RequestID: 9, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key under a different scope should insert: %v", err)
	}
}
