package handlers

import (
	"context"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/services"
	"github.com/tbourn/go-reqlarr/internal/settings"
)

// LedgerReader is the read side of the request ledger.
type LedgerReader interface {
	ReadAll(ctx context.Context) ([]domain.RequestRecord, error)
	ReadPage(ctx context.Context, page, pageSize int) ([]domain.RequestRecord, int64, error)
	Stats(ctx context.Context) (count int64, maxID uint, err error)
}

// SettingsStore exposes the runtime settings to the admin surface.
type SettingsStore interface {
	Snapshot() settings.Settings
	Apply(u settings.Update) (settings.Settings, error)
}

// WebhookNotifier handles parsed download events.
type WebhookNotifier interface {
	Notify(ctx context.Context, ev domain.DownloadEvent, idempotencyKey string) (services.NotifyResult, error)
}

// Handlers groups the HTTP endpoints. Dependencies are interfaces so tests
// can substitute fakes.
type Handlers struct {
	ledger   LedgerReader
	settings SettingsStore
	notifier WebhookNotifier
}

// New constructs Handlers bound to the given collaborators.
func New(ledger LedgerReader, st SettingsStore, notifier WebhookNotifier) *Handlers {
	return &Handlers{ledger: ledger, settings: st, notifier: notifier}
}
