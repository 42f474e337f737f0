package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/observability"
)

// IdempotencyScopeWebhook scopes Idempotency-Key values sent to /webhook.
const IdempotencyScopeWebhook = "webhook"

// RecipientResolver maps a webhook user to a chat recipient id, or returns
// ErrRecipientNotFound.
type RecipientResolver interface {
	ResolveRecipient(ctx context.Context, user string) (string, error)
}

// OnceAppender is the idempotent write side of the Ledger.
type OnceAppender interface {
	AppendOnce(ctx context.Context, rec domain.RequestRecord, scope, key string, ttl time.Duration) (uint, bool, error)
}

// Submitter schedules a direct message without waiting for it.
type Submitter interface {
	Submit(job Job) error
}

// NotifyResult describes what Notify did with an event.
type NotifyResult struct {
	Recorded  bool // a ledger row exists for this event
	Replayed  bool // the row was written by an earlier delivery with the same key
	RecordID  uint
	Scheduled bool // a direct message was queued
}

// Notifier records download events and schedules the matching direct message.
type Notifier struct {
	Ledger     OnceAppender
	Dispatcher Submitter // nil disables delivery

	IdempotencyTTL time.Duration
}

// ParseDownloadEvent decodes a webhook body into a DownloadEvent. Absent or
// null fields get their defaults (title and eventType "Unknown", user
// "System"); a field sent as "" stays empty. Numbers are accepted as their
// decimal text so that a raw Discord id can be sent unquoted. On malformed
// input the returned event holds all defaults alongside the error.
func ParseDownloadEvent(raw []byte) (domain.DownloadEvent, error) {
	ev := domain.DownloadEvent{
		Title:     domain.DefaultEventTitle,
		EventType: domain.DefaultEventType,
		User:      domain.DefaultEventUser,
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ev, nil
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return ev, fmt.Errorf("decode webhook payload: %w", err)
	}

	if v, ok := scalarString(fields["title"]); ok {
		ev.Title = v
	}
	if v, ok := scalarString(fields["eventType"]); ok {
		ev.EventType = v
	}
	if v, ok := scalarString(fields["user"]); ok {
		ev.User = v
	}
	return ev, nil
}

// scalarString reports false for absent, null and non-scalar values.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// Notify handles one webhook event. Only Download events are acted on: the
// event is appended to the ledger (once per idempotencyKey when one is given),
// then a direct message for the user is handed to the Dispatcher, which
// resolves the recipient off the caller's path. Scheduling problems are logged
// and swallowed; the only error returned wraps ErrPersistence.
func (n *Notifier) Notify(ctx context.Context, ev domain.DownloadEvent, idempotencyKey string) (NotifyResult, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("services/Notifier").Start(ctx, "Notify",
		trace.WithAttributes(
			attribute.String("event.type", ev.EventType),
			attribute.String("event.user", ev.User),
		),
	)
	defer span.End()

	var res NotifyResult
	if !ev.IsDownload() {
		log.Debug().Str("event_type", ev.EventType).Msg("ignoring webhook event")
		return res, nil
	}

	lg := log.With().Str("user", ev.User).Str("title", ev.Title).Logger()

	id, replayed, err := n.Ledger.AppendOnce(ctx, domain.RequestRecord{
		User:   ev.User,
		Kind:   domain.KindNotification,
		Title:  ev.Title,
		Status: domain.StatusDownloaded,
	}, IdempotencyScopeWebhook, strings.TrimSpace(idempotencyKey), n.ttl())
	if err != nil {
		err = asPersistence(err)
		span.RecordError(err)
		lg.Error().Err(err).Msg("could not record download event")
		return res, err
	}
	res.Recorded, res.RecordID, res.Replayed = true, id, replayed

	if replayed {
		observability.NotificationsTotal.WithLabelValues("replayed").Inc()
		lg.Info().Uint("record_id", id).Msg("duplicate webhook delivery; skipping notification")
		return res, nil
	}
	observability.NotificationsTotal.WithLabelValues("recorded").Inc()

	if n.Dispatcher == nil {
		return res, nil
	}

	if err := n.Dispatcher.Submit(Job{
		User: ev.User,
		Text: fmt.Sprintf("Your requested %s has been downloaded!", ev.Title),
	}); err != nil {
		lg.Warn().Err(err).Msg("could not schedule notification")
		return res, nil
	}
	res.Scheduled = true
	span.SetAttributes(attribute.Bool("notify.scheduled", true))
	return res, nil
}

func (n *Notifier) ttl() time.Duration {
	if n.IdempotencyTTL > 0 {
		return n.IdempotencyTTL
	}
	return 24 * time.Hour
}
