package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/library"
	"github.com/tbourn/go-reqlarr/internal/observability"
	"github.com/tbourn/go-reqlarr/internal/settings"
)

// Library is the subset of library.Client used by the Reconciler.
type Library interface {
	Exists(ctx context.Context, ep library.Endpoint, title string) (bool, error)
	Create(ctx context.Context, ep library.Endpoint, res library.Resource, title string) error
}

// SettingsSource provides the current credentials and endpoints.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Appender is the write side of the Ledger.
type Appender interface {
	Append(ctx context.Context, rec domain.RequestRecord) (uint, error)
}

// Outcome is the result of one reconciliation.
type Outcome struct {
	Status   domain.Status
	Message  string // one line, shown to the requester
	RecordID uint
}

// Reconciler decides whether a requested title needs to be created in Radarr
// or Sonarr and records what happened.
type Reconciler struct {
	Library  Library
	Settings SettingsSource
	Ledger   Appender
}

type target struct {
	endpoint    library.Endpoint
	resource    library.Resource
	displayName string
}

// Reconcile runs one synchronous pass for (user, kind, title):
//
//  1. search the library; a match resolves to Already Exists
//  2. otherwise create; 201 resolves to Requested, anything else to Failed
//  3. append exactly one ledger record
//
// A failed search does not stop the create attempt; it is logged and counted.
// Reconcile is not cancelled by ctx once started. The only error after
// validation wraps ErrPersistence, returned together with the outcome.
func (r *Reconciler) Reconcile(ctx context.Context, user string, kind domain.Kind, title string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("services/Reconciler").Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("request.kind", string(kind)),
			attribute.String("request.user", user),
		),
	)
	defer span.End()

	if strings.TrimSpace(title) == "" {
		return Outcome{}, ErrEmptyTitle
	}
	t, err := r.target(kind)
	if err != nil {
		return Outcome{}, err
	}

	lg := log.With().
		Str("kind", string(kind)).
		Str("title", title).
		Str("user", user).
		Logger()

	exists, err := r.Library.Exists(ctx, t.endpoint, title)
	if err != nil {
		// Fail open: proceed to create as if nothing matched.
		span.AddEvent("search failed", trace.WithAttributes(attribute.String("error", err.Error())))
		lg.Warn().Err(err).Msg("library search failed; attempting create")
	}

	var out Outcome
	if exists {
		out = Outcome{
			Status:  domain.StatusAlreadyExists,
			Message: fmt.Sprintf("%s is already in the library!", title),
		}
	} else if cerr := r.Library.Create(ctx, t.endpoint, t.resource, title); cerr == nil {
		out = Outcome{
			Status:  domain.StatusRequested,
			Message: fmt.Sprintf("%s has been requested and added to %s!", title, t.displayName),
		}
	} else {
		lg.Warn().Err(cerr).Msg("library create failed")
		out = Outcome{
			Status:  domain.StatusFailed,
			Message: fmt.Sprintf("Failed to request the %s.", kind),
		}
	}
	span.SetAttributes(attribute.String("request.status", string(out.Status)))

	id, err := r.Ledger.Append(ctx, domain.RequestRecord{
		User:   user,
		Kind:   kind,
		Title:  title,
		Status: out.Status,
	})
	if err != nil {
		err = asPersistence(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger append failed")
		lg.Error().Err(err).Str("status", string(out.Status)).Msg("could not record request")
		return out, err
	}
	out.RecordID = id

	observability.RequestsTotal.WithLabelValues(string(kind), string(out.Status)).Inc()
	lg.Info().Str("status", string(out.Status)).Uint("record_id", id).Msg("request reconciled")
	return out, nil
}

func (r *Reconciler) target(kind domain.Kind) (target, error) {
	s := r.Settings.Snapshot()
	switch kind {
	case domain.KindMovie:
		return target{
			endpoint:    library.Endpoint{Service: "radarr", BaseURL: s.RadarrURL, APIKey: s.RadarrAPIKey},
			resource:    library.ResourceMovie,
			displayName: "Radarr",
		}, nil
	case domain.KindSeries:
		return target{
			endpoint:    library.Endpoint{Service: "sonarr", BaseURL: s.SonarrURL, APIKey: s.SonarrAPIKey},
			resource:    library.ResourceSeries,
			displayName: "Sonarr",
		}, nil
	}
	return target{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

func asPersistence(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
