package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-reqlarr/internal/http/middleware"
	"github.com/tbourn/go-reqlarr/internal/services"
)

// maxWebhookBody caps the accepted payload size.
const maxWebhookBody = 1 << 20

// WebhookPayload documents the accepted body. Every field is optional.
type WebhookPayload struct {
	Title     string `json:"title" example:"Dune"`
	EventType string `json:"eventType" example:"Download"`
	// Numeric Discord user id of the requester (a string or a bare number).
	User string `json:"user" example:"123456789012345678"`
}

// Webhook godoc
// @ID          webhook
// @Summary     Receive a download event
// @Description Records Download events in the ledger and schedules a direct message to the requester. Other event types are acknowledged and ignored. Missing fields default to "Unknown" (title, eventType) and "System" (user); a malformed body is treated as an empty object. An optional Idempotency-Key makes retried deliveries count once; a malformed key is ignored.
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                    false  "Deduplicates retried deliveries"
// @Param       body             body    handlers.WebhookPayload  false  "Event"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Ledger write failed"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		lg.Warn().Err(err).Msg("webhook body unreadable; using defaults")
		raw = nil
	}
	ev, err := services.ParseDownloadEvent(raw)
	if err != nil {
		lg.Warn().Err(err).Msg("malformed webhook payload; using defaults")
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.notifier.Notify(c.Request.Context(), ev, key)
	if err != nil {
		if errors.Is(err, services.ErrPersistence) {
			fail(c, http.StatusInternalServerError, ErrCodeLedgerFailed, "could not record event")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}

	lg.Debug().
		Str("event_type", ev.EventType).
		Bool("recorded", res.Recorded).
		Bool("replayed", res.Replayed).
		Bool("known_key", middleware.IsReplay(c)).
		Bool("scheduled", res.Scheduled).
		Msg("webhook handled")
	message(c, "Webhook received")
}
