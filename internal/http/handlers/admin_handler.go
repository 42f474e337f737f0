// Admin HTTP handlers, mounted behind basic auth:
//   - GET  /config  (current settings)
//   - POST /config  (partial update, persisted)
//   - GET  /logs    (request ledger, ETag support)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-reqlarr/internal/domain"
	"github.com/tbourn/go-reqlarr/internal/http/middleware"
	"github.com/tbourn/go-reqlarr/internal/settings"
	"github.com/tbourn/go-reqlarr/internal/utils"
)

const (
	defaultLogsPageSize = 50
	maxLogsPageSize     = 500
)

// ListLogsResponse wraps a page of ledger records. It is only used when
// the caller asks for a page; otherwise /logs returns a bare array.
type ListLogsResponse struct {
	Logs       []domain.RequestRecord `json:"logs"`
	Pagination utils.Page             `json:"pagination"`
}

// GetConfig godoc
// @ID          getConfig
// @Summary     Show runtime settings
// @Description Returns the current Radarr/Sonarr credentials and URLs and the Discord bot token.
// @Tags        Admin
// @Produce     json
// @Security    BasicAuth
// @Success     200  {object}  settings.Settings
// @Failure     401  {string}  string  "Unauthorized"
// @Router      /config [get]
func (h *Handlers) GetConfig(c *gin.Context) {
	ok(c, http.StatusOK, h.settings.Snapshot())
}

// UpdateConfig godoc
// @ID          updateConfig
// @Summary     Update runtime settings
// @Description Merges the given keys into the settings and writes them to the settings file. Omitted keys are unchanged. Takes effect for requests that start afterwards; a bot token change applies on restart.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BasicAuth
// @Param       body  body      settings.Update  true  "Keys to change"
// @Success     200   {object}  handlers.MessageResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Malformed JSON or invalid URL"
// @Failure     401   {string}  string                  "Unauthorized"
// @Failure     500   {object}  handlers.ErrorResponse  "Settings file not writable"
// @Router      /config [post]
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var u settings.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if _, err := h.settings.Apply(u); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidSettings, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "could not save configuration")
		return
	}

	middleware.LoggerFrom(c).Info().Strs("keys", changedKeys(u)).Msg("settings updated")
	message(c, "Configuration updated successfully")
}

// GetLogs godoc
// @ID          getLogs
// @Summary     Show the request ledger
// @Description Returns every ledger record in ascending id order. With page or page_size the response is a paginated object instead. Supports weak ETag via If-None-Match.
// @Tags        Admin
// @Produce     json
// @Security    BasicAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(500) default(50)
// @Success     200  {array}   domain.RequestRecord
// @Header      200  {string}  ETag  "Weak ETag for the current ledger"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {string}  string  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Ledger unavailable"
// @Router      /logs [get]
func (h *Handlers) GetLogs(c *gin.Context) {
	ctx := c.Request.Context()
	rawPage, rawSize := c.Query("page"), c.Query("page_size")
	paged := rawPage != "" || rawSize != ""

	// The ledger is append-only, so (count, max id) identifies its contents.
	if count, maxID, err := h.ledger.Stats(ctx); err == nil {
		etag := fmt.Sprintf(`W/"logs:%d:%d"`, count, maxID)
		if paged {
			page, size := utils.ClampPage(rawPage, rawSize, defaultLogsPageSize, maxLogsPageSize)
			etag = fmt.Sprintf(`W/"logs:%d:%d:%d:%d"`, count, maxID, page, size)
		}
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if !paged {
		items, err := h.ledger.ReadAll(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeLedgerFailed, "could not read request log")
			return
		}
		ok(c, http.StatusOK, items)
		return
	}

	page, size := utils.ClampPage(rawPage, rawSize, defaultLogsPageSize, maxLogsPageSize)
	items, total, err := h.ledger.ReadPage(ctx, page, size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeLedgerFailed, "could not read request log")
		return
	}
	ok(c, http.StatusOK, ListLogsResponse{Logs: items, Pagination: utils.NewPage(page, size, total)})
}

func changedKeys(u settings.Update) []string {
	keys := []string{}
	for name, v := range map[string]*string{
		"sonarr_api_key":    u.SonarrAPIKey,
		"radarr_api_key":    u.RadarrAPIKey,
		"discord_bot_token": u.DiscordBotToken,
		"sonarr_url":        u.SonarrURL,
		"radarr_url":        u.RadarrURL,
	} {
		if v != nil {
			keys = append(keys, name)
		}
	}
	return keys
}
