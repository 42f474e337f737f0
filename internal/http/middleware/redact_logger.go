package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

var (
	// Radarr and Sonarr API keys are 32 lowercase hex characters.
	arrKeyRE = regexp.MustCompile(`(?i)\b[0-9a-f]{32}\b`)
	// Discord bot tokens: three base64url segments separated by dots.
	botTokenRE = regexp.MustCompile(`\b[A-Za-z0-9_-]{23,28}\.[A-Za-z0-9_-]{6,7}\.[A-Za-z0-9_-]{27,}\b`)
)

// defaultMaskHeaders are always fully masked.
var defaultMaskHeaders = []string{"authorization", "cookie", "set-cookie", "x-api-key"}

// defaultMaskParams are query parameters whose values are never logged.
var defaultMaskParams = []string{"apikey", "api_key", "token", "password"}

// RedactOptions adds header names and query parameters to the built-in
// mask lists. Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

// RedactingLogger attaches a request-scoped logger (see LoggerFrom) and logs
// each request with credentials scrubbed. Bodies are never logged. Masked headers and query parameters are replaced wholesale;
// any other value has media-service API keys and bot tokens replaced.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	headers := lowerSet(defaultMaskHeaders, opts.MaskHeaders)
	params := lowerSet(defaultMaskParams, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := redactQuery(c.Request.URL.RawQuery, params)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := headers[strings.ToLower(k)]; ok {
				safeHeaders[k] = redacted
				continue
			}
			safeHeaders[k] = redactSecrets(strings.Join(vv, ", "))
		}

		scoped := log.With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", redactSecrets(c.Errors.String()))
		}
		if u := c.GetString(gin.AuthUserKey); u != "" {
			ev = ev.Str("admin_user", u)
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", truncate(query, maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}

func redactSecrets(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	return arrKeyRE.ReplaceAllString(s, "[REDACTED:key]")
}

func redactQuery(raw string, params map[string]struct{}) string {
	if raw == "" {
		return raw
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return redactSecrets(raw)
	}
	for k, vv := range vals {
		if _, ok := params[strings.ToLower(k)]; ok {
			vals[k] = []string{redacted}
			continue
		}
		for i := range vv {
			vv[i] = redactSecrets(vv[i])
		}
	}
	return vals.Encode()
}

func lowerSet(lists ...[]string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, l := range lists {
		for _, s := range l {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out
}
