package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_MasksCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	const arrKey = "0123456789abcdef0123456789abcdef"
	const botToken = "MTA5ODc2NTQzMjEwOTg3NjU0.GhIjKl.abcdefghijklmnopqrstuvwxyz0123456"

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Custom-Secret"}, MaskParams: []string{"sig"}}))
	r.GET("/config", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/config?apikey=plain&sig=abc&note="+arrKey, nil)
	req.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
	req.Header.Set("X-Api-Key", "anything")
	req.Header.Set("X-Custom-Secret", "s3cret")
	req.Header.Set("X-Forwarded-Note", "token "+botToken)
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"YWRtaW46YWRtaW4=", "anything", "s3cret", "plain", "sig=abc", arrKey, botToken} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}

	line := lastLine(t, buf)
	headers, _ := line["headers"].(map[string]any)
	if headers["Authorization"] != redacted || headers["X-Api-Key"] != redacted || headers["X-Custom-Secret"] != redacted {
		t.Fatalf("headers not masked: %v", headers)
	}
	if !strings.Contains(headers["X-Forwarded-Note"].(string), "[REDACTED:token]") {
		t.Fatalf("bot token not redacted: %v", headers["X-Forwarded-Note"])
	}
	if q := line["query"].(string); !strings.Contains(q, "REDACTED") {
		t.Fatalf("query not redacted: %q", q)
	}
	if line["level"] != "info" || line["path"] != "/config" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/401", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	r.GET("/500", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/401", nil))
	if l := lastLine(t, buf); l["level"] != "warn" {
		t.Fatalf("401 level = %v", l["level"])
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/500", nil))
	if l := lastLine(t, buf); l["level"] != "error" {
		t.Fatalf("500 level = %v", l["level"])
	}
}

func TestRedactSecrets(t *testing.T) {
	if got := redactSecrets(""); got != "" {
		t.Fatalf("empty = %q", got)
	}
	if got := redactSecrets("Dune 2021"); got != "Dune 2021" {
		t.Fatalf("plain text changed: %q", got)
	}
	if got := redactSecrets("key=ABCDEF0123456789ABCDEF0123456789"); got != "key=[REDACTED:key]" {
		t.Fatalf("uppercase hex key not redacted: %q", got)
	}
}

func TestRedactQuery_Unparseable(t *testing.T) {
	raw := "a=%zz&k=0123456789abcdef0123456789abcdef"
	if got := redactQuery(raw, lowerSet(defaultMaskParams)); strings.Contains(got, "0123456789abcdef") {
		t.Fatalf("unparseable query leaked key: %q", got)
	}
}

func TestRedactingLogger_ScopedLoggerAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/logs", func(c *gin.Context) {
		c.Set(gin.AuthUserKey, "admin")
		LoggerFrom(c).Info().Msg("inside handler")
		c.Status(http.StatusOK)
	})
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(http.ErrAbortHandler)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	req.Header.Set("X-Request-ID", "rid-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want handler line + access line, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"request_id":"rid-7"`) || !strings.Contains(lines[0], `"path":"/logs"`) {
		t.Fatalf("scoped logger lacks request fields: %s", lines[0])
	}
	if line := lastLine(t, buf); line["admin_user"] != "admin" || line["request_id"] != "rid-7" {
		t.Fatalf("access line: %v", line)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/err", nil))
	if line := lastLine(t, buf); line["level"] != "error" || line["errors"] == nil {
		t.Fatalf("gin errors should log at error: %v", line)
	}
}

func TestRedactingLogger_UnmatchedRouteUsesRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if line := lastLine(t, buf); line["path"] != "/nope" || line["status"] != float64(404) {
		t.Fatalf("unexpected line: %v", line)
	}
}
