package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type idemSeen struct {
	key, replay bool
	keyVal      string
}

func idemRouter(lookup IdempotencyLookup, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", IdempotencyValidator(IdempotencyOptions{Scope: "webhook", MaxLen: 16}, lookup), func(c *gin.Context) {
		seen.keyVal, seen.key = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		c.Status(http.StatusOK)
	})
	return r
}

func postWebhook(r *gin.Engine, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_NoHeader(t *testing.T) {
	called := false
	var p idemSeen
	r := idemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, &p)

	if w := postWebhook(r, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if called || p.key || p.replay {
		t.Fatalf("absent header must be a no-op: called=%v seen=%+v", called, p)
	}
}

func TestIdempotency_InvalidKeyIsIgnored(t *testing.T) {
	called := false
	var p idemSeen
	r := idemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, &p)

	for _, k := range []string{"has space", "way-too-long-key-value", "semi;colon"} {
		p = idemSeen{}
		w := postWebhook(r, k)
		if w.Code != http.StatusOK {
			t.Fatalf("key %q: status=%d body=%s", k, w.Code, w.Body.String())
		}
		if p.key || p.replay {
			t.Fatalf("key %q must be dropped: %+v", k, p)
		}
	}
	if called {
		t.Fatalf("lookup must not run for a malformed key")
	}
}

func TestIdempotency_FreshAndReplay(t *testing.T) {
	var gotScope string
	seen := map[string]bool{"evt-1": true}
	var p idemSeen
	r := idemRouter(func(_ context.Context, scope, key string, _ time.Time) (bool, error) {
		gotScope = scope
		return seen[key], nil
	}, &p)

	postWebhook(r, "evt-2")
	if !p.key || p.keyVal != "evt-2" || p.replay {
		t.Fatalf("fresh key: %+v", p)
	}
	if gotScope != "webhook" {
		t.Fatalf("scope = %q", gotScope)
	}

	postWebhook(r, "evt-1")
	if !p.replay {
		t.Fatalf("recorded key should be a replay: %+v", p)
	}
}

func TestIdempotency_LookupErrorDoesNotBlock(t *testing.T) {
	var p idemSeen
	r := idemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		return false, errors.New("db locked")
	}, &p)

	if w := postWebhook(r, "evt-3"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !p.key || p.replay {
		t.Fatalf("unexpected state: %+v", p)
	}
}
