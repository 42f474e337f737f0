package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-reqlarr/internal/http/middleware"
	"github.com/tbourn/go-reqlarr/internal/repo"
	"github.com/tbourn/go-reqlarr/internal/services"
	"github.com/tbourn/go-reqlarr/internal/settings"
)

// ---------- test DB + fakes ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type captureSubmitter struct {
	mu   sync.Mutex
	jobs []services.Job
}

func (s *captureSubmitter) Submit(j services.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	return nil
}

type env struct {
	db     *gorm.DB
	ledger *services.Ledger
	store  *settings.Store
	path   string // settings file
	sub    *captureSubmitter
	router *gin.Engine
}

// newEnv wires Handlers over a real ledger and a settings store persisted
// to a temp file, mounting routes the way the router does minus auth.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	ledger := services.NewLedger(db)
	path := filepath.Join(t.TempDir(), "config.json")
	store := settings.NewStore(settings.Settings{
		SonarrURL: settings.DefaultSonarrURL,
		RadarrURL: settings.DefaultRadarrURL,
	}, path)
	sub := &captureSubmitter{}
	notifier := &services.Notifier{
		Ledger:     ledger,
		Dispatcher: sub,
	}
	h := New(ledger, store, notifier)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/webhook", middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: services.IdempotencyScopeWebhook}, nil), h.Webhook)
	r.GET("/config", h.GetConfig)
	r.POST("/config", h.UpdateConfig)
	r.GET("/logs", h.GetLogs)

	return &env{db: db, ledger: ledger, store: store, path: path, sub: sub, router: r}
}

func (e *env) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
