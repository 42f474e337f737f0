// Command reqlarr runs the media request relay: the Discord command bot, the
// download webhook and the admin surface, sharing one SQLite ledger.
//
//	@title						reqlarr API
//	@version					1.0
//	@description				Webhook and admin surface of the reqlarr media request relay.
//	@BasePath					/
//	@securityDefinitions.basic	BasicAuth
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-reqlarr/docs"
	"github.com/tbourn/go-reqlarr/internal/config"
	"github.com/tbourn/go-reqlarr/internal/discord"
	httpapi "github.com/tbourn/go-reqlarr/internal/http"
	"github.com/tbourn/go-reqlarr/internal/library"
	"github.com/tbourn/go-reqlarr/internal/observability"
	"github.com/tbourn/go-reqlarr/internal/repo"
	"github.com/tbourn/go-reqlarr/internal/services"
	"github.com/tbourn/go-reqlarr/internal/settings"
	"github.com/tbourn/go-reqlarr/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open ledger")
	}
	if err := repo.EnableTracing(db); err != nil {
		log.Warn().Err(err).Msg("gorm tracing disabled")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate ledger")
	}

	store, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SettingsPath).Msg("load settings")
	}

	ledger := services.NewLedger(db)
	reconciler := &services.Reconciler{
		Library:  library.New(cfg.LibraryTimeout),
		Settings: store,
		Ledger:   ledger,
	}
	notifier := &services.Notifier{
		Ledger:         ledger,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}

	var (
		bot        *discord.Bot
		dispatcher *services.Dispatcher
	)
	token := store.Snapshot().DiscordBotToken
	switch {
	case !cfg.Discord.Enabled:
		log.Info().Msg("discord disabled; webhook deliveries are recorded only")
	case token == "":
		log.Warn().Str("settings", cfg.SettingsPath).Msg("no discord_bot_token configured; webhook deliveries are recorded only")
	default:
		bot, err = discord.New(token, cfg.Discord.Prefix, reconciler)
		if err != nil {
			log.Fatal().Err(err).Msg("discord session")
		}
		if err := bot.Open(); err != nil {
			log.Fatal().Err(err).Msg("discord connect")
		}
		dispatcher = services.NewDispatcher(bot, cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.Timeout)
		notifier.Dispatcher = dispatcher
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Ledger:   ledger,
		Settings: store,
		Notifier: notifier,
	}, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("reqlarr listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if dispatcher != nil {
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("pending notifications dropped")
		}
	}
	if bot != nil {
		if err := bot.Close(); err != nil {
			log.Warn().Err(err).Msg("discord close")
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
