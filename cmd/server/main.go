package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/auth"
	"clinic-schedule-ingest/internal/export"
	"clinic-schedule-ingest/internal/handler"
	"clinic-schedule-ingest/internal/middleware"
	"clinic-schedule-ingest/internal/remote"
	"clinic-schedule-ingest/internal/securestore"
	"clinic-schedule-ingest/internal/store"
)

func main() {
	_ = godotenv.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("PRETTY_LOGS") != "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}
	clientID := env("CLIENT_ID", "frontdesk")
	clientSecret := os.Getenv("CLIENT_SECRET")
	if clientSecret == "" {
		logger.Fatal().Msg("CLIENT_SECRET is required")
	}
	clientHash, err := auth.HashPassword(clientSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("hashing client secret")
	}
	port := env("PORT", "8080")

	// storage engine: one instance owns the encrypted map and its sweeper
	ttl, err := time.ParseDuration(env("STORAGE_TTL", "8h"))
	if err != nil {
		logger.Fatal().Err(err).Msg("STORAGE_TTL")
	}
	engine, err := securestore.New(securestore.Config{
		Passphrase: os.Getenv("STORAGE_PASSPHRASE"),
		DefaultTTL: ttl,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("storage engine")
	}
	defer engine.Destroy()

	codec := export.New(engine, &logger)
	adapter := remote.New(os.Getenv("REMOTE_PARSE_URL"), nil, &logger)
	h := handler.New(engine, codec, adapter, secret, clientID, clientHash, &logger)

	// optional audit archive: compliance reporting outlives the instance
	flushDone := make(chan struct{})
	flushStop := make(chan struct{})
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db")
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("db ping")
		}
		logger.Info().Msg("connected to postgres")

		// run migrations
		if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
			logger.Warn().Err(err).Msg("migration file not found, skipping")
		} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
			logger.Warn().Err(err).Msg("migration warning")
		} else {
			logger.Info().Msg("migration applied")
		}

		st := store.New(pool)
		go auditFlusher(st, engine, &logger, flushStop, flushDone)
	} else {
		close(flushDone)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RateLimit(middleware.NewRateLimiter(5, 10)))
	e.Use(middleware.Auth(secret))

	e.GET("/healthz", h.Health)
	e.POST("/v1/auth/token", h.Token)
	e.POST("/v1/schedule/parse", h.Parse)
	e.POST("/v1/schedule/export", h.Export)
	e.POST("/v1/schedule/import", h.Import)
	e.GET("/v1/storage/audit", h.Audit)
	e.GET("/v1/storage/stats", h.Stats)

	go func() {
		logger.Info().Str("port", port).Msg("http listening")
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	logger.Info().Msg("shutting down")
	close(flushStop)
	<-flushDone

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// auditFlusher periodically copies new audit entries into the archive table.
func auditFlusher(st *store.Store, engine *securestore.Engine, logger *zerolog.Logger, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			flush(st, engine, logger)
			return
		case <-ticker.C:
			flush(st, engine, logger)
		}
	}
}

func flush(st *store.Store, engine *securestore.Engine, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.ArchiveAuditEntries(ctx, engine.AuditLog()); err != nil {
		logger.Warn().Err(err).Msg("audit archive flush failed")
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
