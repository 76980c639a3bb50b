package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"constructlink/auth"
	"constructlink/config"
	"constructlink/db"
	"constructlink/install"
	"constructlink/mail"
	"constructlink/security"
	"constructlink/session"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// ceremonyTTL bounds a passkey begin/finish round trip.
const ceremonyTTL = 5 * time.Minute

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn // nil when passkeys are disabled
	Config config.Config
	Logger zerolog.Logger

	Sessions   *session.RedisStore
	Ceremonies *session.CeremonyStore
	Users      *db.Repo
	Auth       *auth.Service
	Limiter    *security.RateLimiter
	Mailer     *mail.Mailer
	Installer  *install.Installer
	Gate       *install.Gate
	Metrics    *Metrics

	shutdown []func(context.Context) error
}

// New wires the application around already opened connections.
func New(cfg config.Config, gdb *gorm.DB, rdb *redis.Client, logger zerolog.Logger) (*App, error) {
	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("session secret: %w", err)
		}
		logger.Warn().Msg("SESSION_SECRET is empty, using a random key; sessions will not survive a restart")
	}

	store := session.NewRedisStore(rdb, cfg.Session.TTL, sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	}, secret)
	store.MaxAge(int(cfg.Session.RememberTTL / time.Second))

	var wa *webauthn.WebAuthn
	if cfg.Passkey.Enabled() {
		origins := cfg.Passkey.RPOrigins
		if len(origins) == 0 {
			origins = []string{cfg.WebOrigin}
		}
		var err error
		wa, err = webauthn.New(&webauthn.Config{
			RPDisplayName: cfg.Passkey.RPDisplayName,
			RPID:          cfg.Passkey.RPID,
			RPOrigins:     origins,
		})
		if err != nil {
			return nil, fmt.Errorf("webauthn: %w", err)
		}
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	users := db.NewRepo(gdb)
	mailer := mail.New(cfg.SMTP, logger)
	in := install.New(gdb, cfg)

	a := &App{
		DB: gdb, RDB: rdb, WA: wa, Config: cfg, Logger: logger,
		Sessions:   store,
		Ceremonies: session.NewCeremonyStore(rdb, ceremonyTTL),
		Users:      users,
		Auth:       auth.NewService(users, store, mailer, cfg),
		Limiter:    security.NewRateLimiter(rdb),
		Mailer:     mailer,
		Installer:  in,
		Gate:       install.NewGate(in),
		Metrics:    NewMetrics(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTelCollectorHost != "" {
		mw, stop, err := InitTracing(context.Background(), cfg.OTelCollectorHost, cfg.AppName)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize tracing")
		} else {
			r.Use(mw)
			a.shutdown = append(a.shutdown, stop)
		}
	}
	r.Use(RequestLogger(logger), a.Metrics.Middleware())
	useCORS(r, cfg.WebOrigin)
	a.Router = r
	return a, nil
}

// MustNew connects to PostgreSQL and Redis and builds the App, exiting on failure.
func MustNew(cfg config.Config) *App {
	logger := NewLogger(cfg.Log)

	gdb, err := db.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis")
	}

	if err := os.MkdirAll("storage", 0o755); err != nil {
		logger.Warn().Err(err).Msg("create storage dir")
	}

	a, err := New(cfg, gdb, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init app")
	}
	return a
}

// Close flushes tracing and releases the connections.
func (a *App) Close(ctx context.Context) {
	for _, stop := range a.shutdown {
		if err := stop(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("shutdown")
		}
	}
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
