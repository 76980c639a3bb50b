package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 从 .env 与环境变量读取
type Config struct {
	Port      string
	WebOrigin string
	AppName   string

	Database Database
	Redis    Redis
	Session  Session
	Security Security
	Install  Install
	SMTP     SMTP
	Passkey  Passkey
	Log      Log

	OTelCollectorHost string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the key=value connection string understood by both pgx and lib/pq.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Session struct {
	Secret      string
	TTL         time.Duration
	RememberTTL time.Duration
}

type Security struct {
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	PasswordMinLength int
	PasswordResetTTL  time.Duration
}

type Install struct {
	Sentinel      string
	AdminUsername string
	AdminPassword string
	AdminEmail    string
	WritableDirs  []string
}

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Passkey struct {
	RPID          string
	RPOrigins     []string
	RPDisplayName string
}

// Enabled reports whether passkey sign-in is configured.
func (p Passkey) Enabled() bool { return p.RPID != "" }

type Log struct {
	Level  string
	Format string
}

// Load reads .env (if present) and the process environment. Malformed numbers
// and durations fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      get("PORT", "8080"),
		WebOrigin: get("WEB_ORIGIN", "http://localhost:8080"),
		AppName:   get("APP_NAME", "ConstructLink"),
		Database: Database{
			Host:     get("DB_HOST", "127.0.0.1"),
			Port:     get("DB_PORT", "5432"),
			User:     get("DB_USER", "constructlink"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     get("DB_NAME", "constructlink"),
			SSLMode:  get("DB_SSLMODE", "disable"),
		},
		Redis: Redis{
			Addr:     get("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Session: Session{
			Secret:      os.Getenv("SESSION_SECRET"),
			TTL:         getDuration("SESSION_TTL", 8*time.Hour),
			RememberTTL: getDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour),
		},
		Security: Security{
			LoginMaxAttempts:  getInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:       getDuration("LOGIN_WINDOW", 15*time.Minute),
			PasswordMinLength: getInt("PASSWORD_MIN_LENGTH", 8),
			PasswordResetTTL:  time.Hour,
		},
		Install: Install{
			Sentinel:      get("INSTALL_SENTINEL", "storage/installed.lock"),
			AdminUsername: get("INSTALL_ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("INSTALL_ADMIN_PASSWORD"),
			AdminEmail:    get("INSTALL_ADMIN_EMAIL", "admin@constructlink.local"),
			WritableDirs: []string{
				get("LOG_DIR", "storage/logs"),
				get("UPLOAD_DIR", "storage/uploads"),
				get("QR_DIR", "storage/qr"),
			},
		},
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     get("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Passkey: Passkey{
			RPID:          os.Getenv("RP_ID"),
			RPOrigins:     splitCSV(os.Getenv("RP_ORIGINS")),
			RPDisplayName: get("RP_DISPLAY_NAME", "ConstructLink"),
		},
		Log: Log{
			Level:  get("LOG_LEVEL", "info"),
			Format: get("LOG_FORMAT", "json"),
		},
		OTelCollectorHost: os.Getenv("OTEL_COLLECTOR_HOST"),
	}
}

// SecureCookies is true when the app is served over https.
func (c Config) SecureCookies() bool { return strings.HasPrefix(c.WebOrigin, "https://") }

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return n
}

// getDuration accepts Go durations ("15m") or plain seconds ("900").
func getDuration(k string, def time.Duration) time.Duration {
	v := get(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
		return d
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
