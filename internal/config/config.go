package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xcyber/portal/internal/utils"
)

type Config struct {
	Addr string

	// StoreDriver selects the persistence backend: memory|sqlite3|sqlite|postgres.
	StoreDriver   string
	StoreDSN      string
	MigrationsDir string
	SnapshotPath  string
	SeedPath     string

	// SessionDriver is memory or redis.
	SessionDriver string
	SessionFile   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenTTL      time.Duration
	AutosaveDelay time.Duration
	CORSOrigins   []string

	StaticDir      string
	DevFrontendURL string

	Commit    string
	BuildTime string
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Addr:           envOr("XCYBER_ADDR", ":8080"),
		StoreDriver:    strings.ToLower(envOr("XCYBER_STORE", "memory")),
		StoreDSN:       envOr("XCYBER_STORE_DSN", ""),
		MigrationsDir:  envOr("XCYBER_MIGRATIONS_DIR", ""),
		SnapshotPath:   envOr("XCYBER_SNAPSHOT", "xcyber_responses.json"),
		SeedPath:       envOr("XCYBER_SEED", ""),
		SessionDriver:  strings.ToLower(envOr("XCYBER_SESSIONS", "memory")),
		SessionFile:    envOr("XCYBER_SESSION_FILE", ""),
		RedisAddr:      envOr("XCYBER_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  envOr("XCYBER_REDIS_PASSWORD", ""),
		RedisDB:        envInt("XCYBER_REDIS_DB", 0),
		TokenTTL:       envDuration("XCYBER_TOKEN_TTL", 24*time.Hour),
		AutosaveDelay:  envDuration("XCYBER_AUTOSAVE_DELAY", time.Second),
		CORSOrigins:    csvOr("XCYBER_CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		StaticDir:      envOr("XCYBER_STATIC_DIR", ""),
		DevFrontendURL: envOr("XCYBER_DEV_FRONTEND_URL", ""),
		Commit:         envOr("XCYBER_COMMIT", ""),
		BuildTime:      envOr("XCYBER_BUILD_TIME", ""),
	}
}

func envOr(k, def string) string {
	return utils.SafeEnv(k, def)
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(envOr(k, ""))
	if err != nil {
		return def
	}
	return v
}

// envDuration accepts Go durations ("1500ms") or a bare number of seconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := envOr(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: ignoring %s=%q", k, v)
	return def
}

func csvOr(k, def string) []string {
	parts := strings.Split(envOr(k, def), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PersistSnapshot reports whether the memory store should mirror responses to disk.
func (c Config) PersistSnapshot() bool {
	return c.StoreDriver == "memory" && envBool("XCYBER_SNAPSHOT_ENABLED", true)
}
