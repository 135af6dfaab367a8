package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"mealdrop/internal/service"
)

type Config struct {
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	RedisAddr      string
	MigrateOnStart bool
	MigrationsDir  string
	NATSURL        string
	NATSSubject    string
	OutboxEnabled  bool
	OutboxInterval time.Duration
	OutboxBatch    int
	SweepEnabled   bool
	SweepInterval  time.Duration
	Dispatch       service.Config
}

func Load() (Config, error) {
	return load(true)
}

// LoadWorker relaxes the JWT requirement; the outbox worker never
// authenticates callers.
func LoadWorker() (Config, error) {
	return load(false)
}

func load(requireJWT bool) (Config, error) {
	var cfg Config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if requireJWT && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)
	cfg.MigrationsDir = getString("MIGRATIONS_DIR", "migrations")
	cfg.NATSURL = getString("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubject = getString("NATS_SUBJECT", "mealdrop.events")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", true)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	cfg.SweepEnabled = getBool("SWEEP_ENABLED", true)
	cfg.SweepInterval = getDuration("SWEEP_INTERVAL", time.Minute)

	d := service.DefaultConfig()
	d.LocationFreshness = getDuration("LOCATION_FRESHNESS", d.LocationFreshness)
	d.PlacedOrderTimeout = getDuration("PLACED_ORDER_TIMEOUT", d.PlacedOrderTimeout)
	d.BaseFeeCents = getInt64("DELIVERY_BASE_FEE_CENTS", d.BaseFeeCents)
	d.PerKmFeeCents = getInt64("DELIVERY_PER_KM_CENTS", d.PerKmFeeCents)
	d.PrepMinutes = getInt("PREP_MINUTES", d.PrepMinutes)
	d.SpeedKmPerMin = getFloat("DRIVER_SPEED_KM_PER_MIN", d.SpeedKmPerMin)
	d.BaseEarningCents = getInt64("DELIVERY_EARNING_CENTS", d.BaseEarningCents)
	d.ShortlistRadiusKm = getFloat("SHORTLIST_RADIUS_KM", d.ShortlistRadiusKm)
	d.ShortlistLimit = getInt("SHORTLIST_LIMIT", d.ShortlistLimit)
	cfg.Dispatch = d
	return cfg, nil
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}
