package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the process-level configuration for the rating-core
// workers (stabilizer, replay worker). Loaded once at startup.
type Config struct {
	MongoURI    string
	MongoDB     string
	Environment string // development, staging, production

	HealthAddr string // chi mux for /healthz, /livez

	StabilizationInterval time.Duration
	StabilizationHorizon  time.Duration // graph.horizonDays, as a duration

	ReplayPollInterval time.Duration
	ReplayQueueLimit   int
	ReplayLeaseTTL     time.Duration
}

// FromEnv loads configuration from the environment, optionally seeded
// from a local .env file in non-production environments.
func FromEnv() Config {
	if env := os.Getenv("ENVIRONMENT"); env != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("failed to load .env file")
		}
	}

	return Config{
		MongoURI:    getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getenv("MONGO_DB", "openrating"),
		Environment: getenv("ENVIRONMENT", "development"),

		HealthAddr: getenv("HEALTH_ADDR", ":8090"),

		StabilizationInterval: getDuration("STABILIZATION_INTERVAL", 24*time.Hour),
		StabilizationHorizon:  getDuration("GRAPH_HORIZON", 90*24*time.Hour),

		ReplayPollInterval: getDuration("REPLAY_POLL_INTERVAL", 15*time.Second),
		ReplayQueueLimit:   getInt("REPLAY_QUEUE_LIMIT", 10),
		ReplayLeaseTTL:     getDuration("REPLAY_LEASE_TTL", 5*time.Minute),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}
