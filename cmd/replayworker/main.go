package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/henrynw/openrating/internal/config"
	"github.com/henrynw/openrating/internal/core"
	"github.com/henrynw/openrating/internal/lock"
	rmongo "github.com/henrynw/openrating/internal/mongo"
	"github.com/henrynw/openrating/internal/monitoring"
	"github.com/henrynw/openrating/internal/replay"
	"github.com/henrynw/openrating/internal/sexoffset"
	"github.com/henrynw/openrating/internal/store"
)

// cmd/replayworker drains the replay queue (§5, C9+C11): polls
// rating_replay_queue for ladders whose recorded matches are older than
// their current rating state, leases each one so only one worker
// process touches a given ladder at a time, and rebuilds it from
// scratch in chronological order.
func main() {
	cfg := config.FromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mc, err := rmongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo")
	}
	defer func() {
		if err := mc.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close mongo client")
		}
	}()

	params := core.DefaultParams()
	s := store.New(mc)
	offsets := sexoffset.New(s, params.SexOffsets)

	// Insight-refresh notification (§4.5 step 9) has no concrete
	// collaborator in this core engine; downstream insight narration is
	// out of scope here (see spec Non-goals), so the executor is wired
	// with insights=nil and skips the notification step.
	executor := replay.New(s, params, offsets, nil)

	ownerID := ownerIdentity()
	leases := lock.NewLeases(mc.DB)
	worker := replay.NewWorker(executor, s.ReplayQueue, leases, ownerID, cfg.ReplayQueueLimit, cfg.ReplayLeaseTTL)

	health := monitoring.NewHealthChecker(log.Logger, monitoring.DefaultHealthConfig("openrating-replayworker", cfg.HealthAddr))
	health.RegisterCheck(monitoring.NewDatabaseHealthCheck("mongo", "primary data store", true, mc))
	health.RegisterCheck(monitoring.NewSystemResourcesHealthCheck("resources", "host resource headroom", false))

	worker.SetMetrics(monitoring.NewMetricsCollector(log.Logger, monitoring.DefaultMetricsConfig("openrating-replayworker")))

	log.Info().
		Str("owner", ownerID).
		Dur("poll_interval", cfg.ReplayPollInterval).
		Int("queue_limit", cfg.ReplayQueueLimit).
		Msg("replay worker starting")

	worker.Loop(ctx, cfg.ReplayPollInterval)
	log.Info().Msg("replay worker shutting down")
}

func ownerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
