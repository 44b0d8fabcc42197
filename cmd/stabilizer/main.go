package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/henrynw/openrating/internal/config"
	"github.com/henrynw/openrating/internal/core"
	rmongo "github.com/henrynw/openrating/internal/mongo"
	"github.com/henrynw/openrating/internal/monitoring"
	"github.com/henrynw/openrating/internal/sexoffset"
	"github.com/henrynw/openrating/internal/stabilize"
	"github.com/henrynw/openrating/internal/store"
)

// cmd/stabilizer runs the nightly stabilization job (§4.4, C8, C10) on a
// fixed interval: inactivity decay, synergy decay, region mean-centering,
// graph smoothing, drift control and sex-offset shrinkage, one Mongo
// transaction per ladder.
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
	job := stabilize.New(s, params, offsets)

	health := monitoring.NewHealthChecker(log.Logger, monitoring.DefaultHealthConfig("openrating-stabilizer", cfg.HealthAddr))
	health.RegisterCheck(monitoring.NewDatabaseHealthCheck("mongo", "primary data store", true, mc))
	health.RegisterCheck(monitoring.NewSystemResourcesHealthCheck("resources", "host resource headroom", false))

	metrics := monitoring.NewMetricsCollector(log.Logger, monitoring.DefaultMetricsConfig("openrating-stabilizer"))

	horizonDays := int(cfg.StabilizationHorizon.Hours() / 24)

	log.Info().
		Dur("interval", cfg.StabilizationInterval).
		Int("horizon_days", horizonDays).
		Msg("stabilizer starting")

	runOnce := func() {
		start := time.Now()
		err := job.Run(ctx, time.Now(), horizonDays)
		metrics.RecordRunDuration("stabilize", time.Since(start))
		if err != nil {
			metrics.RecordError("stabilize", "run_failed")
			log.Error().Err(err).Msg("stabilization run failed")
			return
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("stabilization run complete")
	}

	runOnce()

	ticker := time.NewTicker(cfg.StabilizationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stabilizer shutting down")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
