package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// HealthChecker runs a set of registered checks on an interval and serves
// /healthz, /readyz and /livez for the worker binaries (cmd/stabilizer,
// cmd/replayworker). Trimmed from the API server's health surface: no
// external-API check (workers call nothing external) and no HTTP request
// serving beyond the three probe endpoints.
type HealthChecker struct {
	logger    zerolog.Logger
	config    HealthConfig
	checks    map[string]HealthCheck
	mutex     sync.RWMutex
	lastCheck time.Time
	status    OverallStatus
}

// HealthConfig defines health check configuration
type HealthConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	CheckInterval  time.Duration
	CheckTimeout   time.Duration

	HTTPEnabled bool
	HTTPAddr    string
	HTTPPath    string
}

// HealthCheck represents a single health check
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthStatus
	Critical() bool
	Description() string
}

// HealthStatus represents the status of a health check
type HealthStatus struct {
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Error       string                 `json:"error,omitempty"`
}

// Status represents health status values
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusUnknown   Status = "unknown"
)

// OverallStatus represents the overall system health
type OverallStatus struct {
	Status      Status                  `json:"status"`
	Timestamp   time.Time               `json:"timestamp"`
	ServiceName string                  `json:"service_name"`
	Version     string                  `json:"version"`
	Environment string                  `json:"environment"`
	Checks      map[string]HealthStatus `json:"checks"`
	Summary     map[string]int          `json:"summary"`
}

// Pinger is the narrow slice of *rmongo.Client DatabaseHealthCheck needs,
// kept as an interface so tests can substitute a fake.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseHealthCheck pings the Mongo client backing the replay/stabilize
// stores (§5: workers must not run against a dead connection).
type DatabaseHealthCheck struct {
	name        string
	description string
	critical    bool
	db          Pinger
}

func NewDatabaseHealthCheck(name, description string, critical bool, db Pinger) *DatabaseHealthCheck {
	return &DatabaseHealthCheck{name: name, description: description, critical: critical, db: db}
}

func (d *DatabaseHealthCheck) Name() string        { return d.name }
func (d *DatabaseHealthCheck) Description() string { return d.description }
func (d *DatabaseHealthCheck) Critical() bool      { return d.critical }

func (d *DatabaseHealthCheck) Check(ctx context.Context) HealthStatus {
	start := time.Now()
	if err := d.db.Ping(ctx); err != nil {
		return HealthStatus{
			Status:      StatusUnhealthy,
			Message:     "database ping failed",
			Error:       err.Error(),
			LastChecked: time.Now(),
			Duration:    time.Since(start),
		}
	}
	return HealthStatus{
		Status:      StatusHealthy,
		Message:     "database connection is healthy",
		LastChecked: time.Now(),
		Duration:    time.Since(start),
	}
}

// SystemResourcesHealthCheck is a conservative placeholder resource check
// (real CPU/mem/disk sampling needs an OS-specific sampling library this
// module doesn't import). It always reports healthy; kept so both workers
// still surface a "resources" line alongside the database check, not
// because the thresholds are load-bearing.
type SystemResourcesHealthCheck struct {
	name        string
	description string
	critical    bool
}

func NewSystemResourcesHealthCheck(name, description string, critical bool) *SystemResourcesHealthCheck {
	return &SystemResourcesHealthCheck{name: name, description: description, critical: critical}
}

func (s *SystemResourcesHealthCheck) Name() string        { return s.name }
func (s *SystemResourcesHealthCheck) Description() string { return s.description }
func (s *SystemResourcesHealthCheck) Critical() bool      { return s.critical }

func (s *SystemResourcesHealthCheck) Check(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:      StatusHealthy,
		Message:     "no resource constraints configured",
		LastChecked: time.Now(),
	}
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger zerolog.Logger, config HealthConfig) *HealthChecker {
	hc := &HealthChecker{
		logger: logger,
		config: config,
		checks: make(map[string]HealthCheck),
		status: OverallStatus{
			Status:      StatusUnknown,
			Timestamp:   time.Now(),
			ServiceName: config.ServiceName,
			Version:     config.ServiceVersion,
			Environment: config.Environment,
			Checks:      make(map[string]HealthStatus),
			Summary:     make(map[string]int),
		},
	}

	go hc.startHealthChecking()

	if config.HTTPEnabled {
		go hc.startHTTPEndpoint()
	}

	return hc
}

// RegisterCheck registers a new health check
func (hc *HealthChecker) RegisterCheck(check HealthCheck) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	hc.checks[check.Name()] = check
	hc.logger.Info().
		Str("check_name", check.Name()).
		Bool("critical", check.Critical()).
		Str("description", check.Description()).
		Msg("health check registered")
}

// GetStatus returns the current overall health status
func (hc *HealthChecker) GetStatus() OverallStatus {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()

	return hc.status
}

// RunChecks manually runs all health checks
func (hc *HealthChecker) RunChecks(ctx context.Context) OverallStatus {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	return hc.runChecksInternal(ctx)
}

func (hc *HealthChecker) runChecksInternal(ctx context.Context) OverallStatus {
	checkCtx, cancel := context.WithTimeout(ctx, hc.config.CheckTimeout)
	defer cancel()

	hc.status.Timestamp = time.Now()
	hc.status.Checks = make(map[string]HealthStatus)
	hc.status.Summary = map[string]int{
		"healthy":   0,
		"unhealthy": 0,
		"degraded":  0,
		"unknown":   0,
	}

	overallStatus := StatusHealthy

	for name, check := range hc.checks {
		status := check.Check(checkCtx)
		hc.status.Checks[name] = status
		hc.status.Summary[string(status.Status)]++

		if status.Status == StatusUnhealthy && check.Critical() {
			overallStatus = StatusUnhealthy
		} else if status.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		} else if status.Status == StatusUnhealthy && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	hc.status.Status = overallStatus
	hc.lastCheck = time.Now()

	hc.logger.Info().
		Str("overall_status", string(overallStatus)).
		Int("healthy_checks", hc.status.Summary["healthy"]).
		Int("unhealthy_checks", hc.status.Summary["unhealthy"]).
		Int("degraded_checks", hc.status.Summary["degraded"]).
		Msg("health check completed")

	return hc.status
}

func (hc *HealthChecker) startHealthChecking() {
	ticker := time.NewTicker(hc.config.CheckInterval)
	defer ticker.Stop()

	ctx := context.Background()
	hc.RunChecks(ctx)

	for range ticker.C {
		hc.RunChecks(ctx)
	}
}

// startHTTPEndpoint serves the three probe endpoints a worker needs under
// a k8s Deployment: a detailed /healthz, plus /readyz and /livez.
func (hc *HealthChecker) startHTTPEndpoint() {
	r := chi.NewRouter()

	r.Get(hc.config.HTTPPath, hc.handleHealthCheck)
	r.Get("/readyz", hc.handleReadiness)
	r.Get("/livez", hc.handleLiveness)

	server := &http.Server{
		Addr:              hc.config.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	hc.logger.Info().
		Str("addr", hc.config.HTTPAddr).
		Str("path", hc.config.HTTPPath).
		Msg("starting health check HTTP endpoint")

	if err := server.ListenAndServe(); err != nil {
		hc.logger.Error().Err(err).Msg("health check HTTP server failed")
	}
}

func (hc *HealthChecker) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := hc.GetStatus()

	var httpStatus int
	switch status.Status {
	case StatusUnhealthy:
		httpStatus = http.StatusServiceUnavailable
	case StatusDegraded, StatusHealthy:
		httpStatus = http.StatusOK
	default:
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(status); err != nil {
		hc.logger.Error().Err(err).Msg("failed to encode health status")
	}
}

func (hc *HealthChecker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := hc.GetStatus()

	if status.Status == StatusHealthy || status.Status == StatusDegraded {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			hc.logger.Error().Err(err).Msg("failed to write readiness response")
		}
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("NOT READY")); err != nil {
			hc.logger.Error().Err(err).Msg("failed to write readiness response")
		}
	}
}

func (hc *HealthChecker) handleLiveness(w http.ResponseWriter, r *http.Request) {
	status := hc.GetStatus()

	criticalFailure := false
	for name, check := range hc.checks {
		if check.Critical() {
			if checkStatus, exists := status.Checks[name]; exists {
				if checkStatus.Status == StatusUnhealthy {
					criticalFailure = true
					break
				}
			}
		}
	}

	if criticalFailure {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("NOT ALIVE")); err != nil {
			hc.logger.Error().Err(err).Msg("failed to write liveness response")
		}
	} else {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			hc.logger.Error().Err(err).Msg("failed to write liveness response")
		}
	}
}

// DefaultHealthConfig returns the default worker health check configuration,
// listening on addr (e.g. config.Config.HealthAddr).
func DefaultHealthConfig(serviceName, addr string) HealthConfig {
	return HealthConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "production",
		CheckInterval:  time.Second * 30,
		CheckTimeout:   time.Second * 10,

		HTTPEnabled: true,
		HTTPAddr:    addr,
		HTTPPath:    "/healthz",
	}
}
