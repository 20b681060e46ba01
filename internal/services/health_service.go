package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/storage"
)

// ClientCounter reports connected stream clients. *websocket.Hub implements it.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	repo      storage.Repository
	hub       ClientCounter
	pipeline  *PipelineService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version"`
	Runtime   *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth     `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"
	statusDegraded = "degraded"
)

// NewHealthService creates a health service. Any dependency may be nil and
// is then left out of readiness.
func NewHealthService(version, buildTime string, paths *config.Paths, repo storage.Repository, hub ClientCounter, pipeline *PipelineService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		repo:      repo,
		hub:       hub,
		pipeline:  pipeline,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check")
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck probes each dependency. A missing data file degrades the
// data service but does not make the server unready.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    statusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth),
	}

	if hs.repo != nil {
		status.Services["storage"] = hs.checkStorage(ctx)
	}
	if hs.hub != nil {
		status.Services["websocket"] = ServiceHealth{Status: statusReady}
	}
	if hs.pipeline != nil {
		status.Services["jobs"] = ServiceHealth{Status: statusReady}
	}
	if hs.paths != nil {
		status.Services["data"] = hs.checkData()
	}

	for name, svc := range status.Services {
		if svc.Status == statusNotReady {
			status.Status = statusNotReady
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("service", name),
				slog.String("message", svc.Message))
		}
	}
	return status
}

func (hs *HealthService) checkStorage(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := hs.repo.Recent(ctx); err != nil {
		return ServiceHealth{Status: statusNotReady, Message: err.Error()}
	}
	return ServiceHealth{Status: statusReady}
}

func (hs *HealthService) checkData() ServiceHealth {
	if !config.FileExists(hs.paths.DataDir) {
		return ServiceHealth{Status: statusNotReady, Message: "data directory missing"}
	}
	if hs.paths.DataFile != "" && !config.FileExists(hs.paths.DataFile) {
		return ServiceHealth{Status: statusDegraded, Message: "data file not found"}
	}
	return ServiceHealth{Status: statusReady}
}

// LivenessCheck returns liveness status with runtime statistics.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	stats := infrastructure.ReadRuntimeStats(hs.startTime)
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   &stats,
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]any {
	out := map[string]any{
		"version":      hs.version,
		"build_time":   hs.buildTime,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.hub != nil {
		out["websocket_clients"] = hs.hub.ClientCount()
	}
	if hs.pipeline != nil {
		out["jobs"] = hs.pipeline.QueueStats()
	}
	return out
}
