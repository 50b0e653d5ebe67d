package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/samobrien878/Williams-Data-Pipline/internal/ingestion"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
	api "github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/api/v1"
)

// DefaultPingTimeout bounds the store ping of a health check.
const DefaultPingTimeout = 2 * time.Second

// Pinger is the part of the store a health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LoopStats reports the ingestion loop's counters.
type LoopStats interface {
	Stats() ingestion.Stats
}

// HubStats reports WebSocket hub counters.
type HubStats interface {
	GetHubMetrics() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	store       Pinger
	loop        LoopStats
	hub         HubStats
	pingTimeout time.Duration
	startTime   time.Time
	logger      *slog.Logger
}

// NewHealthService creates a health service. loop and hub may be nil when
// the process runs without them.
func NewHealthService(store Pinger, loop LoopStats, hub HubStats, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:       store,
		loop:        loop,
		hub:         hub,
		pingTimeout: DefaultPingTimeout,
		startTime:   time.Now(),
		logger:      logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck reports the health of the store, the ingestion loop and the
// hub. The store being unreachable makes the whole service down; a stopped
// loop only degrades it, since the read API still works.
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Status:     api.StatusOK,
		Timestamp:  time.Now().UTC(),
		Version:    contracts.Version,
		Uptime:     time.Since(hs.startTime).Seconds(),
		Components: make(map[string]api.ComponentHealth),
	}

	resp.Components["store"] = hs.checkStore(ctx)
	if hs.loop != nil {
		resp.Components["ingestion"] = hs.checkLoop()
	}
	if hs.hub != nil {
		resp.Components["websocket"] = api.ComponentHealth{
			Status:  api.StatusOK,
			Details: hs.hub.GetHubMetrics(),
		}
	}

	for _, c := range resp.Components {
		switch {
		case c.Status == api.StatusDown:
			resp.Status = api.StatusDown
		case c.Status == api.StatusDegraded && resp.Status == api.StatusOK:
			resp.Status = api.StatusDegraded
		}
	}

	if resp.Status != api.StatusOK {
		hs.logger.WarnContext(ctx, "health check not ok", slog.String("status", resp.Status))
	}
	return resp
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) checkStore(ctx context.Context) api.ComponentHealth {
	if hs.store == nil {
		return api.ComponentHealth{Status: api.StatusDown, Message: "store not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, hs.pingTimeout)
	defer cancel()

	start := time.Now()
	if err := hs.store.Ping(ctx); err != nil {
		hs.logger.ErrorContext(ctx, "store ping failed", slog.String("error", err.Error()))
		return api.ComponentHealth{Status: api.StatusDown, Message: ErrStoreUnavailable.Error()}
	}
	return api.ComponentHealth{
		Status:  api.StatusOK,
		Details: map[string]interface{}{"ping_ms": time.Since(start).Milliseconds()},
	}
}

func (hs *HealthService) checkLoop() api.ComponentHealth {
	stats := hs.loop.Stats()
	details := map[string]interface{}{
		"state":          string(stats.State),
		"files_ingested": stats.FilesIngested,
		"files_skipped":  stats.FilesSkipped,
		"write_errors":   stats.WriteErrors,
	}
	if stats.LastFile != "" {
		details["last_file"] = stats.LastFile
		details["last_ingested_at"] = stats.LastIngestedAt
	}

	status := api.StatusOK
	message := ""
	if stats.State == ingestion.StateStopped {
		status = api.StatusDegraded
		message = "ingestion loop is not running"
	}
	return api.ComponentHealth{Status: status, Message: message, Details: details}
}
