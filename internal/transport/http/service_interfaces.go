package http

import (
	"context"
	"io"

	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
	api "github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/api/v1"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// SummaryServiceInterface defines the interface for summary reads
type SummaryServiceInterface interface {
	List(ctx context.Context, filter store.SummaryFilter) ([]domain.DailySummary, error)
	Subjects(ctx context.Context) ([]int, error)
	ExportCSV(ctx context.Context, out io.Writer, filter store.SummaryFilter) (int, error)
}

// HealthServiceInterface defines the interface for health reporting
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) api.HealthResponse
	Version() contracts.VersionInfo
}
