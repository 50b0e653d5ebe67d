package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/exporter"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// SummaryService reads daily summaries from the store.
type SummaryService struct {
	store  store.Store
	tracer trace.Tracer
	logger *slog.Logger
}

// NewSummaryService creates a summary service over st.
func NewSummaryService(st store.Store, logger *slog.Logger) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{
		store:  st,
		tracer: otel.Tracer(infrastructure.InstrumentationName),
		logger: logger.With(slog.String("component", "summary_service")),
	}
}

// NewFilter builds a store filter from raw query values. Stages outside
// 0..3 are rejected.
func NewFilter(ratIDs, stages []int, excludeStageZero bool) (store.SummaryFilter, error) {
	filter := store.SummaryFilter{RatIDs: ratIDs, ExcludeStageZero: excludeStageZero}
	for _, s := range stages {
		stage := domain.Stage(s)
		if !stage.Valid() {
			return store.SummaryFilter{}, apperrors.NewAppValidationError(
				fmt.Sprintf("stage %d is outside 0..3", s), ErrInvalidStage)
		}
		filter.Stages = append(filter.Stages, stage)
	}
	if len(filter.RatIDs) > 0 {
		filter.RatIDs = lo.Uniq(filter.RatIDs)
	}
	if len(filter.Stages) > 0 {
		filter.Stages = lo.Uniq(filter.Stages)
	}
	return filter, nil
}

// List returns the summaries matching filter, ordered by date, subject and
// stage. An empty result is not an error.
func (s *SummaryService) List(ctx context.Context, filter store.SummaryFilter) ([]domain.DailySummary, error) {
	ctx, span := s.tracer.Start(ctx, "summaries.list",
		trace.WithAttributes(
			attribute.IntSlice("rat_ids", filter.RatIDs),
			attribute.Bool("exclude_stage0", filter.ExcludeStageZero),
		))
	defer span.End()

	rows, err := s.store.ListSummaries(ctx, filter)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "list summaries failed", slog.String("error", err.Error()))
		return nil, storageError("list summaries", err)
	}
	if rows == nil {
		rows = []domain.DailySummary{}
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	s.logger.DebugContext(ctx, "summaries listed", slog.Int("rows", len(rows)))
	return rows, nil
}

// Subjects returns the ids of all subjects with stored summaries.
func (s *SummaryService) Subjects(ctx context.Context) ([]int, error) {
	ctx, span := s.tracer.Start(ctx, "summaries.subjects")
	defer span.End()

	ids, err := s.store.Subjects(ctx)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "list subjects failed", slog.String("error", err.Error()))
		return nil, storageError("list subjects", err)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

// ExportCSV writes the summaries matching filter to out in the CSV layout
// the analysis notebooks read. It returns the number of rows written.
func (s *SummaryService) ExportCSV(ctx context.Context, out io.Writer, filter store.SummaryFilter) (int, error) {
	rows, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := exporter.WriteSummaries(out, rows); err != nil {
		return 0, fmt.Errorf("write summaries csv: %w", err)
	}
	return len(rows), nil
}

func storageError(op string, err error) error {
	if apperrors.IsType(err, apperrors.ErrTypeStorage) {
		return err
	}
	return apperrors.NewStorageError(op+" failed", err)
}
