// Package store persists trial records and daily summaries.
//
// Two backends implement Store: MongoDB for the lab deployment and an
// embedded SQLite document store for local runs and tests. Both support the
// insert write mode (every ingestion appends) and the upsert mode, where raw
// trials are keyed by (RatID, Date, Session, Trial) and summary documents by
// source file, so re-ingesting a file leaves the store unchanged.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// Store is the document store behind the ingestion pipeline and the read API.
type Store interface {
	// WriteTrials stores raw trial records and returns how many were written.
	WriteTrials(ctx context.Context, records []domain.TrialRecord) (int, error)
	// WriteSummary stores one file's daily summaries as a single document.
	WriteSummary(ctx context.Context, doc domain.SummaryDocument) error
	// ListSummaries returns every stored summary row matching filter, sorted
	// by date, subject and stage.
	ListSummaries(ctx context.Context, filter SummaryFilter) ([]domain.DailySummary, error)
	// Subjects returns the distinct subject ids with at least one summary.
	Subjects(ctx context.Context) ([]int, error)
	// CountTrials returns the number of stored raw trial documents.
	CountTrials(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// SummaryFilter narrows ListSummaries. Zero values match everything.
type SummaryFilter struct {
	RatIDs           []int
	Stages           []domain.Stage
	ExcludeStageZero bool
}

// Match reports whether s passes the filter.
func (f SummaryFilter) Match(s domain.DailySummary) bool {
	if f.ExcludeStageZero && s.Stage == domain.StageHeadHold {
		return false
	}
	if len(f.RatIDs) > 0 && !lo.Contains(f.RatIDs, s.RatID) {
		return false
	}
	if len(f.Stages) > 0 && !lo.Contains(f.Stages, s.Stage) {
		return false
	}
	return true
}

// New opens the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg, logger)
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, cfg.WriteMode, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}

// collectSummaries filters and orders summary rows gathered from documents.
func collectSummaries(docs []domain.SummaryDocument, filter SummaryFilter) []domain.DailySummary {
	rows := lo.Filter(lo.FlatMap(docs, func(d domain.SummaryDocument, _ int) []domain.DailySummary {
		return d.DailySummary
	}), func(s domain.DailySummary, _ int) bool {
		return filter.Match(s)
	})
	sortSummaries(rows)
	return rows
}

func sortSummaries(rows []domain.DailySummary) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.RatID != b.RatID {
			return a.RatID < b.RatID
		}
		return a.Stage < b.Stage
	})
}

func subjectsOf(rows []domain.DailySummary) []int {
	ids := lo.Uniq(lo.Map(rows, func(s domain.DailySummary, _ int) int { return s.RatID }))
	sort.Ints(ids)
	return ids
}
