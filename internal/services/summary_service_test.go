package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

var day1 = time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)

func summary(date time.Time, rat int, stage domain.Stage) domain.DailySummary {
	return domain.DailySummary{
		Date:            date,
		RatID:           rat,
		Stage:           stage,
		TrialCount:      2,
		Averages:        map[string]float64{domain.ColSampleLatency: 1.5},
		TrialsCompleted: 2,
	}
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	st, err := store.NewSQLiteStore(context.Background(), ":memory:", config.WriteModeUpsert, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	docs := []domain.SummaryDocument{
		{SourceFile: "a.csv", IngestedAt: time.Now().UTC(), DailySummary: []domain.DailySummary{summary(day1, 3, domain.StageMatch)}},
		{SourceFile: "b.csv", IngestedAt: time.Now().UTC(), DailySummary: []domain.DailySummary{summary(day1, 4, domain.StageHeadHold)}},
		{SourceFile: "c.csv", IngestedAt: time.Now().UTC(), DailySummary: []domain.DailySummary{summary(day1.AddDate(0, 0, 1), 3, domain.StageSample)}},
	}
	for _, d := range docs {
		require.NoError(t, st.WriteSummary(context.Background(), d))
	}
	return st
}

type brokenStore struct {
	store.Store
	err error
}

func (b brokenStore) ListSummaries(context.Context, store.SummaryFilter) ([]domain.DailySummary, error) {
	return nil, b.err
}

func (b brokenStore) Subjects(context.Context) ([]int, error) { return nil, b.err }

func (b brokenStore) Ping(context.Context) error { return b.err }

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name    string
		rats    []int
		stages  []int
		exclude bool
		want    store.SummaryFilter
		wantErr bool
	}{
		{"empty", nil, nil, false, store.SummaryFilter{}, false},
		{"dedup", []int{3, 3, 4}, []int{2, 2}, true, store.SummaryFilter{RatIDs: []int{3, 4}, Stages: []domain.Stage{domain.StageMatch}, ExcludeStageZero: true}, false},
		{"bad stage", nil, []int{4}, false, store.SummaryFilter{}, true},
		{"negative stage", nil, []int{-1}, false, store.SummaryFilter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFilter(tt.rats, tt.stages, tt.exclude)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				assert.ErrorIs(t, err, ErrInvalidStage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummaryService_List(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	svc := NewSummaryService(seededStore(t), logger)
	ctx := context.Background()

	all, err := svc.List(ctx, store.SummaryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{3, 4, 3}, []int{all[0].RatID, all[1].RatID, all[2].RatID})

	noHeadHold, err := svc.List(ctx, store.SummaryFilter{ExcludeStageZero: true})
	require.NoError(t, err)
	assert.Len(t, noHeadHold, 2)

	rat3Match, err := svc.List(ctx, store.SummaryFilter{RatIDs: []int{3}, Stages: []domain.Stage{domain.StageMatch}})
	require.NoError(t, err)
	require.Len(t, rat3Match, 1)
	assert.Equal(t, domain.StageMatch, rat3Match[0].Stage)

	none, err := svc.List(ctx, store.SummaryFilter{RatIDs: []int{19}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSummaryService_Subjects(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	svc := NewSummaryService(seededStore(t), logger)

	ids, err := svc.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, ids)
}

func TestSummaryService_StoreErrors(t *testing.T) {
	logger, logs := testutil.NewTestLogger()
	cause := errors.New("connection refused")
	svc := NewSummaryService(brokenStore{err: cause}, logger)

	_, err := svc.List(context.Background(), store.SummaryFilter{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.ErrorIs(t, err, cause)

	_, err = svc.Subjects(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	var buf bytes.Buffer
	n, err := svc.ExportCSV(context.Background(), &buf, store.SummaryFilter{})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())

	assert.True(t, logs.ContainsMessage("list summaries failed"))
}

func TestSummaryService_ExportCSV(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	svc := NewSummaryService(seededStore(t), logger)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(context.Background(), &buf, store.SummaryFilter{RatIDs: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), []byte("\xEF\xBB\xBF")))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Date", "RatID", "Stage", "trial_count"}, records[0][:4])
	assert.Equal(t, "2023-03-15", records[1][0])
	assert.Equal(t, "3", records[1][1])
}
