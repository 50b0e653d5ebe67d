package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// MockSummaryService is a mock implementation of SummaryServiceInterface
type MockSummaryService struct {
	mock.Mock
}

func (m *MockSummaryService) List(ctx context.Context, filter store.SummaryFilter) ([]domain.DailySummary, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailySummary), args.Error(1)
}

func (m *MockSummaryService) Subjects(ctx context.Context) ([]int, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockSummaryService) ExportCSV(ctx context.Context, out io.Writer, filter store.SummaryFilter) (int, error) {
	args := m.Called(filter)
	if body := args.String(2); body != "" {
		_, _ = io.WriteString(out, body)
	}
	return args.Int(0), args.Error(1)
}

func newSummaryRouter(t *testing.T, svc *MockSummaryService) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	h := NewSummaryHandler(svc, 1, 19, logger, apierrors.NewErrorHandler(logger, false))
	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSummaryHandler_List(t *testing.T) {
	row := domain.DailySummary{
		Date:            time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC),
		RatID:           3,
		Stage:           domain.StageMatch,
		TrialCount:      3,
		Averages:        map[string]float64{domain.ColSampleLatency: 2},
		TrialsCompleted: 2,
	}

	tests := []struct {
		name       string
		query      string
		filter     store.SummaryFilter
		rows       []domain.DailySummary
		serviceErr error
		wantStatus int
		wantCount  float64
	}{
		{
			name:       "no filter",
			filter:     store.SummaryFilter{},
			rows:       []domain.DailySummary{row},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "rat stage and exclude",
			query:      "?rat=3,4&stage=2&exclude_stage0=true",
			filter:     store.SummaryFilter{RatIDs: []int{3, 4}, Stages: []domain.Stage{domain.StageMatch}, ExcludeStageZero: true},
			rows:       []domain.DailySummary{},
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{
			name:       "store unavailable",
			filter:     store.SummaryFilter{},
			serviceErr: apierrors.NewStorageError("list summaries failed", errors.New("refused")),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSummaryService)
			svc.On("List", tt.filter).Return(tt.rows, tt.serviceErr)

			rec := httptest.NewRecorder()
			newSummaryRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			if tt.serviceErr == nil {
				assert.Equal(t, tt.wantCount, body["count"])
				assert.NotNil(t, body["summaries"])
			} else {
				assert.Equal(t, apierrors.TypeStorage, body["type"])
				assert.NotContains(t, rec.Body.String(), "refused")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSummaryHandler_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"rat out of range", "?rat=25"},
		{"rat not a number", "?rat=abc"},
		{"stage out of range", "?stage=4"},
		{"bad bool", "?exclude_stage0=yes-please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSummaryService)
			router := newSummaryRouter(t, svc)

			for _, path := range []string{"/api/summaries", "/api/summaries.csv"} {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path+tt.query, nil))

				assert.Equal(t, http.StatusBadRequest, rec.Code, path)
				assert.Equal(t, "INVALID_PARAMETER", decode(t, rec)["error_code"], path)
			}
			svc.AssertNotCalled(t, "List", mock.Anything)
			svc.AssertNotCalled(t, "ExportCSV", mock.Anything)
		})
	}
}

func TestSummaryHandler_ExportCSV(t *testing.T) {
	svc := new(MockSummaryService)
	filter := store.SummaryFilter{RatIDs: []int{3}}
	svc.On("ExportCSV", filter).Return(1, nil, "Date,RatID\n2023-03-15,3\n")

	rec := httptest.NewRecorder()
	newSummaryRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries.csv?rat=3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), CSVFileName)
	assert.Equal(t, "Date,RatID\n2023-03-15,3\n", rec.Body.String())
	svc.AssertExpectations(t)
}

func TestSummaryHandler_ExportCSVFailureBeforeOutput(t *testing.T) {
	svc := new(MockSummaryService)
	svc.On("ExportCSV", store.SummaryFilter{}).Return(0, apierrors.NewStorageError("list summaries failed", nil), "")

	rec := httptest.NewRecorder()
	newSummaryRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries.csv", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestSummaryHandler_Subjects(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := new(MockSummaryService)
		svc.On("Subjects").Return([]int{3, 4, 7}, nil)

		rec := httptest.NewRecorder()
		newSummaryRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subjects", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"subjects":[3,4,7]}`, rec.Body.String())
	})

	t.Run("store error", func(t *testing.T) {
		svc := new(MockSummaryService)
		svc.On("Subjects").Return(nil, apierrors.NewStorageError("list subjects failed", nil))

		rec := httptest.NewRecorder()
		newSummaryRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subjects", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
