package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
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

var testDay = time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(dir, "store.db")
	cfg.Ingest.WatchDir = filepath.Join(dir, "incoming")
	cfg.Ingest.SettleAttempts = 2
	cfg.Ingest.SettleDelay = time.Millisecond
	cfg.Ingest.Debounce = 30 * time.Millisecond
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "app.log")
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Server.RateLimit.Enabled = false
	return cfg
}

func memoryStore(t *testing.T) store.Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	st, err := store.NewSQLiteStore(context.Background(), ":memory:", config.WriteModeUpsert, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func matchRows() [][]string {
	return [][]string{
		testutil.RigRow(map[string]string{
			domain.ColSampleLatency:     "3.2",
			domain.ColMatchLatency:      "1.1",
			domain.ColTimeCorrectSample: "5",
			domain.ColTimeCorrectMatch:  "2",
		}),
		testutil.RigRow(map[string]string{
			domain.ColSampleLatency:  "1.8",
			domain.ColMatchLatency:   "0",
			domain.ColFalsePosMatch1: "2",
		}),
	}
}

func newTestApp(t *testing.T, cfg *config.Config, st store.Store) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	a, err := New(cfg, st, logger)
	require.NoError(t, err)
	return a
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestApplication_Routes(t *testing.T) {
	a := newTestApp(t, testConfig(t), memoryStore(t))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, `"status":"ok"`},
		{"version", http.MethodGet, "/api/version", http.StatusOK, `"api_version":"v1"`},
		{"summaries empty", http.MethodGet, "/api/summaries", http.StatusOK, `"count":0`},
		{"summaries bad rat", http.MethodGet, "/api/summaries?rat=99", http.StatusBadRequest, `INVALID_PARAMETER`},
		{"subjects empty", http.MethodGet, "/api/subjects", http.StatusOK, `"subjects":[]`},
		{"csv", http.MethodGet, "/api/summaries.csv", http.StatusOK, "Date,RatID,Stage,trial_count"},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound, apperrors.TypeNotFound},
		{"wrong method", http.MethodPost, "/api/health", http.StatusMethodNotAllowed, "Method Not Allowed"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "# HELP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, a.Router, tt.method, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}

	rec := get(t, a.Router, http.MethodGet, "/metrics")
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestApplication_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RPS = 0.001
	cfg.Server.RateLimit.Burst = 1
	a := newTestApp(t, cfg, memoryStore(t))

	assert.Equal(t, http.StatusOK, get(t, a.Router, http.MethodGet, "/api/subjects").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, a.Router, http.MethodGet, "/api/subjects").Code)
}

func TestApplication_RunOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Enabled = false
	cfg.Ingest.Watch = false
	st := memoryStore(t)
	a := newTestApp(t, cfg, st)

	testutil.WriteCSV(t, cfg.Ingest.WatchDir, testutil.MetricsFileName(3, domain.StageMatch, 1, testDay), testutil.RigHeader, matchRows())
	testutil.WriteCSV(t, cfg.Ingest.WatchDir, testutil.MetricsFileName(5, domain.StageMatch, 1, testDay), testutil.RigHeader, matchRows())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	assert.Equal(t, 2, a.Loop.Stats().FilesIngested)
	subjects, err := st.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, subjects)
}

func TestApplication_RunServer(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, memoryStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(ctx, 5*time.Second)
	defer addrCancel()
	addr := a.Addr(addrCtx)
	require.NotEmpty(t, addr)

	require.Eventually(t, func() bool {
		return a.Loop.Stats().State == "watching"
	}, 5*time.Second, 10*time.Millisecond)

	testutil.WriteCSV(t, cfg.Ingest.WatchDir, testutil.MetricsFileName(7, domain.StageMatch, 1, testDay), testutil.RigHeader, matchRows())

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/subjects")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var out struct {
			Subjects []int `json:"subjects"`
		}
		return json.Unmarshal(body, &out) == nil && len(out.Subjects) == 1 && out.Subjects[0] == 7
	}, 5*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
}

type unreachableStore struct {
	store.Store
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestApplication_RunFailsWhenStoreUnreachable(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg, unreachableStore{Store: memoryStore(t)})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestNew_RejectsBadCutoff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Cutoff = "08/01/2023"
	logger, _ := testutil.NewTestLogger()

	_, err := New(cfg, memoryStore(t), logger)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
