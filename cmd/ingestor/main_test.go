package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{"defaults", nil, options{}, false},
		{"short forms", []string{"-c", "lab.yaml", "-d", "/data/in"}, options{configFile: "lab.yaml", dir: "/data/in"}, false},
		{"once and no api", []string{"--once", "--no-api"}, options{once: true, noAPI: true}, false},
		{"unknown flag", []string{"--bogus"}, options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, &bytes.Buffer{})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, options{once: true, dir: "/data/in"}.apply(cfg))
	assert.Equal(t, "/data/in", cfg.Ingest.WatchDir)
	assert.True(t, cfg.Ingest.ScanOnStart)
	assert.False(t, cfg.Ingest.Watch)
	assert.False(t, cfg.Server.Enabled)

	cfg = config.Default()
	require.NoError(t, options{noAPI: true}.apply(cfg))
	assert.True(t, cfg.Ingest.Watch)
	assert.False(t, cfg.Server.Enabled)
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), contracts.Version)
}

func TestRun_Help(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"--help"}, &bytes.Buffer{}, &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "--no-api")
}

func TestRun_Once(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db", "store.db")
	watchDir := filepath.Join(dir, "incoming")

	t.Setenv("WDP_STORE_DRIVER", config.DriverSQLite)
	t.Setenv("WDP_STORE_SQLITE_PATH", dbPath)
	t.Setenv("WDP_LOGGING_OUTPUT", "console")
	t.Setenv("WDP_LOGGING_FILE_PATH", filepath.Join(dir, "logs", "ingestor.log"))
	t.Setenv("WDP_INGEST_SETTLE_DELAY", "1ms")

	day := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.MkdirAll(watchDir, 0755))
	testutil.WriteCSV(t, watchDir, testutil.MetricsFileName(6, domain.StageSample, 1, day), testutil.RigHeader, [][]string{
		testutil.RigRow(map[string]string{domain.ColSampleLatency: "2.5", domain.ColTimeCorrectSample: "4"}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, []string{"--once", "--dir", watchDir}, &bytes.Buffer{}, &bytes.Buffer{}))

	logger, _ := testutil.NewTestLogger()
	st, err := store.NewSQLiteStore(context.Background(), dbPath, config.WriteModeUpsert, logger)
	require.NoError(t, err)
	defer st.Close(context.Background())

	subjects, err := st.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{6}, subjects)
}
