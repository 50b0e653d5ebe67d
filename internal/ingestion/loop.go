package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/internal/files"
	"github.com/samobrien878/Williams-Data-Pipline/internal/infrastructure"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/events"
)

// State is the ingestion loop's lifecycle position.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateWatching State = "watching"
	StateStopped  State = "stopped"
)

// Stats counts what the loop has done since it started.
type Stats struct {
	State          State     `json:"state"`
	FilesIngested  int       `json:"files_ingested"`
	FilesSkipped   int       `json:"files_skipped"`
	WriteErrors    int       `json:"write_errors"`
	LastFile       string    `json:"last_file,omitempty"`
	LastIngestedAt time.Time `json:"last_ingested_at"`
}

// Loop runs the startup scan and then feeds watched files to the pipeline
// from a single goroutine, so files are processed one at a time.
type Loop struct {
	pipeline  *Pipeline
	discovery *files.Discovery
	dir       string
	debounce  time.Duration
	scan      bool
	watch     bool

	mu       sync.RWMutex
	stats    Stats
	once     bool
	ingested map[string]struct{}

	logger *slog.Logger
}

// NewLoop creates a loop over cfg.WatchDir. Relative directories resolve
// against basePath.
func NewLoop(pipeline *Pipeline, cfg config.IngestConfig, basePath string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	dir := cfg.WatchDir
	if !filepath.IsAbs(dir) && basePath != "" {
		dir = filepath.Join(basePath, dir)
	}
	return &Loop{
		pipeline:  pipeline,
		discovery: files.NewDiscovery(basePath, cfg.Prefix, cfg.Extensions),
		dir:       dir,
		debounce:  cfg.Debounce,
		scan:      cfg.ScanOnStart,
		watch:     cfg.Watch,
		stats:     Stats{State: StateIdle},
		ingested:  make(map[string]struct{}),
		logger:    infrastructure.WithComponent(logger, "ingestion.loop"),
	}
}

// SetIngestOnce makes the loop ignore a path it has already ingested, so a
// rewritten file is not stored a second time. Used with insert write mode,
// where re-ingesting appends duplicates instead of replacing.
func (l *Loop) SetIngestOnce(once bool) {
	l.mu.Lock()
	l.once = once
	l.mu.Unlock()
}

// Dir returns the directory being ingested.
func (l *Loop) Dir() string { return l.dir }

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return l.Stats().State
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.stats.State = s
	l.mu.Unlock()

	l.logger.Info("ingestion state changed", slog.String("state", string(s)))
	l.pipeline.notify(context.Background(), events.MessageTypeLoopState, events.LoopState{State: string(s)})
}

// Run scans and then watches until ctx is cancelled. Write failures are
// logged and counted; the loop moves on to the next file. Run returns nil
// on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)

	if l.scan {
		if _, err := l.Scan(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	if !l.watch {
		return nil
	}

	watcher, err := files.NewWatcher(l.dir, l.discovery, l.debounce, l.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	l.setState(StateWatching)
	for path := range watcher.Files() {
		if err := l.process(ctx, path); err != nil && ctx.Err() != nil {
			break
		}
	}
	return nil
}

// Scan processes every qualifying file already in the directory, oldest
// first, and returns how many were processed.
func (l *Loop) Scan(ctx context.Context) (int, error) {
	l.setState(StateScanning)

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return 0, err
	}
	found, err := l.discovery.FindMetricsFiles(l.dir)
	if err != nil {
		return 0, err
	}
	l.logger.Info("startup scan", slog.String("dir", l.dir), slog.Int("files", len(found)))

	processed := 0
	for _, f := range found {
		if err := l.process(ctx, f.Path); err != nil && ctx.Err() != nil {
			return processed, ctx.Err()
		}
		processed++
	}
	return processed, nil
}

func (l *Loop) process(ctx context.Context, path string) error {
	l.mu.RLock()
	_, seen := l.ingested[path]
	skip := l.once && seen
	l.mu.RUnlock()
	if skip {
		l.logger.InfoContext(ctx, "file already ingested", slog.String("path", path))
		return nil
	}

	result, err := l.pipeline.ProcessFile(ctx, path)

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.stats.WriteErrors++
		}
	case result.Skipped:
		l.stats.FilesSkipped++
	default:
		l.stats.FilesIngested++
		l.ingested[path] = struct{}{}
		l.stats.LastFile = result.SourceFile
		l.stats.LastIngestedAt = time.Now().UTC()
	}
	return err
}
