package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the directories the ingestor reads from and writes to
type Paths struct {
	ExecutableDir string
	WorkingDir    string
	WatchDir      string
	LogsDir       string
	SQLiteFile    string
}

// GetPaths returns the executable and working directories. Relative config
// paths are resolved against the working directory.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %v", err)
	}

	return &Paths{
		ExecutableDir: filepath.Dir(exe),
		WorkingDir:    wd,
	}, nil
}

// Resolve makes p absolute relative to the working directory.
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.WorkingDir, path)
}

// EnsureDirectories creates the directories the ingestor writes into
func (p *Paths) EnsureDirectories() error {
	directories := []string{p.WatchDir, p.LogsDir}
	if p.SQLiteFile != "" {
		directories = append(directories, filepath.Dir(p.SQLiteFile))
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution logs resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Resolved paths",
		slog.String("executable_dir", p.ExecutableDir),
		slog.String("working_dir", p.WorkingDir),
		slog.String("watch_dir", p.WatchDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("sqlite_file", p.SQLiteFile))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// resolvePaths rewrites relative paths in c to absolute ones
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}
	c.Ingest.WatchDir = paths.Resolve(c.Ingest.WatchDir)
	c.Store.SQLitePath = paths.Resolve(c.Store.SQLitePath)
	c.Logging.FilePath = paths.Resolve(c.Logging.FilePath)
	return nil
}

// Paths returns the resolved paths for this configuration.
func (c *Config) Paths() (*Paths, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	paths.WatchDir = paths.Resolve(c.Ingest.WatchDir)
	if c.Logging.FilePath != "" {
		paths.LogsDir = filepath.Dir(paths.Resolve(c.Logging.FilePath))
	}
	if c.Store.Driver == DriverSQLite {
		paths.SQLiteFile = paths.Resolve(c.Store.SQLitePath)
	}
	return paths, nil
}
