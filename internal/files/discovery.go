package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds metrics files: regular files whose name starts with a
// prefix and ends in one of a set of extensions.
type Discovery struct {
	basePath   string
	prefix     string
	extensions []string
}

// NewDiscovery creates a discovery instance. Relative directories are
// resolved against basePath; extensions are matched case-insensitively and
// must include the leading dot.
func NewDiscovery(basePath, prefix string, extensions []string) *Discovery {
	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = strings.ToLower(ext)
	}
	return &Discovery{basePath: basePath, prefix: prefix, extensions: exts}
}

// Qualifies reports whether name looks like a metrics file. Only the base
// name is inspected.
func (d *Discovery) Qualifies(name string) bool {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, d.prefix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range d.extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// FindMetricsFiles lists the qualifying files in dir, oldest first. Ties on
// modification time are broken by name.
func (d *Discovery) FindMetricsFiles(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !d.Qualifies(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})

	return files, nil
}
