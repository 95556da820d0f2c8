// Package sandbox limits which files suites may load as subjects.
package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Guard checks subject file reads against allowed and denied roots and a
// size limit.
type Guard struct {
	allowed []string
	denied  []string
	maxSize int64 // bytes, 0 means unlimited
}

// Config holds the guard configuration.
type Config struct {
	AllowedPaths []string
	DeniedPaths  []string
	MaxFileSize  string // e.g. "10MB", "500KB"
}

// New creates a Guard. Paths are resolved to absolute paths.
func New(cfg Config) (*Guard, error) {
	g := &Guard{}

	var err error
	if g.allowed, err = absAll(cfg.AllowedPaths); err != nil {
		return nil, fmt.Errorf("sandbox: allowed path: %w", err)
	}
	if g.denied, err = absAll(cfg.DeniedPaths); err != nil {
		return nil, fmt.Errorf("sandbox: denied path: %w", err)
	}

	if cfg.MaxFileSize != "" {
		size, err := ParseSize(cfg.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("sandbox: parse max_file_size %q: %w", cfg.MaxFileSize, err)
		}
		g.maxSize = size
	}
	return g, nil
}

func absAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", p, err)
		}
		out = append(out, resolveLinks(abs))
	}
	return out, nil
}

// resolveLinks follows symlinks when the path exists.
func resolveLinks(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// CheckPath reports whether path may be read. Denied roots win over
// allowed ones; with no allowed roots every non-denied path is allowed.
func (g *Guard) CheckPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("sandbox: resolve path %q: %w", path, err)
	}
	abs = resolveLinks(abs)

	for _, d := range g.denied {
		if under(abs, d) {
			return fmt.Errorf("sandbox: path %q is under denied path %q", abs, d)
		}
	}
	if len(g.allowed) == 0 {
		return nil
	}
	for _, a := range g.allowed {
		if under(abs, a) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: path %q is not under any allowed path %v", abs, g.allowed)
}

// CheckFileSize reports whether size is within the limit.
func (g *Guard) CheckFileSize(size int64) error {
	if g.maxSize > 0 && size > g.maxSize {
		return fmt.Errorf("sandbox: file size %d bytes exceeds maximum %s", size, FormatSize(g.maxSize))
	}
	return nil
}

// ReadFile reads path after checking it against the guard. Its signature
// matches os.ReadFile.
func (g *Guard) ReadFile(path string) ([]byte, error) {
	if err := g.CheckPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := g.CheckFileSize(info.Size()); err != nil {
		return nil, err
	}

	var r io.Reader = f
	if g.maxSize > 0 {
		// The file may grow after Stat.
		r = io.LimitReader(f, g.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := g.CheckFileSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// ParseSize parses a human-readable size such as "10MB" into bytes.
// Supported suffixes: B, KB, MB, GB (case-insensitive).
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	units := []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid size %q", s)
			}
			return int64(n * float64(u.mult)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}

// FormatSize renders bytes with the largest fitting unit.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
