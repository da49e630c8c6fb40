package storage

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/models"
)

// DefaultInclude selects Markdown notes anywhere under the root.
var DefaultInclude = []string{"**/*.md"}

// FS implements Provider backed by the local file system.
type FS struct {
	root    string // absolute path to corpus directory
	include []string
	exclude []string
	logger  *slog.Logger
}

// FSOption configures an FS.
type FSOption func(*FS)

// WithInclude sets the doublestar patterns a file must match to be listed.
func WithInclude(patterns ...string) FSOption {
	return func(f *FS) {
		if len(patterns) > 0 {
			f.include = patterns
		}
	}
}

// WithExclude sets doublestar patterns that drop otherwise included files.
func WithExclude(patterns ...string) FSOption {
	return func(f *FS) {
		f.exclude = patterns
	}
}

// WithLogger sets the logger for skipped paths.
func WithLogger(l *slog.Logger) FSOption {
	return func(f *FS) {
		f.logger = l
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist; otherwise the error wraps
// apperr.ErrCorpusMissing.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: no corpus directory at %s: %w", abs, apperr.ErrCorpusMissing)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrCorpusMissing)
	}
	f := &FS{root: abs, include: DefaultInclude, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range append(slices.Clone(f.include), f.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid pattern %q", p)
		}
	}
	return f, nil
}

// Root returns the absolute corpus root.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the corpus root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes corpus root: %s", rel)
	}
	return abs, nil
}

// Match reports whether rel (slash-separated) is a corpus document.
func (f *FS) Match(rel string) bool {
	if !matchAny(f.include, rel) {
		return false
	}
	return !matchAny(f.exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// List walks the corpus and returns metadata for every matching file,
// sorted lexicographically by relative path. Unreadable directories and
// files that vanish mid-walk are logged and skipped.
func (f *FS) List() ([]models.DocumentMeta, error) {
	var out []models.DocumentMeta
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		meta, ok, err := f.visit(p, d, walkErr)
		if ok {
			out = append(out, meta)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	slices.SortFunc(out, func(a, b models.DocumentMeta) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// visit handles one WalkDir callback. The returned error is what the walk
// function returns: fs.SkipDir for an unreadable directory, nil otherwise,
// except when the root itself cannot be read.
func (f *FS) visit(p string, d fs.DirEntry, walkErr error) (models.DocumentMeta, bool, error) {
	if walkErr != nil {
		if p == f.root {
			return models.DocumentMeta{}, false, walkErr
		}
		f.logger.Warn("storage: skipping unreadable path", slog.String("path", p), slog.String("error", walkErr.Error()))
		if d != nil && d.IsDir() {
			return models.DocumentMeta{}, false, fs.SkipDir
		}
		return models.DocumentMeta{}, false, nil
	}
	if d.IsDir() {
		return models.DocumentMeta{}, false, nil
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return models.DocumentMeta{}, false, nil
	}
	rel = filepath.ToSlash(rel)
	if !f.Match(rel) {
		return models.DocumentMeta{}, false, nil
	}
	info, err := d.Info()
	if err != nil {
		f.logger.Warn("storage: skipping vanished file", slog.String("path", rel), slog.String("error", err.Error()))
		return models.DocumentMeta{}, false, nil
	}
	return models.DocumentMeta{
		Path:      rel,
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}, true, nil
}

// Read returns the raw bytes of a corpus file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. The file mode
// of an existing file is preserved.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(abs); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".backlinker-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
