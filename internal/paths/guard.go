package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/sheetrelay/pkg/result"
)

// ErrNotAllowed indicates the requested path is outside the allow-list roots.
var ErrNotAllowed = errors.New("path is outside the allowed directories")

// GuardError is returned when a resolved path fails the allow-list check.
type GuardError struct {
	Field string
	Path  string
	Cause error
}

func (e *GuardError) Error() string     { return fmt.Sprintf("%s %v: %s", e.Field, e.Cause, e.Path) }
func (e *GuardError) Unwrap() error     { return e.Cause }
func (e *GuardError) Kind() result.Kind { return result.Validation }

// Guard confines local paths to an allow-list of directories. A guard without
// directories admits every path.
type Guard struct {
	allowedDirs []string
}

// NewGuard canonicalizes the allow-list (absolute, symlinks evaluated). Every
// entry must be an existing directory.
func NewGuard(dirs []string) (*Guard, error) {
	canonical := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("paths: resolve abs for %q: %w", d, err)
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("paths: eval symlinks for %q: %w", abs, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("paths: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("paths: allow-list entry is not a directory: %q", real)
		}
		canonical = append(canonical, filepath.Clean(real))
	}
	return &Guard{allowedDirs: canonical}, nil
}

// AllowedDirectories returns the canonical allow-list roots.
func (g *Guard) AllowedDirectories() []string {
	out := make([]string, len(g.allowedDirs))
	copy(out, g.allowedDirs)
	return out
}

// Check verifies that path, or its nearest existing ancestor for files that are
// about to be created, lies within an allowed root.
func (g *Guard) Check(field, path string) error {
	if g == nil || len(g.allowedDirs) == 0 {
		return nil
	}
	real, err := canonical(path)
	if err != nil {
		return &GuardError{Field: field, Path: path, Cause: err}
	}
	for _, root := range g.allowedDirs {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return &GuardError{Field: field, Path: path, Cause: ErrNotAllowed}
}

// canonical evaluates symlinks on the longest existing prefix of path and
// re-attaches the missing tail.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var tail []string
	cur := abs
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{real}, tail...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
