package paths

import (
	"os"
	"path/filepath"
)

// Resolver maps user supplied file names to local paths. It never touches the
// filesystem after construction.
type Resolver struct {
	baseDir string
	workDir string
}

// NewResolver returns a resolver that joins relative names onto baseDir, or onto
// the process working directory when baseDir is empty.
func NewResolver(baseDir string) *Resolver {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return newResolver(baseDir, wd)
}

func newResolver(baseDir, workDir string) *Resolver {
	if baseDir != "" {
		baseDir = filepath.Clean(baseDir)
	}
	return &Resolver{baseDir: baseDir, workDir: filepath.Clean(workDir)}
}

// BaseDir returns the configured base directory, if any.
func (r *Resolver) BaseDir() string { return r.baseDir }

// Resolve returns absolute names unchanged (cleaned) and joins relative names
// onto the base or working directory.
func (r *Resolver) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	if r.baseDir != "" {
		return filepath.Join(r.baseDir, name)
	}
	return filepath.Join(r.workDir, name)
}
