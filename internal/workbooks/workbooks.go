package workbooks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/xuri/excelize/v2"
)

// WorkbookGate coordinates capacity for open workbooks (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// ErrUnsupportedFormat is returned for files excelize cannot save back.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// pathLock guards one workbook path. refs counts goroutines holding or
// waiting on it so idle entries can be dropped.
type pathLock struct {
	mu   sync.RWMutex
	refs int
}

// Manager opens workbooks for the duration of a single call. Reads of the same
// path share a lock; writes are serialized per path.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*pathLock
	gate  WorkbookGate
}

// NewManager constructs a Manager. Gate can be nil for tests.
func NewManager(gate WorkbookGate) *Manager {
	return &Manager{locks: make(map[string]*pathLock), gate: gate}
}

// WithRead opens path under a shared lock and passes the workbook to fn.
func (m *Manager) WithRead(ctx context.Context, path string, fn func(*excelize.File) error) error {
	if err := checkFormat(path); err != nil {
		return err
	}
	l := m.lock(path)
	defer m.unlock(path)
	l.mu.RLock()
	defer l.mu.RUnlock()

	return m.open(ctx, path, fn)
}

// WithWrite opens path under an exclusive lock, runs fn and saves the result.
// When create is set a missing workbook is created first. Nothing is saved if
// fn fails.
func (m *Manager) WithWrite(ctx context.Context, path string, create bool, fn func(*excelize.File) error) error {
	if err := checkFormat(path); err != nil {
		return err
	}
	l := m.lock(path)
	defer m.unlock(path)
	l.mu.Lock()
	defer l.mu.Unlock()

	if create {
		if _, err := sheets.EnsureWorkbook(path); err != nil {
			return err
		}
	}
	return m.open(ctx, path, func(f *excelize.File) error {
		if err := fn(f); err != nil {
			return err
		}
		if err := sheets.Save(f, path); err != nil {
			return &sheets.WorkbookError{Operation: "save", Path: path, Cause: err}
		}
		return nil
	})
}

// Hold runs fn under path's lock without opening the workbook. Creating a file
// takes the exclusive lock; copying a saved one out takes the shared lock.
func (m *Manager) Hold(ctx context.Context, path string, exclusive bool, fn func() error) error {
	l := m.lock(path)
	defer m.unlock(path)
	if exclusive {
		l.mu.Lock()
		defer l.mu.Unlock()
	} else {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Count returns the number of paths currently locked or awaited.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Manager) open(ctx context.Context, path string, fn func(*excelize.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return &sheets.WorkbookError{Operation: "open", Path: path, Cause: err}
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}

func (m *Manager) lock(path string) *pathLock {
	key := filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &pathLock{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Manager) unlock(path string) {
	key := filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(m.locks, key)
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireWorkbook(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseWorkbook()
}

func checkFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return nil
	}
	return &sheets.WorkbookError{Operation: "open", Path: path, Cause: fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}
}
