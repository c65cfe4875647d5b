package workbooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/internal/sheets"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

// fakeGate implements WorkbookGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseWorkbook() { g.releases.Add(1) }

func newBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, sheets.CreateWorkbook(path))
	return path
}

func TestWithWrite_SavesAndReleases(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(gate)
	path := newBook(t)

	err := m.WithWrite(context.Background(), path, false, func(f *excelize.File) error {
		return f.SetCellValue("Sheet1", "B2", "saved")
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())
	require.Zero(t, m.Count())

	err = m.WithRead(context.Background(), path, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "B2")
		require.Equal(t, "saved", v)
		return err
	})
	require.NoError(t, err)
}

func TestWithWrite_CreateMissing(t *testing.T) {
	m := NewManager(nil)
	path := filepath.Join(t.TempDir(), "nested", "new.xlsx")

	err := m.WithWrite(context.Background(), path, false, func(*excelize.File) error { return nil })
	require.Error(t, err)
	kind, ok := result.Classify(err)
	require.True(t, ok)
	require.Equal(t, result.Workbook, kind)

	require.NoError(t, m.WithWrite(context.Background(), path, true, func(*excelize.File) error { return nil }))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestWithWrite_FailureDoesNotSave(t *testing.T) {
	m := NewManager(nil)
	path := newBook(t)
	boom := errors.New("boom")

	err := m.WithWrite(context.Background(), path, false, func(f *excelize.File) error {
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "discarded"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, m.WithRead(context.Background(), path, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "A1")
		require.Empty(t, v)
		return err
	}))
}

func TestReadWriteLocking(t *testing.T) {
	m := NewManager(nil)
	path := newBook(t)
	ctx := context.Background()

	var r1Acq, r2Acq, wAcq sync.WaitGroup
	r1Acq.Add(1)
	r2Acq.Add(1)
	wAcq.Add(1)

	releaseR1 := make(chan struct{})
	releaseR2 := make(chan struct{})
	writeDone := make(chan struct{})

	go func() {
		_ = m.WithRead(ctx, path, func(*excelize.File) error {
			r1Acq.Done()
			<-releaseR1
			return nil
		})
	}()
	go func() {
		_ = m.WithRead(ctx, path, func(*excelize.File) error {
			r2Acq.Done()
			<-releaseR2
			return nil
		})
	}()

	// Writer should block until both readers release.
	go func() {
		r1Acq.Wait()
		r2Acq.Wait()
		_ = m.WithWrite(ctx, path, false, func(*excelize.File) error {
			wAcq.Done()
			return nil
		})
		close(writeDone)
	}()

	ch := make(chan struct{})
	go func() { wAcq.Wait(); close(ch) }()
	select {
	case <-ch:
		t.Fatal("writer should not acquire while readers hold the lock")
	case <-time.After(30 * time.Millisecond):
	}

	close(releaseR1)
	close(releaseR2)
	<-writeDone
	require.Zero(t, m.Count())
}

func TestConcurrentWritesSerialized(t *testing.T) {
	m := NewManager(nil)
	path := newBook(t)

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.WithWrite(context.Background(), path, false, func(f *excelize.File) error {
				require.Equal(t, int32(1), inside.Add(1))
				defer inside.Add(-1)
				cell, _ := excelize.CoordinatesToCellName(1, i+1)
				return f.SetCellValue("Sheet1", cell, i)
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, m.WithRead(context.Background(), path, func(f *excelize.File) error {
		rows, err := f.GetRows("Sheet1")
		require.Len(t, rows, 8)
		return err
	}))
}

func TestUnsupportedFormat(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(gate)

	err := m.WithRead(context.Background(), "not_excel.txt", func(*excelize.File) error { return nil })
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Zero(t, gate.acquires.Load())
}

func TestGateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	m := NewManager(gate)
	path := newBook(t)

	called := false
	err := m.WithRead(context.Background(), path, func(*excelize.File) error { called = true; return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, called)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Zero(t, gate.releases.Load())
	require.Zero(t, m.Count())
}

func TestOpenFailureReleasesGate(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(gate)
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	err := m.WithRead(context.Background(), path, func(*excelize.File) error { return nil })
	var wbErr *sheets.WorkbookError
	require.ErrorAs(t, err, &wbErr)
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestHold(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(gate)
	path := filepath.Join(t.TempDir(), "new.xlsx")

	require.NoError(t, m.Hold(context.Background(), path, true, func() error {
		return sheets.CreateWorkbook(path)
	}))
	require.FileExists(t, path)
	require.Zero(t, gate.acquires.Load())
	require.Zero(t, m.Count())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := m.Hold(ctx, path, false, func() error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
