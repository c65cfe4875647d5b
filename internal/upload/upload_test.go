package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/pkg/result"
)

type memFile struct {
	bytes.Buffer
	fs   *memFS
	name string
}

func (f *memFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.files[f.name] = f.Bytes()
	return nil
}

type memFS struct {
	mu        sync.Mutex
	dirs      []string
	files     map[string][]byte
	modes     map[string]os.FileMode
	createErr error
	closed    int
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}, modes: map[string]os.FileMode{}}
}

func (m *memFS) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append(m.dirs, dir)
	return nil
}

func (m *memFS) Create(p string) (io.WriteCloser, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &memFile{fs: m, name: p}, nil
}

func (m *memFS) Chmod(p string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[p] = mode
	return nil
}

func (m *memFS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func fakeSFTP(fs *memFS, dialErr error) *SFTP {
	return &SFTP{
		remoteDir: "/var/www/files",
		publicURL: "https://files.example.com/pub",
		timeout:   time.Second,
		dial: func(context.Context) (remoteFS, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return fs, nil
		},
	}
}

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestPublish(t *testing.T) {
	fs := newMemFS()
	up := fakeSFTP(fs, nil)
	tmp := t.TempDir()
	srcDir := t.TempDir()
	src := writeTemp(t, srcDir, "report.xlsx", "payload")

	url, err := Publish(context.Background(), up, tmp, src, "uploaded_")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://files.example.com/pub/uploaded_"))
	require.True(t, strings.HasSuffix(url, ".xlsx"))

	name := strings.TrimPrefix(url, "https://files.example.com/pub/")
	require.Len(t, strings.TrimSuffix(strings.TrimPrefix(name, "uploaded_"), ".xlsx"), 16)
	require.Equal(t, []byte("payload"), fs.files["/var/www/files/"+name])
	require.Equal(t, os.FileMode(0o644), fs.modes["/var/www/files/"+name])
	require.Equal(t, []string{"/var/www/files"}, fs.dirs)
	require.Equal(t, 1, fs.closed)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries, "staged copy must be removed")
	got, err := os.ReadFile(src)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func TestPublish_Failures(t *testing.T) {
	tmp := t.TempDir()
	src := writeTemp(t, t.TempDir(), "a.xlsx", "x")

	_, err := Publish(context.Background(), fakeSFTP(newMemFS(), errors.New("connection refused")), tmp, src, "uploaded_")
	requireUploadErr(t, err)

	fs := newMemFS()
	fs.createErr = errors.New("permission denied")
	_, err = Publish(context.Background(), fakeSFTP(fs, nil), tmp, src, "uploaded_")
	requireUploadErr(t, err)
	require.Equal(t, 1, fs.closed)

	_, err = Publish(context.Background(), fakeSFTP(newMemFS(), nil), tmp, filepath.Join(tmp, "missing.xlsx"), "uploaded_")
	requireUploadErr(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNop(t *testing.T) {
	up, err := New(config.Upload{Host: "files.example.com"})
	require.NoError(t, err)
	require.IsType(t, Nop{}, up)

	tmp := t.TempDir()
	src := writeTemp(t, t.TempDir(), "a.xlsx", "x")
	_, err = Publish(context.Background(), up, tmp, src, "uploaded_")
	require.True(t, Skipped(err))
	requireUploadErr(t, err)

	_, err = Publish(context.Background(), nil, tmp, src, "uploaded_")
	require.True(t, Skipped(err))
}

func TestNew_HostKeyPolicy(t *testing.T) {
	cfg := config.Upload{Host: "files.example.com", User: "u", Password: "p", Port: 22,
		KnownHosts: filepath.Join(t.TempDir(), "absent_known_hosts")}
	_, err := New(cfg)
	require.Error(t, err, "missing known_hosts must not silently disable host verification")

	cfg.InsecureHostKey = true
	up, err := New(cfg)
	require.NoError(t, err)
	s, ok := up.(*SFTP)
	require.True(t, ok)
	require.Equal(t, "sftp://u@files.example.com:22/a.xlsx", s.URL("a.xlsx"))
}

func TestSFTP_URL(t *testing.T) {
	cfg := config.Upload{Host: "files.example.com", User: "deploy", Password: "p", Port: 2222,
		RemoteDir: "/srv/out", InsecureHostKey: true}
	up, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, "sftp://deploy@files.example.com:2222/srv/out/r.xlsx", up.(*SFTP).URL("r.xlsx"))

	cfg.PublicURL = "https://cdn.example.com/out/"
	up, err = New(cfg)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/out/r.xlsx", up.(*SFTP).URL("r.xlsx"))
}

func TestEnabled(t *testing.T) {
	require.False(t, Enabled(nil))
	require.False(t, Enabled(Nop{}))
	require.True(t, Enabled(fakeSFTP(newMemFS(), nil)))
}

func requireUploadErr(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	kind, ok := result.Classify(err)
	require.True(t, ok)
	require.Equal(t, result.Upload, kind)
}
