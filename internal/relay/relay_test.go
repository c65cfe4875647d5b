package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/upload"
)

type stubUploader struct {
	err     error
	name    string
	content string
}

func (u *stubUploader) Upload(_ context.Context, localPath, name string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	u.name, u.content = name, string(b)
	return "https://files.example.com/" + name, nil
}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/report.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, h http.Handler, form url.Values) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process_and_upload", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func newServer(t *testing.T, up upload.Uploader, burst int) (*Server, string) {
	t.Helper()
	tmp := t.TempDir()
	f := fetch.New(fetch.Options{TempDir: tmp})
	return New(f, up, config.Relay{Addr: ":0", Rate: 1000, Burst: burst}, zerolog.Nop()), tmp
}

func TestProcessAndUpload(t *testing.T) {
	src := upstream(t)
	up := &stubUploader{}
	s, tmp := newServer(t, up, 10)
	h := s.Handler()

	rec, body := post(t, h, url.Values{"url": {src.URL + "/files/report.csv"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(up.name, "processed_"))
	require.True(t, strings.HasSuffix(up.name, "_report.csv"))
	require.Equal(t, "a,b\n1,2\n", up.content)
	require.Equal(t, "https://files.example.com/"+up.name, body["download_url"])

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessAndUpload_Errors(t *testing.T) {
	src := upstream(t)
	cases := []struct {
		name   string
		up     upload.Uploader
		url    string
		status int
	}{
		{"missing url", &stubUploader{}, "", http.StatusBadRequest},
		{"bad scheme", &stubUploader{}, "file:///etc/hosts", http.StatusBadRequest},
		{"upstream 404", &stubUploader{}, src.URL + "/nope", http.StatusBadGateway},
		{"upload disabled", upload.Nop{}, src.URL + "/files/report.csv", http.StatusServiceUnavailable},
		{"upload failed", &stubUploader{err: errors.New("connection reset")}, src.URL + "/files/report.csv", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, tmp := newServer(t, tc.up, 10)
			rec, body := post(t, s.Handler(), url.Values{"url": {tc.url}})
			require.Equal(t, tc.status, rec.Code)
			require.NotEmpty(t, body["error"])
			entries, err := os.ReadDir(tmp)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestProcessAndUpload_DisabledSkipsDownload(t *testing.T) {
	var hits atomic.Int32
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("a,b\n"))
	}))
	defer src.Close()

	s, tmp := newServer(t, upload.Nop{}, 10)
	rec, body := post(t, s.Handler(), url.Values{"url": {src.URL + "/files/report.csv"}})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "upload target is not configured", body["error"])
	require.Zero(t, hits.Load())
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRateLimit(t *testing.T) {
	tmp := t.TempDir()
	s := New(fetch.New(fetch.Options{TempDir: tmp}), &stubUploader{}, config.Relay{Rate: 0.001, Burst: 1}, zerolog.Nop())
	h := s.Handler()

	rec, _ := post(t, h, url.Values{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, body := post(t, h, url.Values{})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate limit exceeded", body["error"])
}

func TestHealthzAndMethods(t *testing.T) {
	s, _ := newServer(t, &stubUploader{}, 10)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process_and_upload", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBaseName(t *testing.T) {
	require.Equal(t, "report.xlsx", baseName("https://example.com/a/report.xlsx?x=1"))
	require.Equal(t, "my_file.pdf", baseName("https://example.com/my%20file.pdf"))
	require.Equal(t, "download", baseName("https://example.com/"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newServer(t, &stubUploader{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	require.NoError(t, <-done)
}
