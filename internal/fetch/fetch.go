package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"github.com/xuri/excelize/v2"
)

const (
	// DefaultChunkSize bounds each read from the response body.
	DefaultChunkSize = 8192
	// DefaultTimeout bounds connect plus read of a whole download.
	DefaultTimeout = 30 * time.Second

	userAgent = "sheetrelay/1 (+https://github.com/vinodismyname/sheetrelay)"
)

// Error reports a download that could not produce a usable local file.
type Error struct {
	URL    string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error     { return e.Cause }
func (e *Error) Kind() result.Kind { return result.Fetch }

// Validator checks that a downloaded file has the expected format.
type Validator func(path string) error

// Format describes what a caller expects to download. Exts lists accepted
// file extensions; anything else is saved under Fallback.
type Format struct {
	Exts     []string
	Fallback string
	Check    Validator
}

var (
	// SpreadsheetFormat accepts workbooks excelize can open and save.
	SpreadsheetFormat = Format{Exts: []string{".xlsx", ".xlsm", ".xltx", ".xltm"}, Fallback: ".xlsx", Check: Spreadsheet}
	// DocumentFormat accepts pptx, docx and pdf documents.
	DocumentFormat = Format{Exts: []string{".pptx", ".docx", ".pdf"}, Check: Document}
	// AnyFormat stores whatever the server sent.
	AnyFormat = Format{}
)

func (ft Format) extension(inferred string) string {
	if len(ft.Exts) == 0 {
		return inferred
	}
	for _, e := range ft.Exts {
		if e == inferred {
			return inferred
		}
	}
	return ft.Fallback
}

// Options configures a Fetcher.
type Options struct {
	TempDir   string
	ChunkSize int
	Timeout   time.Duration
	Client    *http.Client
}

// Fetcher downloads http(s) resources into uniquely named temp files.
type Fetcher struct {
	client    *http.Client
	tempDir   string
	chunkSize int
	timeout   time.Duration
}

// New builds a Fetcher, filling defaults for zero options.
func New(opts Options) *Fetcher {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{client: client, tempDir: opts.TempDir, chunkSize: opts.ChunkSize, timeout: opts.Timeout}
}

// TempDir is where downloads are written.
func (f *Fetcher) TempDir() string { return f.tempDir }

// IsRemote reports whether name looks like a URL rather than a local path.
func IsRemote(name string) bool {
	return strings.Contains(name, "://")
}

// Fetch downloads rawURL and validates it against ft. The caller owns the
// returned file; it is removed here on any failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, ft Format) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "invalid url", Cause: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Error{URL: rawURL, Reason: fmt.Sprintf("unsupported scheme %q (only http and https)", u.Scheme)}
	}
	if u.Host == "" {
		return "", &Error{URL: rawURL, Reason: "missing host"}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "build request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: rawURL, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	name := filepath.Join(f.tempDir, uuid.NewString()+ft.extension(Extension(u, resp.Header)))
	out, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "create temp file", Cause: err}
	}
	// Strip ReaderFrom and WriterTo so every read goes through the chunk buffer.
	n, err := io.CopyBuffer(struct{ io.Writer }{out}, struct{ io.Reader }{resp.Body}, make([]byte, f.chunkSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	fail := func(reason string, cause error) (string, error) {
		_ = os.Remove(name)
		return "", &Error{URL: rawURL, Reason: reason, Cause: cause}
	}
	if err != nil {
		return fail("download interrupted", err)
	}
	if n == 0 {
		return fail("empty response body", nil)
	}
	if ft.Check != nil {
		if err := ft.Check(name); err != nil {
			return fail("unexpected content", err)
		}
	}
	return name, nil
}

// Extension infers a file extension from the URL path, then the
// Content-Disposition filename, then the Content-Type.
func Extension(u *url.URL, h http.Header) string {
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		if ext := strings.ToLower(path.Ext(params["filename"])); ext != "" {
			return ext
		}
	}
	ct, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
	switch ct {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return ".pptx"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}

// Spreadsheet accepts files excelize can open.
func Spreadsheet(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("not a valid spreadsheet: %w", err)
	}
	return f.Close()
}

var (
	zipMagic = []byte("PK\x03\x04")
	pdfMagic = []byte("%PDF-")
)

// Document accepts OOXML containers (docx, pptx) and PDF files.
func Document(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	head := make([]byte, 5)
	n, _ := io.ReadFull(fh, head)
	head = head[:n]
	if bytes.HasPrefix(head, zipMagic) || bytes.HasPrefix(head, pdfMagic) {
		return nil
	}
	return errors.New("not a pptx, docx or pdf document")
}
