// Package relay serves the plain HTTP endpoint that downloads a file from a
// URL and republishes it through the configured uploader.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/upload"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
	"golang.org/x/time/rate"
)

const (
	processedPrefix = "processed_"
	maxFormBytes    = 1 << 20
	shutdownTimeout = 15 * time.Second
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Server relays remote files to the upload target.
type Server struct {
	fetcher  *fetch.Fetcher
	uploader upload.Uploader
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// New builds a relay Server. Requests beyond cfg.Rate per second (with
// cfg.Burst headroom) are refused with 429.
func New(f *fetch.Fetcher, up upload.Uploader, cfg config.Relay, logger zerolog.Logger) *Server {
	if up == nil {
		up = upload.Nop{}
	}
	return &Server{
		fetcher:  f,
		uploader: up,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:   logger,
	}
}

// Handler returns the relay's routes wrapped in logging and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process_and_upload", s.processAndUpload)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler = mux
	h = s.limit(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("relay request")
	})(h)
	h = hlog.RemoteAddrHandler("remote")(h)
	return hlog.NewHandler(s.logger)(h)
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("relay stopped")
	return nil
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) processAndUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	rawURL := r.FormValue("url")
	if err := validation.Validator().Var(rawURL, "required,httpurl"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url must be an http:// or https:// URL"})
		return
	}

	if !upload.Enabled(s.uploader) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "upload target is not configured"})
		return
	}

	local, err := s.fetcher.Fetch(ctx, rawURL, fetch.AnyFormat)
	if err != nil {
		log.Warn().Err(err).Msg("relay fetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	name := processedPrefix + uuid.NewString() + "_" + baseName(rawURL)
	processed := filepath.Join(s.fetcher.TempDir(), name)
	if err := os.Rename(local, processed); err != nil {
		_ = os.Remove(local)
		log.Error().Err(err).Msg("relay stage failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not stage download"})
		return
	}
	defer func() {
		if err := os.Remove(processed); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", processed).Msg("remove relayed file")
		}
	}()

	downloadURL, err := s.uploader.Upload(ctx, processed, name)
	switch {
	case upload.Skipped(err):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "upload target is not configured"})
		return
	case err != nil:
		log.Warn().Err(err).Msg("relay upload failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	log.Info().Str("name", name).Msg("file relayed")
	writeJSON(w, http.StatusOK, map[string]string{"download_url": downloadURL})
}

// baseName is the last URL path segment, reduced to a safe file name.
func baseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	b := unsafeName.ReplaceAllString(path.Base(u.Path), "_")
	if b == "" || b == "." || b == "_" || b == ".." {
		return "download"
	}
	if len(b) > 100 {
		b = b[len(b)-100:]
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
