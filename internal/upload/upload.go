package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/pkg/result"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrDisabled is returned by uploaders that have no destination configured.
var ErrDisabled = errors.New("upload destination not configured")

// Error reports a failed transfer.
type Error struct {
	Op    string
	Name  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s %s: %v", e.Op, e.Name, e.Cause)
}

func (e *Error) Unwrap() error     { return e.Cause }
func (e *Error) Kind() result.Kind { return result.Upload }

// Uploader publishes a local file and returns a URL it can be downloaded from.
// name is the remote file name.
type Uploader interface {
	Upload(ctx context.Context, localPath, name string) (string, error)
}

// Nop is used when uploads are not configured.
type Nop struct{}

// Upload always fails with ErrDisabled.
func (Nop) Upload(_ context.Context, _, name string) (string, error) {
	return "", &Error{Op: "publish", Name: name, Cause: ErrDisabled}
}

// Skipped reports whether err means no upload was attempted.
func Skipped(err error) bool { return errors.Is(err, ErrDisabled) }

// Enabled reports whether up can publish anything at all.
func Enabled(up Uploader) bool {
	switch up.(type) {
	case nil, Nop, *Nop:
		return false
	}
	return true
}

// remoteFS is the subset of *sftp.Client used for publishing.
type remoteFS interface {
	MkdirAll(dir string) error
	Create(path string) (io.WriteCloser, error)
	Chmod(path string, mode os.FileMode) error
	Close() error
}

type dialFunc func(ctx context.Context) (remoteFS, error)

// SFTP uploads files to a remote directory over SSH.
type SFTP struct {
	remoteDir string
	publicURL string
	origin    string
	timeout   time.Duration
	dial      dialFunc
}

// New returns an SFTP uploader for cfg, or Nop when cfg is incomplete.
func New(cfg config.Upload) (Uploader, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultUploadTimeout
	}
	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultUploadPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	return &SFTP{
		remoteDir: cfg.RemoteDir,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		origin:    (&url.URL{Scheme: "sftp", User: url.User(cfg.User), Host: addr}).String(),
		timeout:   timeout,
		dial:      sshDialer(addr, clientCfg),
	}, nil
}

// Upload copies localPath to <remote_dir>/<name> and returns the public URL.
func (s *SFTP) Upload(ctx context.Context, localPath, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	src, err := os.Open(localPath)
	if err != nil {
		return "", &Error{Op: "open", Name: name, Cause: err}
	}
	defer src.Close()

	fs, err := s.dial(ctx)
	if err != nil {
		return "", &Error{Op: "connect", Name: name, Cause: err}
	}
	defer fs.Close()

	// sftp calls are not context aware; closing the client unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = fs.Close() })
	defer stop()

	remote := path.Join(s.remoteDir, name)
	if s.remoteDir != "" {
		if err := fs.MkdirAll(s.remoteDir); err != nil {
			return "", &Error{Op: "mkdir", Name: name, Cause: err}
		}
	}
	dst, err := fs.Create(remote)
	if err != nil {
		return "", &Error{Op: "create", Name: name, Cause: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", &Error{Op: "write", Name: name, Cause: ctxErr(ctx, err)}
	}
	if err := dst.Close(); err != nil {
		return "", &Error{Op: "write", Name: name, Cause: ctxErr(ctx, err)}
	}
	if err := fs.Chmod(remote, 0o644); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("remote", remote).Msg("chmod after upload failed")
	}
	return s.URL(name), nil
}

// URL is the public address of an uploaded name. Without a public_url it
// is the sftp:// location the file was written to.
func (s *SFTP) URL(name string) string {
	if s.publicURL == "" {
		return s.origin + path.Join("/", s.remoteDir, name)
	}
	return s.publicURL + "/" + name
}

// Publish copies localPath to a fresh "<prefix><hex><ext>" file in tempDir,
// uploads that copy and removes it again. The source is never modified.
func Publish(ctx context.Context, up Uploader, tempDir, localPath, prefix string) (string, error) {
	if up == nil {
		up = Nop{}
	}
	token := make([]byte, 8)
	if _, err := rand.Read(token); err != nil {
		return "", &Error{Op: "name", Name: localPath, Cause: err}
	}
	name := prefix + hex.EncodeToString(token) + filepath.Ext(localPath)
	staged := filepath.Join(tempDir, name)
	if err := copyFile(localPath, staged); err != nil {
		_ = os.Remove(staged)
		return "", &Error{Op: "stage", Name: name, Cause: err}
	}
	defer os.Remove(staged)
	return up.Upload(ctx, staged, name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func authMethods(cfg config.Upload) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("upload: read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("upload: parse key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	return methods, nil
}

func hostKeyCallback(cfg config.Upload) (ssh.HostKeyCallback, error) {
	if cfg.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := cfg.KnownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("upload: locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("upload: load known_hosts %s: %w", file, err)
	}
	return cb, nil
}

func sshDialer(addr string, cfg *ssh.ClientConfig) dialFunc {
	return func(ctx context.Context) (remoteFS, error) {
		d := net.Dialer{Timeout: cfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		client := ssh.NewClient(c, chans, reqs)
		sc, err := sftp.NewClient(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &sftpFS{client: sc, ssh: client}, nil
	}
}

// sftpFS adapts *sftp.Client to remoteFS and owns the SSH connection.
type sftpFS struct {
	client *sftp.Client
	ssh    *ssh.Client
}

func (f *sftpFS) MkdirAll(dir string) error               { return f.client.MkdirAll(dir) }
func (f *sftpFS) Create(p string) (io.WriteCloser, error) { return f.client.Create(p) }
func (f *sftpFS) Chmod(p string, mode os.FileMode) error  { return f.client.Chmod(p, mode) }

func (f *sftpFS) Close() error {
	err := f.client.Close()
	if cerr := f.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}

func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}
