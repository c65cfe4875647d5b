package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config is the complete server configuration.
type Config struct {
	FilesPath    string   `yaml:"files_path"`
	TempDir      string   `yaml:"temp_dir"`
	AllowedDirs  []string `yaml:"allowed_dirs"`
	EnableWrites bool     `yaml:"enable_writes"`
	LogLevel     string   `yaml:"log_level" validate:"oneof=trace debug info warn error disabled"`

	Limits Limits `yaml:"limits"`
	Upload Upload `yaml:"upload"`
	Relay  Relay  `yaml:"relay"`
}

// Limits bounds concurrency, time and page sizes.
type Limits struct {
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests" validate:"gte=1"`
	MaxOpenWorkbooks      int           `yaml:"max_open_workbooks" validate:"gte=1"`
	OperationTimeout      time.Duration `yaml:"operation_timeout" validate:"gt=0"`
	AcquireTimeout        time.Duration `yaml:"acquire_timeout" validate:"gte=0"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	DefaultPageRows       int           `yaml:"default_page_rows" validate:"gte=1"`
	MaxPageRows           int           `yaml:"max_page_rows" validate:"gtefield=DefaultPageRows"`
}

// Upload configures the SFTP destination. Uploads are disabled unless host,
// user and a password or key file are all set.
type Upload struct {
	Host            string        `yaml:"host" validate:"omitempty,hostname|ip"`
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	KeyFile         string        `yaml:"key_file"`
	KnownHosts      string        `yaml:"known_hosts"`
	InsecureHostKey bool          `yaml:"insecure_host_key"`
	RemoteDir       string        `yaml:"remote_dir"`
	PublicURL       string        `yaml:"public_url" validate:"omitempty,url"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Enabled reports whether enough is configured to attempt an upload.
func (u Upload) Enabled() bool {
	return u.Host != "" && u.User != "" && (u.Password != "" || u.KeyFile != "")
}

// Relay configures the HTTP file relay.
type Relay struct {
	Addr  string  `yaml:"addr" validate:"required"`
	Rate  float64 `yaml:"rate" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"gte=1"`
}

// Default returns a Config populated with the package defaults.
func Default() Config {
	return Config{
		TempDir:      os.TempDir(),
		EnableWrites: true,
		LogLevel:     "info",
		Limits: Limits{
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			MaxOpenWorkbooks:      DefaultMaxOpenWorkbooks,
			OperationTimeout:      DefaultOperationTimeout,
			AcquireTimeout:        DefaultAcquireRequestTimeout,
			FetchTimeout:          DefaultFetchTimeout,
			DefaultPageRows:       DefaultPageRows,
			MaxPageRows:           DefaultMaxPageRows,
		},
		Upload: Upload{
			Port:    DefaultUploadPort,
			Timeout: DefaultUploadTimeout,
		},
		Relay: Relay{
			Addr:  DefaultRelayAddr,
			Rate:  DefaultRelayRate,
			Burst: DefaultRelayBurst,
		},
	}
}

// Load layers defaults, the optional YAML file at path, a .env file in the
// working directory and the process environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(v)))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := cast.ToDurationE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("EXCEL_FILES_PATH", &cfg.FilesPath)
	str("SHEETRELAY_TEMP_DIR", &cfg.TempDir)
	if v, ok := lookup("SHEETRELAY_ALLOWED_DIRS"); ok {
		cfg.AllowedDirs = splitList(v)
	}
	boolean("SHEETRELAY_ENABLE_WRITES", &cfg.EnableWrites)
	str("LOG_LEVEL", &cfg.LogLevel)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	integer("SHEETRELAY_MAX_CONCURRENT_REQUESTS", &cfg.Limits.MaxConcurrentRequests)
	integer("SHEETRELAY_MAX_OPEN_WORKBOOKS", &cfg.Limits.MaxOpenWorkbooks)
	duration("SHEETRELAY_OPERATION_TIMEOUT", &cfg.Limits.OperationTimeout)
	duration("SHEETRELAY_FETCH_TIMEOUT", &cfg.Limits.FetchTimeout)

	str("SHEETRELAY_UPLOAD_HOST", &cfg.Upload.Host)
	integer("SHEETRELAY_UPLOAD_PORT", &cfg.Upload.Port)
	str("SHEETRELAY_UPLOAD_USER", &cfg.Upload.User)
	str("SHEETRELAY_UPLOAD_PASSWORD", &cfg.Upload.Password)
	str("SHEETRELAY_UPLOAD_KEY_FILE", &cfg.Upload.KeyFile)
	str("SHEETRELAY_UPLOAD_KNOWN_HOSTS", &cfg.Upload.KnownHosts)
	boolean("SHEETRELAY_UPLOAD_INSECURE_HOST_KEY", &cfg.Upload.InsecureHostKey)
	str("SHEETRELAY_UPLOAD_REMOTE_DIR", &cfg.Upload.RemoteDir)
	str("SHEETRELAY_UPLOAD_PUBLIC_URL", &cfg.Upload.PublicURL)
	duration("SHEETRELAY_UPLOAD_TIMEOUT", &cfg.Upload.Timeout)

	str("SHEETRELAY_RELAY_ADDR", &cfg.Relay.Addr)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
