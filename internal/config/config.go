// Package config loads the trackpad service configuration from TOML, YAML or
// JSON, then applies TRACKPAD_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mobiletrackpad/input"
	"mobiletrackpad/internal/clients"
	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/filestore"
	"mobiletrackpad/internal/server"
)

// Duration is a time.Duration that decodes from strings like "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Server    ServerConfig    `toml:"server" json:"server" yaml:"server"`
	Device    DeviceConfig    `toml:"device" json:"device" yaml:"device"`
	Clipboard ClipboardConfig `toml:"clipboard" json:"clipboard" yaml:"clipboard"`
	Files     FilesConfig     `toml:"files" json:"files" yaml:"files"`
	Logging   LoggingConfig   `toml:"logging" json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics" json:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	// Addr is the listen address. All interfaces by default.
	Addr string `toml:"addr" json:"addr" yaml:"addr"`

	// StaticDir holds index.html, clipboard.html and their assets.
	StaticDir string `toml:"static_dir" json:"static_dir" yaml:"static_dir"`

	// MaxUploadBytes bounds a multipart upload body.
	MaxUploadBytes int64 `toml:"max_upload_bytes" json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// MaxConnections caps concurrent TCP connections. Zero means unlimited.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	ReadTimeout  Duration `toml:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
	PingPeriod   Duration `toml:"ping_period" json:"ping_period" yaml:"ping_period"`
}

type DeviceConfig struct {
	Name string `toml:"name" json:"name" yaml:"name"`
	Path string `toml:"path" json:"path" yaml:"path"`
}

type ClipboardConfig struct {
	Buffer       int    `toml:"buffer" json:"buffer" yaml:"buffer"`
	ClientSource string `toml:"client_source" json:"client_source" yaml:"client_source"`
	SystemSource string `toml:"system_source" json:"system_source" yaml:"system_source"`
	HostSource   string `toml:"host_source" json:"host_source" yaml:"host_source"`

	// PollHost publishes host clipboard changes to connected sessions.
	PollHost     bool     `toml:"poll_host" json:"poll_host" yaml:"poll_host"`
	PollInterval Duration `toml:"poll_interval" json:"poll_interval" yaml:"poll_interval"`

	// ApplyRemote writes text pasted on the phone into the host clipboard.
	ApplyRemote bool `toml:"apply_remote" json:"apply_remote" yaml:"apply_remote"`
}

type FilesConfig struct {
	Dir           string   `toml:"dir" json:"dir" yaml:"dir"`
	TTL           Duration `toml:"ttl" json:"ttl" yaml:"ttl"`
	SweepInterval Duration `toml:"sweep_interval" json:"sweep_interval" yaml:"sweep_interval"`
	Watch         bool     `toml:"watch" json:"watch" yaml:"watch"`
}

type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "0.0.0.0:9999",
			StaticDir:      "./static",
			MaxUploadBytes: server.DefaultMaxUploadBytes,
			ReadTimeout:    Duration{server.DefaultReadTimeout},
			WriteTimeout:   Duration{clients.DefaultWriteWait},
			PingPeriod:     Duration{clients.DefaultPingPeriod},
		},
		Device: DeviceConfig{
			Name: input.DefaultName,
			Path: input.DefaultPath,
		},
		Clipboard: ClipboardConfig{
			Buffer:       clipboard.DefaultBuffer,
			ClientSource: clipboard.SourceClient,
			SystemSource: clipboard.SourceSystem,
			HostSource:   clipboard.SourceHost,
			PollInterval: Duration{time.Second},
		},
		Files: FilesConfig{
			Dir:           "./uploads",
			TTL:           Duration{filestore.DefaultTTL},
			SweepInterval: Duration{filestore.DefaultSweepInterval},
			Watch:         true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads path (if it exists), applies environment overrides and
// validates the result. An empty path yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

// ApplyEnvOverrides overrides fields from TRACKPAD_* variables. Malformed
// numeric or boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) {
		if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
			dst.Duration = v
		}
	}

	str("TRACKPAD_ADDR", &c.Server.Addr)
	str("TRACKPAD_STATIC_DIR", &c.Server.StaticDir)
	if v, err := strconv.ParseInt(os.Getenv("TRACKPAD_MAX_UPLOAD_BYTES"), 10, 64); err == nil {
		c.Server.MaxUploadBytes = v
	}
	str("TRACKPAD_DEVICE_PATH", &c.Device.Path)
	str("TRACKPAD_DEVICE_NAME", &c.Device.Name)
	boolean("TRACKPAD_POLL_HOST_CLIPBOARD", &c.Clipboard.PollHost)
	boolean("TRACKPAD_APPLY_REMOTE_CLIPBOARD", &c.Clipboard.ApplyRemote)
	str("TRACKPAD_UPLOAD_DIR", &c.Files.Dir)
	dur("TRACKPAD_FILE_TTL", &c.Files.TTL)
	str("TRACKPAD_LOG_LEVEL", &c.Logging.Level)
	str("TRACKPAD_LOG_FORMAT", &c.Logging.Format)
	boolean("TRACKPAD_METRICS", &c.Metrics.Enabled)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Device.Path == "" {
		errs = append(errs, errors.New("device.path is required"))
	}
	if c.Clipboard.Buffer <= 0 {
		errs = append(errs, errors.New("clipboard.buffer must be positive"))
	}
	if c.Clipboard.PollHost && c.Clipboard.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("clipboard.poll_interval must be positive"))
	}
	if c.Files.Dir == "" {
		errs = append(errs, errors.New("files.dir is required"))
	}
	if c.Files.TTL.Duration <= 0 {
		errs = append(errs, errors.New("files.ttl must be positive"))
	}
	if c.Files.SweepInterval.Duration <= 0 {
		errs = append(errs, errors.New("files.sweep_interval must be positive"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}

	return errors.Join(errs...)
}
