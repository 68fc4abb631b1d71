// Package config loads the guid service configuration from YAML and GUID_*
// environment variables and turns it into library options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/sxyafiq/guid"
)

// Environment variables overlaid by FromEnv.
const (
	EnvMachineID  = guid.MachineIDEnv
	EnvTenantID   = "GUID_TENANT_ID"
	EnvLayout     = "GUID_LAYOUT"
	EnvRedisAddr  = "GUID_REDIS_ADDR"
	EnvListenAddr = "GUID_LISTEN_ADDR"
	EnvLogLevel   = "GUID_LOG_LEVEL"
	EnvDBPath     = "GUID_DB_PATH"
)

// Config is the top-level configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Identity IdentityConfig `yaml:"identity"`
	Factory  FactoryConfig  `yaml:"factory"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// IdentityConfig overrides host discovery.
type IdentityConfig struct {
	// MachineID is 6 to 8 hex byte pairs. Empty means discover.
	MachineID string `yaml:"machine_id"`
}

// FactoryConfig describes the configurable-layout factory.
type FactoryConfig struct {
	// Layout names a preset (see guid.Layouts).
	Layout string `yaml:"layout"`

	// Widths, when set, overrides Layout field by field.
	Widths *Widths `yaml:"widths"`

	TenantID int64 `yaml:"tenant_id"`
}

// Widths are explicit field widths in bytes.
type Widths struct {
	Tenant   int `yaml:"tenant"`
	Platform int `yaml:"platform"`
	Pid      int `yaml:"pid"`
	Time     int `yaml:"time"`
	Counter  int `yaml:"counter"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBatch        int           `yaml:"max_batch"`
	MintRate        float64       `yaml:"mint_rate"` // requests per second, 0 disables
	MintBurst       int           `yaml:"mint_burst"`
}

// StoreConfig configures the SQLite registry. An empty Path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures platform-id leasing. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	PoolSize  int64         `yaml:"pool_size"`
	LeaseTTL  time.Duration `yaml:"lease_ttl"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Factory: FactoryConfig{
			Layout: "default",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBatch:        1000,
		},
		Redis: RedisConfig{
			KeyPrefix: "guid:platform:",
			PoolSize:  1024,
			LeaseTTL:  30 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv overlays GUID_* environment variables onto cfg.
func FromEnv(cfg *Config) error {
	if v := os.Getenv(EnvMachineID); v != "" {
		cfg.Identity.MachineID = v
	}
	if v := os.Getenv(EnvTenantID); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvTenantID, v, err)
		}
		cfg.Factory.TenantID = n
	}
	if v := os.Getenv(EnvLayout); v != "" {
		cfg.Factory.Layout = v
		cfg.Factory.Widths = nil
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Store.Path = v
	}
	return nil
}

// LoadWithEnv is Load followed by FromEnv and Validate.
func LoadWithEnv(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format: %q must be json or console", c.Log.Format))
	}
	if c.Identity.MachineID != "" {
		if _, err := guid.ParseMachineID(c.Identity.MachineID); err != nil {
			errs = append(errs, fmt.Errorf("identity.machine_id: %w", err))
		}
	}
	if _, err := c.FactoryConfig(nil); err != nil {
		errs = append(errs, fmt.Errorf("factory: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: must not be empty"))
	}
	if c.Server.MaxBatch <= 0 {
		errs = append(errs, fmt.Errorf("server.max_batch: %d must be positive", c.Server.MaxBatch))
	}
	if c.Server.MintRate < 0 || c.Server.MintBurst < 0 {
		errs = append(errs, fmt.Errorf("server.mint_rate: rate %g and burst %d must not be negative", c.Server.MintRate, c.Server.MintBurst))
	}
	if c.Redis.Addr != "" && c.Redis.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("redis.pool_size: %d must be positive", c.Redis.PoolSize))
	}
	return errors.Join(errs...)
}

// Layout resolves the factory widths.
func (c Config) Layout() (guid.Layout, error) {
	if w := c.Factory.Widths; w != nil {
		l := guid.Layout{
			TenantSize:   w.Tenant,
			PlatformSize: w.Platform,
			PidSize:      w.Pid,
			TimeSize:     w.Time,
			CounterSize:  w.Counter,
		}
		return l, l.Validate()
	}
	name := c.Factory.Layout
	if name == "" {
		name = "default"
	}
	return guid.LayoutByName(name)
}

// FactoryConfig builds the library factory options.
func (c Config) FactoryConfig(logger *zap.Logger) (guid.FactoryConfig, error) {
	l, err := c.Layout()
	if err != nil {
		return guid.FactoryConfig{}, err
	}
	fc := guid.FactoryConfig{
		Layout:   l,
		TenantID: c.Factory.TenantID,
		Logger:   logger,
	}
	if err := fc.Validate(); err != nil {
		return guid.FactoryConfig{}, err
	}
	return fc, nil
}

// HostIdentity builds the host identity, honoring identity.machine_id.
func (c Config) HostIdentity(logger *zap.Logger) (*guid.HostIdentity, error) {
	opts := []guid.HostOption{guid.WithLogger(logger)}
	if c.Identity.MachineID != "" {
		mac, err := guid.ParseMachineID(c.Identity.MachineID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, guid.WithMachineID(mac))
	}
	return guid.NewHostIdentity(opts...), nil
}

// NewLogger builds a zap logger for the log section.
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
