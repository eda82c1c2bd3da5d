// Package config loads the globe-scale service configuration from an
// optional YAML file and GLOBESCALE_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/golang/geo/s1"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/internal/observability"
)

// EnvPrefix is prepended to every environment override, e.g.
// GLOBESCALE_CAMERA_MARGIN_FACTOR.
const EnvPrefix = "GLOBESCALE"

// ErrNoConfigFile is returned by Watch when the loader has no file to watch.
var ErrNoConfigFile = errors.New("no config file to watch")

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     yaml:"server"`
	Log       LogConfig       `mapstructure:"log"        yaml:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"    yaml:"tracing"`
	Geodesic  GeodesicConfig  `mapstructure:"geodesic"   yaml:"geodesic"`
	Camera    CameraConfig    `mapstructure:"camera"     yaml:"camera"`
	RingCache RingCacheConfig `mapstructure:"ring_cache" yaml:"ring_cache"`
	Session   SessionConfig   `mapstructure:"session"    yaml:"session"`
	// ModesFile points at a YAML mode table. Empty means the built-in table.
	ModesFile string `mapstructure:"modes_file" yaml:"modes_file"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"    yaml:"grpc_addr"    validate:"required"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Exporter    string  `mapstructure:"exporter"     yaml:"exporter"     validate:"oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `mapstructure:"endpoint"     yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// GeodesicConfig controls ring generation.
type GeodesicConfig struct {
	// Segments is the default ring resolution; 0 selects core.DefaultSegments.
	Segments int `mapstructure:"segments" yaml:"segments" validate:"gte=0,lte=4096"`
}

// CameraConfig holds the framing tunables in degrees and metres.
type CameraConfig struct {
	MarginFactor         float64 `mapstructure:"margin_factor"          yaml:"margin_factor"          validate:"gt=0"`
	MinFOVDeg            float64 `mapstructure:"min_fov_deg"            yaml:"min_fov_deg"            validate:"gt=0,lt=180"`
	MaxFOVDeg            float64 `mapstructure:"max_fov_deg"            yaml:"max_fov_deg"            validate:"lt=180,gtefield=MinFOVDeg"`
	DefaultFOVDeg        float64 `mapstructure:"default_fov_deg"        yaml:"default_fov_deg"        validate:"gt=0,lt=180"`
	MinAltitudeM         float64 `mapstructure:"min_altitude_m"         yaml:"min_altitude_m"         validate:"gte=0"`
	MaxAltitudeM         float64 `mapstructure:"max_altitude_m"         yaml:"max_altitude_m"         validate:"gtefield=MinAltitudeM"`
	AntipodeThresholdDeg float64 `mapstructure:"antipode_threshold_deg" yaml:"antipode_threshold_deg" validate:"gt=0,lte=180"`
}

// RingCacheConfig sizes the optional ring cache.
type RingCacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	LifeWindow time.Duration `mapstructure:"life_window" yaml:"life_window" validate:"gte=0"`
	MaxMB      int           `mapstructure:"max_mb"      yaml:"max_mb"      validate:"gte=0"`
}

// SessionConfig controls idle session expiry. A zero TTL keeps sessions
// until they are reset.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"            yaml:"ttl"            validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"gte=0"`
}

// FramerConfig converts the camera section into core framing tunables.
func (c CameraConfig) FramerConfig() core.FramerConfig {
	return core.FramerConfig{
		MarginFactor:         c.MarginFactor,
		MinFOVDeg:            c.MinFOVDeg,
		MaxFOVDeg:            c.MaxFOVDeg,
		DefaultFOVDeg:        c.DefaultFOVDeg,
		MinAltitudeM:         c.MinAltitudeM,
		MaxAltitudeM:         c.MaxAltitudeM,
		AntipodeThresholdRad: (s1.Angle(c.AntipodeThresholdDeg) * s1.Degree).Radians(),
	}
}

// LoggingConfig converts the log section into a logging.Config.
func (c LogConfig) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format}
}

// Observability converts the tracing section into an observability.TracingConfig.
func (c TracingConfig) Observability() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Enabled,
		ServiceName: c.ServiceName,
		Exporter:    c.Exporter,
		Endpoint:    c.Endpoint,
		SampleRatio: c.SampleRatio,
	}
}

// Default returns the built-in configuration.
func Default() Config {
	d := core.DefaultFramerConfig()
	return Config{
		Server:  ServerConfig{GRPCAddr: ":50061", MetricsAddr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "stdout", ServiceName: "globe-scale", SampleRatio: 1},
		Geodesic: GeodesicConfig{
			Segments: core.DefaultSegments,
		},
		Camera: CameraConfig{
			MarginFactor:         d.MarginFactor,
			MinFOVDeg:            d.MinFOVDeg,
			MaxFOVDeg:            d.MaxFOVDeg,
			DefaultFOVDeg:        d.DefaultFOVDeg,
			MinAltitudeM:         d.MinAltitudeM,
			MaxAltitudeM:         d.MaxAltitudeM,
			AntipodeThresholdDeg: s1.Angle(d.AntipodeThresholdRad).Degrees(),
		},
		RingCache: RingCacheConfig{Enabled: true, LifeWindow: 10 * time.Minute, MaxMB: 64},
		Session:   SessionConfig{TTL: time.Hour, SweepInterval: time.Minute},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.grpc_addr", d.Server.GRPCAddr)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
	v.SetDefault("geodesic.segments", d.Geodesic.Segments)
	v.SetDefault("camera.margin_factor", d.Camera.MarginFactor)
	v.SetDefault("camera.min_fov_deg", d.Camera.MinFOVDeg)
	v.SetDefault("camera.max_fov_deg", d.Camera.MaxFOVDeg)
	v.SetDefault("camera.default_fov_deg", d.Camera.DefaultFOVDeg)
	v.SetDefault("camera.min_altitude_m", d.Camera.MinAltitudeM)
	v.SetDefault("camera.max_altitude_m", d.Camera.MaxAltitudeM)
	v.SetDefault("camera.antipode_threshold_deg", d.Camera.AntipodeThresholdDeg)
	v.SetDefault("ring_cache.enabled", d.RingCache.Enabled)
	v.SetDefault("ring_cache.life_window", d.RingCache.LifeWindow)
	v.SetDefault("ring_cache.max_mb", d.RingCache.MaxMB)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.sweep_interval", d.Session.SweepInterval)
	v.SetDefault("modes_file", d.ModesFile)
}

// Loader reads and re-reads one configuration source.
type Loader struct {
	path     string
	v        *viper.Viper
	validate *validator.Validate
	log      logging.Logger

	watchOnce sync.Once
}

// NewLoader prepares a Loader for path. An empty path loads defaults and
// environment overrides only.
func NewLoader(path string, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	return &Loader{path: path, v: v, validate: validator.New(), log: log}
}

// Load reads the source and returns a validated Config.
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file whenever it changes and hands each new
// valid Config to onChange. Invalid edits are logged and skipped, leaving
// the previous configuration in force. Only the first call registers a
// callback.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.path == "" {
		return ErrNoConfigFile
	}
	if onChange == nil {
		return nil
	}
	l.watchOnce.Do(func() {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			cfg, err := l.decode()
			if err != nil {
				l.log.Warn(context.Background(), "config reload rejected",
					logging.String("file", e.Name),
					logging.Err(err),
				)
				return
			}
			l.log.Info(context.Background(), "config reloaded", logging.String("file", e.Name))
			onChange(cfg)
		})
		l.v.WatchConfig()
	})
	return nil
}

// Load is shorthand for NewLoader(path, nil).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path, nil).Load()
}
