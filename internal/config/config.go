// ABOUTME: Configuration loading from defaults, file, .env and environment
// ABOUTME: Produces a validated Config for the spatial sound service
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/engine"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/output"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RESONATE_SPATIAL_ENGINE_BACKEND
const EnvPrefix = "RESONATE_SPATIAL"

// Config is the full service configuration
type Config struct {
	Engine   EngineConfig
	Liveness LivenessConfig
	Decode   DecodeConfig
	Bridge   BridgeConfig
	Log      LogConfig
	Monitor  MonitorConfig
}

type EngineConfig struct {
	Backend        string
	SampleRate     int
	BufferMs       int
	OutputBufferMs int
	DopplerFactor  float32
	MetersPerUnit  float32
	DistanceModel  engine.DistanceModel
}

type LivenessConfig struct {
	Tick    time.Duration
	Silence time.Duration
}

type DecodeConfig struct {
	CacheTTL      time.Duration
	CacheMaxBytes int64
	FFmpeg        string
	LoopFiles     bool
	HTTPTimeout   time.Duration
}

type BridgeConfig struct {
	Addr  string
	Stdio bool
}

type LogConfig struct {
	Level string
	File  string
}

type MonitorConfig struct {
	Enabled bool
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.backend", "oto")
	v.SetDefault("engine.sample_rate", 48000)
	v.SetDefault("engine.buffer_ms", 500)
	v.SetDefault("engine.output_buffer_ms", 100)
	v.SetDefault("engine.doppler_factor", 0.2)
	v.SetDefault("engine.meters_per_unit", 1.0)
	v.SetDefault("engine.distance_model", "inverse")

	v.SetDefault("liveness.tick", "1s")
	v.SetDefault("liveness.silence", "3s")

	v.SetDefault("decode.cache_ttl", "10m")
	v.SetDefault("decode.cache_max_bytes", 8<<20)
	v.SetDefault("decode.ffmpeg", "ffmpeg")
	v.SetDefault("decode.loop_files", true)
	v.SetDefault("decode.http_timeout", "10s")

	v.SetDefault("bridge.addr", "127.0.0.1:8930")
	v.SetDefault("bridge.stdio", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("monitor.enabled", false)
}

// NewViper returns a viper instance with defaults and environment overrides
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads environment variables from path. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configFile (if set, otherwise resonate-spatial.{yaml,toml,json}
// from the working directory or ~/.config/resonate-spatial) and returns the
// validated configuration.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("resonate-spatial")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/resonate-spatial")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from the current viper state
func FromViper(v *viper.Viper) (*Config, error) {
	model, err := engine.ParseDistanceModel(v.GetString("engine.distance_model"))
	if err != nil {
		return nil, fmt.Errorf("engine.distance_model: %w", err)
	}

	cfg := &Config{
		Engine: EngineConfig{
			Backend:        strings.ToLower(v.GetString("engine.backend")),
			SampleRate:     v.GetInt("engine.sample_rate"),
			BufferMs:       v.GetInt("engine.buffer_ms"),
			OutputBufferMs: v.GetInt("engine.output_buffer_ms"),
			DopplerFactor:  float32(v.GetFloat64("engine.doppler_factor")),
			MetersPerUnit:  float32(v.GetFloat64("engine.meters_per_unit")),
			DistanceModel:  model,
		},
		Liveness: LivenessConfig{
			Tick:    v.GetDuration("liveness.tick"),
			Silence: v.GetDuration("liveness.silence"),
		},
		Decode: DecodeConfig{
			CacheTTL:      v.GetDuration("decode.cache_ttl"),
			CacheMaxBytes: v.GetInt64("decode.cache_max_bytes"),
			FFmpeg:        v.GetString("decode.ffmpeg"),
			LoopFiles:     v.GetBool("decode.loop_files"),
			HTTPTimeout:   v.GetDuration("decode.http_timeout"),
		},
		Bridge: BridgeConfig{
			Addr:  v.GetString("bridge.addr"),
			Stdio: v.GetBool("bridge.stdio"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		Monitor: MonitorConfig{
			Enabled: v.GetBool("monitor.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(output.Backends, c.Engine.Backend) {
		errs = append(errs, fmt.Errorf("engine.backend: must be one of %s, got %q",
			strings.Join(output.Backends, ", "), c.Engine.Backend))
	}
	if c.Engine.SampleRate < 8000 || c.Engine.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("engine.sample_rate: %d out of range 8000-192000", c.Engine.SampleRate))
	}
	if c.Engine.BufferMs <= 0 {
		errs = append(errs, fmt.Errorf("engine.buffer_ms: must be positive"))
	}
	if c.Engine.OutputBufferMs <= 0 {
		errs = append(errs, fmt.Errorf("engine.output_buffer_ms: must be positive"))
	}
	if c.Engine.MetersPerUnit <= 0 {
		errs = append(errs, fmt.Errorf("engine.meters_per_unit: must be positive"))
	}
	if c.Liveness.Tick <= 0 {
		errs = append(errs, fmt.Errorf("liveness.tick: must be positive"))
	}
	if c.Liveness.Silence <= 0 {
		errs = append(errs, fmt.Errorf("liveness.silence: must be positive"))
	}
	if c.Decode.CacheMaxBytes < 0 {
		errs = append(errs, fmt.Errorf("decode.cache_max_bytes: must not be negative"))
	}

	return errors.Join(errs...)
}
