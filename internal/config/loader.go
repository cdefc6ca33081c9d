// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/vidrec/internal/log"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// ConfigPath returns the file the loader reads, if any.
func (l *Loader) ConfigPath() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// envList reads a comma-separated list; an unset or blank value keeps defaultVal.
func (l *Loader) envList(key string, defaultVal []string) []string {
	raw := l.envString(key, "")
	if strings.TrimSpace(raw) == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load resolves the configuration: defaults, then the strict YAML file,
// then VIDREC_* environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	l.warnUnknownEnv()

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	if f == nil {
		return nil
	}
	if f.Log != nil {
		setString(&cfg.LogLevel, f.Log.Level)
		setString(&cfg.LogService, f.Log.Service)
	}
	if f.API != nil {
		setString(&cfg.API.ListenAddr, f.API.ListenAddr)
		if f.API.RateLimitRPM != nil {
			cfg.API.RateLimitRPM = *f.API.RateLimitRPM
		}
		if f.API.AllowedOrigins != nil {
			cfg.API.AllowedOrigins = append([]string(nil), f.API.AllowedOrigins...)
		}
	}
	if d := f.Device; d != nil {
		setString(&cfg.Device.Backend, d.Backend)
		setString(&cfg.Device.FFmpegBin, d.FFmpegBin)
		setString(&cfg.Device.InputFormat, d.InputFormat)
		setString(&cfg.Device.Video, d.Video)
		setString(&cfg.Device.Audio, d.Audio)
		if d.ChunkBytes != nil {
			cfg.Device.ChunkBytes = *d.ChunkBytes
		}
		if d.SyntheticDeny != nil {
			cfg.Device.SyntheticDeny = *d.SyntheticDeny
		}
		if err := setDuration(&cfg.Device.StopGrace, "device.stop_grace", d.StopGrace); err != nil {
			return err
		}
		if err := setDuration(&cfg.Device.SyntheticInterval, "device.synthetic_interval", d.SyntheticInterval); err != nil {
			return err
		}
	}
	if r := f.Recording; r != nil {
		if err := setDuration(&cfg.Recording.MaxDuration, "recording.max_duration", r.MaxDuration); err != nil {
			return err
		}
		if err := setDuration(&cfg.Recording.TickInterval, "recording.tick_interval", r.TickInterval); err != nil {
			return err
		}
		setString(&cfg.Recording.MediaType, r.MediaType)
		setString(&cfg.Recording.FileName, r.FileName)
		if r.AcquireOnStart != nil {
			cfg.Recording.AcquireOnStart = *r.AcquireOnStart
		}
	}
	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setString(&cfg.Telemetry.Environment, t.Environment)
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(EnvPrefix+"LOG_SERVICE", cfg.LogService)

	cfg.API.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RateLimitRPM = l.envInt(EnvPrefix+"RATE_LIMIT_RPM", cfg.API.RateLimitRPM)
	cfg.API.AllowedOrigins = l.envList(EnvPrefix+"ALLOWED_ORIGINS", cfg.API.AllowedOrigins)

	cfg.Device.Backend = l.envString(EnvPrefix+"DEVICE_BACKEND", cfg.Device.Backend)
	cfg.Device.FFmpegBin = l.envString(EnvPrefix+"FFMPEG_BIN", cfg.Device.FFmpegBin)
	cfg.Device.InputFormat = l.envString(EnvPrefix+"INPUT_FORMAT", cfg.Device.InputFormat)
	cfg.Device.Video = l.envString(EnvPrefix+"VIDEO_DEVICE", cfg.Device.Video)
	cfg.Device.Audio = l.envString(EnvPrefix+"AUDIO_DEVICE", cfg.Device.Audio)
	cfg.Device.ChunkBytes = l.envInt(EnvPrefix+"CHUNK_BYTES", cfg.Device.ChunkBytes)
	cfg.Device.StopGrace = l.envDuration(EnvPrefix+"STOP_GRACE", cfg.Device.StopGrace)
	cfg.Device.SyntheticInterval = l.envDuration(EnvPrefix+"SYNTHETIC_INTERVAL", cfg.Device.SyntheticInterval)
	cfg.Device.SyntheticDeny = l.envBool(EnvPrefix+"SYNTHETIC_DENY", cfg.Device.SyntheticDeny)

	cfg.Recording.MaxDuration = l.envDuration(EnvPrefix+"MAX_DURATION", cfg.Recording.MaxDuration)
	cfg.Recording.TickInterval = l.envDuration(EnvPrefix+"TICK_INTERVAL", cfg.Recording.TickInterval)
	cfg.Recording.MediaType = l.envString(EnvPrefix+"MEDIA_TYPE", cfg.Recording.MediaType)
	cfg.Recording.FileName = l.envString(EnvPrefix+"FILE_NAME", cfg.Recording.FileName)
	cfg.Recording.AcquireOnStart = l.envBool(EnvPrefix+"ACQUIRE_ON_START", cfg.Recording.AcquireOnStart)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString(EnvPrefix+"TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}

// UnknownEnvKeys lists VIDREC_* variables present in the environment that
// the loader did not consume. Typos land here instead of silently vanishing.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv() {
	keys := l.UnknownEnvKeys()
	if len(keys) == 0 {
		return
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Strs("keys", keys).
		Str(log.FieldEvent, "config.unknown_env").
		Msg("ignoring unknown environment variables")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
