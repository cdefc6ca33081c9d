// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and hot-reloads the recorder configuration.
package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string

	API       APIConfig
	Device    DeviceConfig
	Recording RecordingConfig
	Telemetry TelemetryConfig
}

// APIConfig configures the control API listener.
type APIConfig struct {
	ListenAddr   string
	RateLimitRPM int
	// AllowedOrigins may issue state-changing requests and open the event
	// stream in addition to the same origin.
	AllowedOrigins []string
}

// DeviceConfig selects and tunes the capture backend.
type DeviceConfig struct {
	Backend     string // "ffmpeg" or "synthetic"
	FFmpegBin   string
	InputFormat string // "v4l2" or "avfoundation"
	Video       string
	Audio       string
	ChunkBytes  int
	StopGrace   time.Duration

	// SyntheticInterval is the delivery cadence of the synthetic backend.
	SyntheticInterval time.Duration
	// SyntheticDeny makes the synthetic backend refuse access.
	SyntheticDeny bool
}

// RecordingConfig parameterizes the recording session.
type RecordingConfig struct {
	MaxDuration    time.Duration
	TickInterval   time.Duration
	MediaType      string
	FileName       string
	AcquireOnStart bool
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// FileConfig mirrors the YAML layout. Pointer fields distinguish "unset"
// from zero values so file entries only override what they name.
type FileConfig struct {
	Log       *FileLog       `yaml:"log"`
	API       *FileAPI       `yaml:"api"`
	Device    *FileDevice    `yaml:"device"`
	Recording *FileRecording `yaml:"recording"`
	Telemetry *FileTelemetry `yaml:"telemetry"`
}

type FileLog struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type FileAPI struct {
	ListenAddr     string   `yaml:"listen_addr"`
	RateLimitRPM   *int     `yaml:"rate_limit_rpm"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type FileDevice struct {
	Backend           string `yaml:"backend"`
	FFmpegBin         string `yaml:"ffmpeg_bin"`
	InputFormat       string `yaml:"input_format"`
	Video             string `yaml:"video"`
	Audio             string `yaml:"audio"`
	ChunkBytes        *int   `yaml:"chunk_bytes"`
	StopGrace         string `yaml:"stop_grace"`
	SyntheticInterval string `yaml:"synthetic_interval"`
	SyntheticDeny     *bool  `yaml:"synthetic_deny"`
}

type FileRecording struct {
	MaxDuration    string `yaml:"max_duration"`
	TickInterval   string `yaml:"tick_interval"`
	MediaType      string `yaml:"media_type"`
	FileName       string `yaml:"file_name"`
	AcquireOnStart *bool  `yaml:"acquire_on_start"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled"`
	Exporter     string   `yaml:"exporter"`
	Endpoint     string   `yaml:"endpoint"`
	SamplingRate *float64 `yaml:"sampling_rate"`
	Environment  string   `yaml:"environment"`
}
