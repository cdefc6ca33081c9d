// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/vidrec/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("LogLevel", cfg.LogLevel, []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"})
	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	v.Range("API.RateLimitRPM", cfg.API.RateLimitRPM, 0, 100000)
	for i, origin := range cfg.API.AllowedOrigins {
		v.Custom(fmt.Sprintf("API.AllowedOrigins[%d]", i), origin, validateOrigin)
	}

	v.OneOf("Device.Backend", cfg.Device.Backend, []string{"ffmpeg", "synthetic"})
	if cfg.Device.Backend == "ffmpeg" {
		v.NotEmpty("Device.FFmpegBin", cfg.Device.FFmpegBin)
		v.OneOf("Device.InputFormat", cfg.Device.InputFormat, []string{"v4l2", "avfoundation", "dshow", "lavfi"})
		v.NotEmpty("Device.Video", cfg.Device.Video)
		v.NotEmpty("Device.Audio", cfg.Device.Audio)
		v.Range("Device.ChunkBytes", cfg.Device.ChunkBytes, 512, 16*1024*1024)
		v.DurationRange("Device.StopGrace", cfg.Device.StopGrace, 100*time.Millisecond, time.Minute)
	} else {
		v.DurationRange("Device.SyntheticInterval", cfg.Device.SyntheticInterval, time.Millisecond, time.Minute)
	}

	// The ceiling is only displayed, but zero would render as "00:00".
	v.DurationRange("Recording.MaxDuration", cfg.Recording.MaxDuration, time.Second, 24*time.Hour)
	v.DurationRange("Recording.TickInterval", cfg.Recording.TickInterval, 10*time.Millisecond, time.Minute)
	v.Custom("Recording.MediaType", cfg.Recording.MediaType, func(val interface{}) error {
		_, _, err := mime.ParseMediaType(val.(string))
		return err
	})
	v.NotEmpty("Recording.FileName", cfg.Recording.FileName)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

func validateOrigin(val interface{}) error {
	origin := strings.TrimSpace(val.(string))
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("origin must be scheme://host[:port], got %q", origin)
	}
	return nil
}
