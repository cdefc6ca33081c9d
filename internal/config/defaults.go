// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "vidrec",
		API: APIConfig{
			ListenAddr:   "127.0.0.1:8088",
			RateLimitRPM: 120,
		},
		Device: DeviceConfig{
			Backend:           "ffmpeg",
			FFmpegBin:         "ffmpeg",
			InputFormat:       "v4l2",
			Video:             "/dev/video0",
			Audio:             "default",
			ChunkBytes:        64 * 1024,
			StopGrace:         3 * time.Second,
			SyntheticInterval: 250 * time.Millisecond,
		},
		Recording: RecordingConfig{
			MaxDuration:    45 * time.Minute,
			TickInterval:   time.Second,
			MediaType:      "video/webm",
			FileName:       "RecordedVideo.webm",
			AcquireOnStart: true,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
