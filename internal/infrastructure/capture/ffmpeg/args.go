// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"strings"
)

// Input formats with dedicated argument shapes.
const (
	FormatV4L2         = "v4l2"
	FormatAVFoundation = "avfoundation"
	FormatDShow        = "dshow"
	FormatLavfi        = "lavfi"
)

// InputSpec names the capture devices handed to ffmpeg.
type InputSpec struct {
	Format string // ffmpeg demuxer (v4l2, avfoundation, dshow, lavfi)
	Video  string // video device path or index
	Audio  string // audio device name; empty records video only
}

// BuildCaptureArgs returns the argument list for a live WebM capture to
// stdout. No shell is involved; device names are passed as single args.
func BuildCaptureArgs(in InputSpec) ([]string, error) {
	if in.Video == "" {
		return nil, fmt.Errorf("missing video device")
	}
	format := in.Format
	if format == "" {
		format = FormatV4L2
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error", // stderr is kept for classification
		"-nostats",
	}

	switch format {
	case FormatAVFoundation:
		// One input carries both devices: "video:audio".
		args = append(args, "-f", format, "-i", in.Video+":"+in.Audio)
	case FormatDShow:
		spec := "video=" + in.Video
		if in.Audio != "" {
			spec += ":audio=" + in.Audio
		}
		args = append(args, "-f", format, "-i", spec)
	default:
		args = append(args, "-f", format, "-i", in.Video)
		if in.Audio != "" {
			args = append(args, "-f", audioFormat(format), "-i", in.Audio)
		}
	}

	args = append(args,
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-b:v", "1M",
	)
	if in.Audio != "" {
		args = append(args, "-c:a", "libopus", "-b:a", "96k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-flush_packets", "1",
		"-f", "webm",
		"pipe:1",
	)
	return args, nil
}

// audioFormat picks the companion audio demuxer for split-input formats.
func audioFormat(videoFormat string) string {
	switch strings.ToLower(videoFormat) {
	case FormatLavfi:
		return FormatLavfi
	default:
		return "alsa"
	}
}
