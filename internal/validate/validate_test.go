// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAccumulates(t *testing.T) {
	v := New()
	v.Range("ChunkBytes", 0, 1, 10)
	v.NotEmpty("FFmpegBin", "  ")
	v.OneOf("Backend", "gstreamer", []string{"ffmpeg", "synthetic"})

	require.False(t, v.IsValid())
	require.Len(t, v.Errors(), 3)

	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors(), 3)
	assert.Contains(t, err.Error(), "ChunkBytes")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidatorValid(t *testing.T) {
	v := New()
	v.Range("n", 5, 1, 10)
	v.DurationRange("d", time.Second, time.Millisecond, time.Minute)
	v.FloatRange("f", 0.5, 0, 1)
	v.ListenAddr("listen", ":8088")
	v.ListenAddr("listen", "127.0.0.1:0")
	require.True(t, v.IsValid())
	require.NoError(t, v.Err())
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		addr string
		ok   bool
	}{
		{":8088", true},
		{"localhost:8088", true},
		{"[::1]:9000", true},
		{"8088", false},
		{"example.com:80", false},
		{":99999", false},
	}
	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("listen", tc.addr)
			assert.Equal(t, tc.ok, v.IsValid(), v.Err())
		})
	}
}

func TestCustom(t *testing.T) {
	v := New()
	v.Custom("MediaType", "audio/ogg", func(val interface{}) error {
		if val.(string) != "video/webm" {
			return errors.New("must be a video container type")
		}
		return nil
	})
	require.EqualError(t, v.Err(), "validation failed for MediaType: must be a video container type")
}
