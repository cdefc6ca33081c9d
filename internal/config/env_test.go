// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("VIDREC_T_INT", "42")
	t.Setenv("VIDREC_T_BAD_INT", "forty")
	t.Setenv("VIDREC_T_DUR", "1500ms")
	t.Setenv("VIDREC_T_BOOL", "yes")
	t.Setenv("VIDREC_T_FLOAT", "0.25")
	t.Setenv("VIDREC_T_EMPTY", "")

	assert.Equal(t, 42, ParseInt("VIDREC_T_INT", 1))
	assert.Equal(t, 1, ParseInt("VIDREC_T_BAD_INT", 1))
	assert.Equal(t, 1500*time.Millisecond, ParseDuration("VIDREC_T_DUR", time.Second))
	assert.True(t, ParseBool("VIDREC_T_BOOL", false))
	assert.InDelta(t, 0.25, ParseFloat("VIDREC_T_FLOAT", 1), 1e-9)
	assert.Equal(t, "fallback", ParseString("VIDREC_T_EMPTY", "fallback"))
	assert.Equal(t, "fallback", ParseString("VIDREC_T_MISSING", "fallback"))
}
