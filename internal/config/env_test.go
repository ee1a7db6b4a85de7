package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"10s", 10 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"900", 900 * time.Second, false},
		{" 30 ", 30 * time.Second, false},
		{"0", 0, false},
		{"ten", 0, true},
		{"12abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CREDX_TEST_STRING", "  value  ")
	t.Setenv("CREDX_TEST_EMPTY", "")
	t.Setenv("CREDX_TEST_DURATION", "45s")
	t.Setenv("CREDX_TEST_BAD_DURATION", "soon")

	s := "default"
	StringFromEnv(&s, "CREDX_TEST_STRING")
	assert.Equal(t, "value", s)

	s = "default"
	StringFromEnv(&s, "CREDX_TEST_EMPTY")
	StringFromEnv(&s, "CREDX_TEST_UNSET")
	assert.Equal(t, "default", s)

	d := time.Second
	require.NoError(t, DurationFromEnv(&d, "CREDX_TEST_DURATION"))
	assert.Equal(t, 45*time.Second, d)

	require.NoError(t, DurationFromEnv(&d, "CREDX_TEST_UNSET"))
	assert.Equal(t, 45*time.Second, d)

	err := DurationFromEnv(&d, "CREDX_TEST_BAD_DURATION")
	assert.ErrorContains(t, err, "CREDX_TEST_BAD_DURATION")
}
