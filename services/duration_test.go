package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"2h", 2 * time.Hour},
		{"30s", 30 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"1d", 24 * time.Hour},
		{"0m", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_LargestValues(t *testing.T) {
	got, err := ParseDuration("106751d")
	require.NoError(t, err)
	assert.Equal(t, 106751*24*time.Hour, got)

	got, err = ParseDuration("9223372036854ms")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(math.MaxInt64/int64(time.Millisecond))*time.Millisecond, got)

	_, err = ParseDuration("9223372036855ms")
	var durErr *DurationError
	assert.ErrorAs(t, err, &durErr)
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, input := range []string{"5x", "", "m", "1.5h", "-3m", " 15m", "15 m", "1h30m", "200000d", "9223372036854775807m", "99999999999999999999s"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			var durErr *DurationError
			require.ErrorAs(t, err, &durErr)
			assert.Equal(t, input, durErr.Value)
		})
	}
}
