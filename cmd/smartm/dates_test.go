package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.Local) // a Wednesday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2024-04-10"},
		{"2024-03-01", "2024-03-01"},
		{"2024-03-01T08:30:00", "2024-03-01"},
		{"today", "2024-04-10"},
		{"Yesterday", "2024-04-09"},
		{"tomorrow", "2024-04-11"},
		{"in 3 days", "2024-04-13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDay(tt.in, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDay_Unrecognized(t *testing.T) {
	_, err := parseDay("whenever", time.Now())
	assert.Error(t, err)
}
