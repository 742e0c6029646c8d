package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeParam(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		endOfDay bool
		want     time.Time
	}{
		{"date from", "2024-01-20", false, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{"date to covers whole day", "2024-01-20", true, time.Date(2024, 1, 20, 23, 59, 59, 999999999, time.UTC)},
		{"rfc3339 to unchanged", "2024-01-20T10:30:00Z", true, time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 offset normalized", "2024-01-20T18:30:00+08:00", false, time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeParam(tt.raw, tt.endOfDay)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseTimeParam("yesterday", true)
	assert.Error(t, err)
}
