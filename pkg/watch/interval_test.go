package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30s", want: 30 * time.Second},
		{input: "15m", want: 15 * time.Minute},
		{input: "24h", want: 24 * time.Hour},
		{input: "1d", want: day},
		{input: "7d", want: 7 * day},
		{input: "1d12h", want: 36 * time.Hour},
		{input: "2d30m", want: 2*day + 30*time.Minute},
		{input: "weekly", wantErr: true},
		{input: "xd", wantErr: true},
		{input: "1d5y", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{45 * time.Second, "45s"},
		{15 * time.Minute, "15m"},
		{6 * time.Hour, "6h"},
		{90 * time.Minute, "1h30m"},
		{day, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * day, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatInterval(tt.input))
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{5 * time.Minute, 90 * time.Minute, 54 * time.Hour} {
		got, err := ParseInterval(FormatInterval(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}
