package buffering

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanWindows(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		size     float64
		want     []window
	}{
		{
			name:     "uneven_tail",
			duration: 75,
			size:     30,
			want:     []window{{0, 30}, {30, 60}, {60, 75}},
		},
		{
			name:     "exact_multiple",
			duration: 60,
			size:     30,
			want:     []window{{0, 30}, {30, 60}},
		},
		{
			name:     "shorter_than_window",
			duration: 12.5,
			size:     30,
			want:     []window{{0, 12.5}},
		},
		{name: "zero_duration", duration: 0, size: 30},
		{name: "nan_duration", duration: math.NaN(), size: 30},
		{name: "infinite_duration", duration: math.Inf(1), size: 30},
		{name: "zero_size", duration: 60, size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planWindows(tt.duration, tt.size)
			if tt.want == nil {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_source_hints(t *testing.T) {
	tests := []struct {
		src   string
		local bool
		manif bool
	}{
		{src: "blob:https://www.example.com/abc", local: true},
		{src: "edl://%20%file.mkv", local: true},
		{src: "https://cdn.example.com/master.m3u8", manif: true},
		{src: "https://cdn.example.com/live/Manifest.MPD?token=1", manif: true},
		{src: "https://cdn.example.com/ss.ism/Manifest#t=10", manif: true},
		{src: "https://cdn.example.com/movie.mp4"},
		{src: "/home/user/videos/m3u8-notes.mkv"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			require.Equal(t, tt.local, isLocalSource(tt.src))
			require.Equal(t, tt.manif, isManifest(tt.src))
		})
	}
}
