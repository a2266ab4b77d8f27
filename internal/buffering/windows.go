package buffering

import "math"

// window is one fixed-size slice of media time walked by the segmented
// strategy. End is clipped to the media duration.
type window struct {
	Start float64
	End   float64
}

// planWindows partitions [0, duration) into ascending windows of size
// seconds. The last window may be shorter.
func planWindows(duration, size float64) []window {
	if size <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil
	}
	windows := make([]window, 0, int(math.Ceil(duration/size)))
	for i := 0; ; i++ {
		start := float64(i) * size
		if start >= duration {
			break
		}
		windows = append(windows, window{Start: start, End: math.Min(start+size, duration)})
	}
	return windows
}
