package media

import (
	"math"
	"sort"
)

// Range is a half-open interval [Start, End) of retained media time, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Ranges is an ascending sequence of disjoint ranges.
type Ranges []Range

// Normalize returns a sorted copy of in with invalid ranges dropped and
// overlapping or touching ranges merged.
func Normalize(in []Range) Ranges {
	out := make(Ranges, 0, len(in))
	for _, r := range in {
		if math.IsNaN(r.Start) || math.IsNaN(r.End) || r.End <= r.Start {
			continue
		}
		if r.Start < 0 {
			r.Start = 0
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	merged := out[:1]
	for _, r := range out[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// RangesOf reads the buffered ranges of h. It never fails: a missing
// handle, an accessor error or a panicking accessor all yield an empty set.
// Ranges are clipped to the media duration when it is known. The result is
// read fresh on every call because players mutate it without notice.
func RangesOf(h Handle) (rs Ranges) {
	if h == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			rs = nil
		}
	}()

	raw, err := h.Buffered()
	if err != nil {
		return nil
	}
	rs = Normalize(raw)

	d := h.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return rs
	}
	clipped := rs[:0]
	for _, r := range rs {
		if r.Start >= d {
			continue
		}
		if r.End > d {
			r.End = d
		}
		clipped = append(clipped, r)
	}
	if len(clipped) == 0 {
		return nil
	}
	return clipped
}

// Containing returns the range with Start <= t < End.
func (rs Ranges) Containing(t float64) (Range, bool) {
	for _, r := range rs {
		if r.Start <= t && t < r.End {
			return r, true
		}
	}
	return Range{}, false
}

// CoverageAt returns the end of the range covering t, or 0 if none does.
func (rs Ranges) CoverageAt(t float64) float64 {
	if r, ok := rs.Containing(t); ok {
		return r.End
	}
	return 0
}

// MaxEnd returns the furthest covered instant.
func (rs Ranges) MaxEnd() float64 {
	max := 0.0
	for _, r := range rs {
		if r.End > max {
			max = r.End
		}
	}
	return max
}

// Covers reports whether a single range contains [start, end].
func (rs Ranges) Covers(start, end float64) bool {
	for _, r := range rs {
		if r.Start <= start && r.End >= end {
			return true
		}
	}
	return false
}

// FullyCovered reports whether one range spans from 0 to duration-eps.
// eps absorbs trailing-edge encoder artifacts.
func (rs Ranges) FullyCovered(duration, eps float64) bool {
	for _, r := range rs {
		if r.Start <= 0 && r.End >= duration-eps {
			return true
		}
	}
	return false
}

const (
	futureDataAhead = 0.5
	enoughDataAhead = 5.0
)

// ReadyStateFor derives a ready state from retained ranges, for players
// that do not report one natively.
func ReadyStateFor(rs Ranges, position, duration float64) ReadyState {
	if math.IsNaN(duration) || duration <= 0 {
		return HaveNothing
	}
	end := rs.CoverageAt(position)
	if end == 0 {
		return HaveMetadata
	}
	ahead := end - position
	switch {
	case ahead >= enoughDataAhead, end >= duration-futureDataAhead:
		return HaveEnoughData
	case ahead >= futureDataAhead:
		return HaveFutureData
	default:
		return HaveCurrentData
	}
}
