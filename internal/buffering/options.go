package buffering

import "time"

// Options tunes the controller. Zero fields take their defaults.
type Options struct {
	// SettleDelay is how long the classifier waits before inspecting ranges.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// EndSeekOffset is how far before the end the progressive strategy seeks, in seconds.
	EndSeekOffset float64 `yaml:"end_seek_offset"`
	// ProgressivePoll is the progressive coverage poll interval.
	ProgressivePoll time.Duration `yaml:"progressive_poll"`

	// WindowSize is the segmented strategy's window length.
	WindowSize time.Duration `yaml:"window_size"`
	// WindowPoll is the per-window coverage poll interval.
	WindowPoll time.Duration `yaml:"window_poll"`
	// WindowSettle is the pause between a covered window and the next seek.
	WindowSettle time.Duration `yaml:"window_settle"`

	// SeekDebounce is the quiet period after user seeks.
	SeekDebounce time.Duration `yaml:"seek_debounce"`
	// SeekGrace leaves the player's own lookahead a chance after a seek
	// into an unbuffered region.
	SeekGrace time.Duration `yaml:"seek_grace"`

	// EndTolerance is the trailing slack, in seconds, accepted as full coverage.
	EndTolerance float64 `yaml:"end_tolerance"`
	// LookaheadRatio is the minimum buffered-ahead share of the remaining
	// duration on playback start.
	LookaheadRatio float64 `yaml:"lookahead_ratio"`

	// PollCeiling bounds the polls spent waiting for one coverage target.
	// 0 polls forever, so a stalled fetch blocks the episode indefinitely.
	PollCeiling int `yaml:"poll_ceiling"`
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		SettleDelay:     time.Second,
		EndSeekOffset:   0.1,
		ProgressivePoll: time.Second,
		WindowSize:      30 * time.Second,
		WindowPoll:      500 * time.Millisecond,
		WindowSettle:    100 * time.Millisecond,
		SeekDebounce:    300 * time.Millisecond,
		SeekGrace:       time.Second,
		EndTolerance:    1,
		LookaheadRatio:  0.25,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SettleDelay <= 0 {
		o.SettleDelay = def.SettleDelay
	}
	if o.EndSeekOffset <= 0 {
		o.EndSeekOffset = def.EndSeekOffset
	}
	if o.ProgressivePoll <= 0 {
		o.ProgressivePoll = def.ProgressivePoll
	}
	if o.WindowSize <= 0 {
		o.WindowSize = def.WindowSize
	}
	if o.WindowPoll <= 0 {
		o.WindowPoll = def.WindowPoll
	}
	if o.WindowSettle <= 0 {
		o.WindowSettle = def.WindowSettle
	}
	if o.SeekDebounce <= 0 {
		o.SeekDebounce = def.SeekDebounce
	}
	if o.SeekGrace <= 0 {
		o.SeekGrace = def.SeekGrace
	}
	if o.EndTolerance <= 0 {
		o.EndTolerance = def.EndTolerance
	}
	if o.LookaheadRatio <= 0 {
		o.LookaheadRatio = def.LookaheadRatio
	}
	if o.PollCeiling < 0 {
		o.PollCeiling = 0
	}
	return o
}
