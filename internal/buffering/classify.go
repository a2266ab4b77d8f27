package buffering

import (
	"log/slog"
	"strings"

	"mpv-fullbuffer/internal/media"
)

// Sources built in memory by the player itself. Adaptive players
// virtualize their chunked media through these.
var localSourcePrefixes = []string{"blob:", "memory://", "edl://", "mf://", "fd://", "fdclose://"}

var manifestSuffixes = []string{".m3u8", ".mpd", ".ism/manifest"}

func isLocalSource(src string) bool {
	for _, p := range localSourcePrefixes {
		if strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}

func isManifest(src string) bool {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	src = strings.ToLower(src)
	for _, s := range manifestSuffixes {
		if strings.HasSuffix(src, s) {
			return true
		}
	}
	return false
}

// detectShape classifies the delivery shape once. Source hints decide
// immediately; otherwise the range layout after SettleDelay does. This is
// a heuristic: a segmented source exposing a single range early is
// classified progressive and never corrected.
func (c *Controller) detectShape() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("detect media format", slog.Any("panic", r))
			c.setShape(ShapeSegmented, "classifier failure")
		}
	}()

	src := c.h.Source()
	switch {
	case isLocalSource(src):
		c.setShape(ShapeSegmented, "locally constructed source")
		return
	case isManifest(src):
		c.setShape(ShapeSegmented, "adaptive manifest")
		return
	}
	c.classify = c.sched.After(c.opts.SettleDelay, c.classifyByRanges)
}

func (c *Controller) classifyByRanges() {
	c.classify = nil
	if c.state == StateIdle || c.shape != ShapeUnknown {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("detect media format", slog.Any("panic", r))
			c.setShape(ShapeSegmented, "classifier failure")
		}
	}()

	raw, err := c.h.Buffered()
	if err != nil {
		c.log.Warn("buffered ranges unreadable during detection", slog.String("error", err.Error()))
		c.setShape(ShapeSegmented, "range accessor failed")
		return
	}
	if len(media.Normalize(raw)) > 1 {
		c.setShape(ShapeSegmented, "multiple buffered ranges")
		return
	}
	c.setShape(ShapeProgressive, "single buffered range")
}

func (c *Controller) setShape(s Shape, reason string) {
	if c.shape != ShapeUnknown {
		return
	}
	c.shape = s
	c.log.Info("media format detected", slog.String("shape", s.String()), slog.String("reason", reason))
	c.rec.Classified(s)
}
