package supervisor

import "strings"

// DetectorConfig tunes the repetition guard. The guard inspects only the
// tail of the accumulated text, so per-token cost stays bounded regardless
// of output length.
type DetectorConfig struct {
	// TailWindow is how many trailing bytes of the accumulated text are
	// inspected per token.
	TailWindow int
	// MaxPattern is the longest candidate pattern length considered.
	MaxPattern int
	// ShortPatternMax is the length at or below which a pattern needs
	// ShortRepeats back-to-back occurrences; longer patterns need
	// LongRepeats. Short patterns demand many more repeats because 1-3
	// character runs show up in legitimate formatting (lists, separators).
	ShortPatternMax int
	ShortRepeats    int
	LongRepeats     int
}

// Reference tuning: a 4-char pattern trips after 6 repeats, a 2-char
// pattern only after 25.
func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.TailWindow <= 0 {
		c.TailWindow = 512
	}
	if c.MaxPattern <= 0 {
		c.MaxPattern = 50
	}
	if c.ShortPatternMax <= 0 {
		c.ShortPatternMax = 3
	}
	if c.ShortRepeats <= 0 {
		c.ShortRepeats = 25
	}
	if c.LongRepeats <= 0 {
		c.LongRepeats = 6
	}
	return c
}

// detector is per-generation state; a retry gets a fresh one.
type detector struct {
	cfg DetectorConfig
}

func newDetector(cfg DetectorConfig) *detector {
	return &detector{cfg: cfg.withDefaults()}
}

// Check reports whether the accumulated text now ends in degenerate
// repetition, returning the repeated pattern when it does. Whitespace-only
// candidate patterns are ignored.
func (d *detector) Check(accumulated string) (string, bool) {
	tail := accumulated
	if len(tail) > d.cfg.TailWindow {
		tail = tail[len(tail)-d.cfg.TailWindow:]
	}
	n := len(tail)
	for patLen := 1; patLen <= d.cfg.MaxPattern; patLen++ {
		need := d.cfg.LongRepeats
		if patLen <= d.cfg.ShortPatternMax {
			need = d.cfg.ShortRepeats
		}
		if patLen*need > n {
			// Candidates only get longer from here; with the smaller
			// long-pattern threshold still not fitting, stop.
			if patLen > d.cfg.ShortPatternMax {
				break
			}
			continue
		}
		pat := tail[n-patLen:]
		if strings.TrimSpace(pat) == "" {
			continue
		}
		count := 1
		for count < need {
			start := n - (count+1)*patLen
			if tail[start:start+patLen] != pat {
				break
			}
			count++
		}
		if count >= need {
			return pat, true
		}
	}
	return "", false
}
