package chat

import "time"

// RevealSpeed controls how fast one-shot replies are revealed. Streamed
// replies are shown as they arrive and ignore it.
type RevealSpeed int

const (
	RevealInstant RevealSpeed = iota // show everything immediately
	RevealFast                       // 32 runes per tick
	RevealNormal                     // 8 runes per tick (default)
)

// String returns a human-readable label for the speed.
func (s RevealSpeed) String() string {
	switch s {
	case RevealInstant:
		return "instant"
	case RevealFast:
		return "fast"
	case RevealNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// RevealConfig holds reveal parameters.
type RevealConfig struct {
	Speed     RevealSpeed
	ChunkSize int           // runes per tick (0 means instant)
	TickRate  time.Duration // delay between ticks
}

// RevealConfigForSpeed returns the preset for s.
func RevealConfigForSpeed(s RevealSpeed) RevealConfig {
	switch s {
	case RevealInstant:
		return RevealConfig{Speed: RevealInstant}
	case RevealFast:
		return RevealConfig{Speed: RevealFast, ChunkSize: 32, TickRate: 16 * time.Millisecond}
	default:
		return RevealConfig{Speed: RevealNormal, ChunkSize: 8, TickRate: 16 * time.Millisecond}
	}
}

// NextRevealSpeed cycles: normal → fast → instant → normal.
func NextRevealSpeed(current RevealSpeed) RevealSpeed {
	switch current {
	case RevealNormal:
		return RevealFast
	case RevealFast:
		return RevealInstant
	default:
		return RevealNormal
	}
}

// reveal tracks the progressive display of one finished reply.
type reveal struct {
	text []rune
	pos  int
}

func (r *reveal) active() bool {
	return r.text != nil
}

func (r *reveal) start(text string) {
	r.text = []rune(text)
	r.pos = 0
}

// advance moves forward n runes and reports whether the reveal finished.
func (r *reveal) advance(n int) bool {
	r.pos = min(r.pos+n, len(r.text))
	return r.pos >= len(r.text)
}

func (r *reveal) shown() string {
	return string(r.text[:r.pos])
}

func (r *reveal) stop() {
	r.text = nil
	r.pos = 0
}
