// Package guard suppresses media callbacks caused by the client's own
// programmatic operations so they are not reported back as user intents.
package guard

import "github.com/rs/zerolog"

type Kind uint8

const (
	Play Kind = iota
	Pause
	Seek

	kindCount
)

func (k Kind) String() string {
	switch k {
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Seek:
		return "seek"
	}
	return "unknown"
}

// Guard holds one suppression slot per kind. A second Arm before the first
// callback queues behind it: every Arm is consumed by exactly one callback.
// Not safe for concurrent use; it belongs to the room loop.
type Guard struct {
	pending [kindCount]int
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Guard {
	return &Guard{log: log}
}

// Arm must be called right before the media operation that will emit the
// matching callback.
func (g *Guard) Arm(k Kind) {
	if k >= kindCount {
		return
	}
	if g.pending[k] > 0 {
		g.log.Debug().Str("kind", k.String()).Int("pending", g.pending[k]).Msg("guard: overlapping programmatic operation queued")
	}
	g.pending[k]++
}

// ConsumeOrForward is called from the media callback. It returns true when
// the callback was not caused by the client and must be sent to the server.
func (g *Guard) ConsumeOrForward(k Kind) bool {
	if k >= kindCount {
		return true
	}
	if g.pending[k] > 0 {
		g.pending[k]--
		return false
	}
	return true
}

// Disarm takes back one Arm whose media operation failed and will never
// produce a callback.
func (g *Guard) Disarm(k Kind) {
	if k < kindCount && g.pending[k] > 0 {
		g.pending[k]--
	}
}

func (g *Guard) Armed(k Kind) bool {
	return k < kindCount && g.pending[k] > 0
}

// Reset drops every pending suppression, e.g. when the media source changes
// and the old callbacks will never fire.
func (g *Guard) Reset() {
	g.pending = [kindCount]int{}
}
