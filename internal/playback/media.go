package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

type MediaEventKind uint8

const (
	MediaPlayed MediaEventKind = iota
	MediaPaused
	MediaSeeked
)

func (k MediaEventKind) String() string {
	switch k {
	case MediaPlayed:
		return "played"
	case MediaPaused:
		return "paused"
	case MediaSeeked:
		return "seeked"
	}
	return "unknown"
}

// MediaEvent is a callback from the media element. Generation is the value
// passed to the Load that preceded it, so callbacks of a replaced source can
// be told apart.
type MediaEvent struct {
	Kind       MediaEventKind
	Time       float64
	Generation uint64
}

// Media is the player the synchronizer drives. Every Play, Pause and Seek
// call produces exactly one callback on Events, asynchronously, and so do
// the equivalent actions of the user.
type Media interface {
	CurrentTime() float64
	Play() error
	Pause() error
	Seek(seconds float64) error
	Load(entry events.Entry, generation uint64) error
	// Seekable is false for live streams.
	Seekable() bool
	Events() <-chan MediaEvent
}

const mediaEventBuffer = 64

// ErrEventsFull is returned by SimulatedMedia operations while its callback
// buffer is full.
var ErrEventsFull = errors.New("playback: media callback buffer full")

// SimulatedMedia is a headless player driven by a clock. It stands in for
// the browser media element.
type SimulatedMedia struct {
	mu       sync.Mutex
	now      func() time.Time
	position float64
	anchor   time.Time
	playing  bool
	live     bool
	entry    events.Entry
	gen      uint64
	events   chan MediaEvent
	dropped  int
}

func NewSimulatedMedia(now func() time.Time) *SimulatedMedia {
	if now == nil {
		now = time.Now
	}
	return &SimulatedMedia{
		now:    now,
		anchor: now(),
		events: make(chan MediaEvent, mediaEventBuffer),
	}
}

func (m *SimulatedMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime()
}

func (m *SimulatedMedia) currentTime() float64 {
	if !m.playing {
		return m.position
	}
	return m.position + m.now().Sub(m.anchor).Seconds()
}

func (m *SimulatedMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reserve(); err != nil {
		return err
	}
	if !m.playing {
		m.position, m.anchor, m.playing = m.currentTime(), m.now(), true
	}
	m.emit(MediaPlayed)
	return nil
}

func (m *SimulatedMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reserve(); err != nil {
		return err
	}
	if m.playing {
		m.position, m.playing = m.currentTime(), false
	}
	m.emit(MediaPaused)
	return nil
}

func (m *SimulatedMedia) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reserve(); err != nil {
		return err
	}
	if seconds < 0 {
		seconds = 0
	}
	m.position, m.anchor = seconds, m.now()
	m.emit(MediaSeeked)
	return nil
}

func (m *SimulatedMedia) Load(entry events.Entry, generation uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry, m.gen = entry, generation
	m.position, m.anchor, m.playing = 0, m.now(), false
	return nil
}

func (m *SimulatedMedia) Seekable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.live
}

// SetLive marks the loaded source as a live stream.
func (m *SimulatedMedia) SetLive(live bool) {
	m.mu.Lock()
	m.live = live
	m.mu.Unlock()
}

func (m *SimulatedMedia) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *SimulatedMedia) Entry() events.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry
}

// Dropped counts operations refused because nobody drained Events.
func (m *SimulatedMedia) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *SimulatedMedia) Events() <-chan MediaEvent {
	return m.events
}

// reserve refuses an operation whose callback could not be delivered, so a
// caller never waits for a callback that will not come. Only holders of mu
// send on events, so the room checked here is still there in emit.
func (m *SimulatedMedia) reserve() error {
	if len(m.events) == cap(m.events) {
		m.dropped++
		return ErrEventsFull
	}
	return nil
}

func (m *SimulatedMedia) emit(kind MediaEventKind) {
	m.events <- MediaEvent{Kind: kind, Time: m.currentTime(), Generation: m.gen}
}
