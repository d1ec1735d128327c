// Package playback keeps the local player in step with the room's
// authoritative playback state.
package playback

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/guard"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/reconcile"
)

// MaxDesync is the drift in seconds tolerated before a corrective seek.
const MaxDesync = 1.5

type State uint8

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Outbound receives user-initiated playback intents that must reach the
// server.
type Outbound interface {
	Play(timestamp float64)
	Pause(timestamp float64)
	Seek(timestamp float64)
}

// Snapshot is the observable playback state.
type Snapshot struct {
	State          string       `json:"state"`
	CurrentEntryID uint64       `json:"currentEntryId"`
	Entry          events.Entry `json:"entry"`
	Timestamp      float64      `json:"timestamp"`
	Playing        bool         `json:"playing"`
	Autoplay       bool         `json:"autoplay"`
	Looping        bool         `json:"looping"`
}

// Synchronizer owns the playback state machine. It is not safe for
// concurrent use; the room loop drives it.
type Synchronizer struct {
	media     Media
	guard     *guard.Guard
	out       Outbound
	maxDesync float64
	log       zerolog.Logger

	state      State
	entry      events.Entry
	subtitles  *reconcile.List[events.Subtitle]
	generation uint64
	autoplay   bool
	looping    bool
}

func NewSynchronizer(g *guard.Guard, out Outbound, maxDesync float64, log zerolog.Logger) *Synchronizer {
	if maxDesync <= 0 {
		maxDesync = MaxDesync
	}
	log = log.With().Str("component", "playback").Logger()
	return &Synchronizer{
		guard:     g,
		out:       out,
		maxDesync: maxDesync,
		log:       log,
		subtitles: reconcile.NewList("subtitles", func(s events.Subtitle) uint64 { return s.ID }, log),
	}
}

// Attach installs the media element. Until then sync events are dropped.
func (s *Synchronizer) Attach(m Media) {
	s.media = m
	if m != nil && s.entry.URL != "" {
		s.generation++
		s.guard.Reset()
		if err := m.Load(s.withSubtitles(), s.generation); err != nil {
			s.log.Warn().Err(err).Msg("playback: load on attach failed")
		}
		s.state = Paused
	}
}

func (s *Synchronizer) Media() Media { return s.media }

func (s *Synchronizer) State() State { return s.state }

func (s *Synchronizer) Entry() events.Entry { return s.withSubtitles() }

func (s *Synchronizer) Subtitles() *reconcile.List[events.Subtitle] { return s.subtitles }

func (s *Synchronizer) Snapshot() Snapshot {
	snap := Snapshot{
		State:          s.state.String(),
		CurrentEntryID: s.entry.ID,
		Entry:          s.withSubtitles(),
		Playing:        s.state == Playing,
		Autoplay:       s.autoplay,
		Looping:        s.looping,
	}
	if s.media != nil {
		snap.Timestamp = s.media.CurrentTime()
	}
	return snap
}

func (s *Synchronizer) withSubtitles() events.Entry {
	e := s.entry
	e.Subtitles = s.subtitles.Items()
	return e
}

// HandleSync applies a server sync event.
func (s *Synchronizer) HandleSync(ev events.Sync) {
	if s.media == nil {
		s.log.Warn().Str("action", ev.Action).Msg("playback: player not initialized, sync dropped")
		return
	}
	switch ev.Action {
	case events.SyncPlay:
		s.Resync(ev.Timestamp)
		s.ensure(Playing)
	case events.SyncPause:
		s.Resync(ev.Timestamp)
		s.ensure(Paused)
	case events.SyncSeek:
		s.Resync(ev.Timestamp)
	}
}

// Resync seeks to ts when the local clock drifted more than the tolerance.
// It reports whether a corrective seek was issued.
func (s *Synchronizer) Resync(ts float64) bool {
	if s.media == nil {
		s.log.Warn().Msg("playback: player not initialized, resync skipped")
		return false
	}
	if !s.media.Seekable() {
		return false
	}
	desync := ts - s.media.CurrentTime()
	if math.Abs(desync) <= s.maxDesync {
		return false
	}
	s.guard.Arm(guard.Seek)
	if err := s.media.Seek(ts); err != nil {
		s.guard.Disarm(guard.Seek)
		s.log.Warn().Err(err).Float64("timestamp", ts).Msg("playback: corrective seek failed")
		return false
	}
	s.log.Debug().Float64("desync", desync).Float64("timestamp", ts).Msg("playback: desync corrected")
	return true
}

// ensure moves the player into want, arming the guard for the callback the
// media operation will produce. Already being in want is a no-op.
func (s *Synchronizer) ensure(want State) {
	if s.state == want {
		return
	}
	var err error
	switch want {
	case Playing:
		s.guard.Arm(guard.Play)
		if err = s.media.Play(); err != nil {
			s.guard.Disarm(guard.Play)
		}
	case Paused:
		s.guard.Arm(guard.Pause)
		if err = s.media.Pause(); err != nil {
			s.guard.Disarm(guard.Pause)
		}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("state", want.String()).Msg("playback: media operation failed")
		return
	}
	s.state = want
}

// HandleSet replaces the current entry for playerset and playernext.
func (s *Synchronizer) HandleSet(ev events.PlayerSet) {
	next := ev.NewEntry
	if next.ID == s.entry.ID && next.URL == s.entry.URL {
		return
	}
	s.setEntry(next)
	if s.state == Paused && s.autoplay {
		s.ensure(Playing)
	}
}

func (s *Synchronizer) setEntry(e events.Entry) {
	s.guard.Reset()
	s.generation++
	s.entry = e
	s.entry.Subtitles = nil
	s.subtitles.ReplaceAll(e.Subtitles)

	if e.URL == "" {
		if s.media != nil {
			// Unloading stops the media without a callback.
			if err := s.media.Load(e, s.generation); err != nil {
				s.log.Warn().Err(err).Msg("playback: unload failed")
			}
		}
		s.state = Stopped
		return
	}
	if s.media == nil {
		s.log.Warn().Uint64("entry", e.ID).Msg("playback: player not initialized, entry kept without loading")
		s.state = Stopped
		return
	}
	if err := s.media.Load(s.withSubtitles(), s.generation); err != nil {
		s.log.Warn().Err(err).Uint64("entry", e.ID).Msg("playback: load failed")
		s.state = Stopped
		return
	}
	s.state = Paused
}

// Load applies a full snapshot, used after (re)connecting.
func (s *Synchronizer) Load(snap events.PlayerSnapshot) {
	s.autoplay, s.looping = snap.Autoplay, snap.Looping
	if snap.Entry.ID != s.entry.ID || snap.Entry.URL != s.entry.URL {
		s.setEntry(snap.Entry)
	} else {
		s.entry.Title = snap.Entry.Title
		s.subtitles.ReplaceAll(snap.Entry.Subtitles)
	}
	if s.media == nil || s.state == Stopped {
		return
	}
	s.Resync(snap.Timestamp)
	if snap.Playing {
		s.ensure(Playing)
	} else {
		s.ensure(Paused)
	}
}

func (s *Synchronizer) SetAutoplay(on bool) { s.autoplay = on }
func (s *Synchronizer) SetLooping(on bool)  { s.looping = on }
func (s *Synchronizer) Autoplay() bool      { return s.autoplay }
func (s *Synchronizer) Looping() bool       { return s.looping }

func (s *Synchronizer) UpdateTitle(title string) {
	s.entry.Title = title
}

func (s *Synchronizer) AttachSubtitle(sub events.Subtitle) {
	s.subtitles.Add(sub, reconcile.Append)
}

func (s *Synchronizer) RenameSubtitle(id uint64, name string) {
	s.subtitles.UpdateByID(id, func(sub *events.Subtitle) { sub.Name = name })
}

func (s *Synchronizer) DeleteSubtitle(id uint64) {
	s.subtitles.RemoveByID(id)
}

func (s *Synchronizer) ShiftSubtitle(id uint64, shift float64) {
	s.subtitles.UpdateByID(id, func(sub *events.Subtitle) { sub.Shift = shift })
}

// OnMediaEvent handles a media callback. Callbacks armed by the
// synchronizer are swallowed; the rest are user actions and go out.
func (s *Synchronizer) OnMediaEvent(ev MediaEvent) {
	if ev.Generation != s.generation {
		s.log.Debug().Str("kind", ev.Kind.String()).Msg("playback: callback from replaced source ignored")
		return
	}
	switch ev.Kind {
	case MediaPlayed:
		s.state = Playing
		if s.guard.ConsumeOrForward(guard.Play) {
			s.out.Play(ev.Time)
		}
	case MediaPaused:
		s.state = Paused
		if s.guard.ConsumeOrForward(guard.Pause) {
			s.out.Pause(ev.Time)
		}
	case MediaSeeked:
		if s.guard.ConsumeOrForward(guard.Seek) {
			s.out.Seek(ev.Time)
		}
	}
}

// PlayLocal starts playback on behalf of the local user: the media is
// driven with the guard armed and the caller sends the request itself.
func (s *Synchronizer) PlayLocal() bool {
	if s.media == nil {
		return false
	}
	s.ensure(Playing)
	return s.state == Playing
}

func (s *Synchronizer) PauseLocal() bool {
	if s.media == nil {
		return false
	}
	s.ensure(Paused)
	return s.state == Paused
}

func (s *Synchronizer) SeekLocal(ts float64) bool {
	if s.media == nil || !s.media.Seekable() {
		return false
	}
	s.guard.Arm(guard.Seek)
	if err := s.media.Seek(ts); err != nil {
		s.guard.Disarm(guard.Seek)
		s.log.Warn().Err(err).Msg("playback: seek failed")
		return false
	}
	return true
}

// CurrentTime is the media clock, or 0 without media.
func (s *Synchronizer) CurrentTime() float64 {
	if s.media == nil {
		return 0
	}
	return s.media.CurrentTime()
}
