// Package control exposes a room over local HTTP: its current state, the
// local actions and the client-side preferences.
package control

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/journal"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/room"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
)

// Room is the part of *room.Room the control surface drives.
type Room interface {
	State(ctx context.Context) (room.State, error)

	SetEntry(ctx context.Context, e events.Entry) error
	Next(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, ts float64) error
	SetAutoplay(ctx context.Context, on bool) error
	SetLooping(ctx context.Context, on bool) error
	UpdateTitle(ctx context.Context, title string) error

	PlaylistAdd(ctx context.Context, e events.Entry, top bool) error
	PlaylistRemove(ctx context.Context, index int) error
	PlaylistMove(ctx context.Context, src, dst int) error
	PlaylistClear(ctx context.Context) error
	PlaylistShuffle(ctx context.Context) error
	PlaylistUpdate(ctx context.Context, e events.Entry) error

	ChatSend(ctx context.Context, message string) error
	ChatEdit(ctx context.Context, id uint64, message string) error
	ChatDelete(ctx context.Context, id uint64) error

	HistoryClear(ctx context.Context) error
	UpdateName(ctx context.Context, name string) error
}

var _ Room = (*room.Room)(nil)

// Journal reads recorded events. *journal.Journal implements it.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}

type Server struct {
	room    Room
	store   store.Store
	journal Journal
	log     zerolog.Logger
}

// NewServer returns a control server. journal may be nil when no journal
// is kept.
func NewServer(r Room, s store.Store, j Journal, log zerolog.Logger) *Server {
	return &Server{
		room:    r,
		store:   s,
		journal: j,
		log:     log.With().Str("component", "control").Logger(),
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/journal", s.handleJournal)

	r.Route("/player", func(r chi.Router) {
		r.Post("/play", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/next", s.handleNext)
		r.Post("/set", s.handleSetEntry)
		r.Post("/seek", s.handleSeek)
		r.Post("/autoplay", s.handleAutoplay)
		r.Post("/looping", s.handleLooping)
		r.Post("/title", s.handleTitle)
	})

	r.Route("/playlist", func(r chi.Router) {
		r.Post("/", s.handlePlaylistAdd)
		r.Post("/move", s.handlePlaylistMove)
		r.Post("/clear", s.handlePlaylistClear)
		r.Post("/shuffle", s.handlePlaylistShuffle)
		r.Delete("/{index}", s.handlePlaylistRemove)
		r.Patch("/{id}", s.handlePlaylistUpdate)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Post("/", s.handleChatSend)
		r.Patch("/{id}", s.handleChatEdit)
		r.Delete("/{id}", s.handleChatDelete)
	})

	r.Post("/history/clear", s.handleHistoryClear)
	r.Patch("/me", s.handleUpdateName)

	r.Get("/prefs/{key}", s.handleGetPref)
	r.Put("/prefs/{key}", s.handleSetPref)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "room-client",
	})
}
