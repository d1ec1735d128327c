package control

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.room.State(r.Context())
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxJournalLimit)
	}
	records, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("control: read journal")
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.Play(r.Context()))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.Pause(r.Context()))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.Next(r.Context()))
}

func (s *Server) handleSetEntry(w http.ResponseWriter, r *http.Request) {
	var e events.Entry
	if !decodeBody(w, r, &e) {
		return
	}
	accepted(w, s.room.SetEntry(r.Context(), e))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timestamp *float64 `json:"timestamp"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Timestamp == nil || *body.Timestamp < 0 {
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	}
	accepted(w, s.room.Seek(r.Context(), *body.Timestamp))
}

type toggleBody struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	accepted(w, s.room.SetAutoplay(r.Context(), *body.Enabled))
}

func (s *Server) handleLooping(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	accepted(w, s.room.SetLooping(r.Context(), *body.Enabled))
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	accepted(w, s.room.UpdateTitle(r.Context(), body.Title))
}

func (s *Server) handlePlaylistAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		events.Entry
		Top bool `json:"top"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	accepted(w, s.room.PlaylistAdd(r.Context(), body.Entry, body.Top))
}

func (s *Server) handlePlaylistMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source *int `json:"source"`
		Dest   *int `json:"dest"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Source == nil || body.Dest == nil {
		writeError(w, http.StatusBadRequest, "source and dest are required")
		return
	}
	accepted(w, s.room.PlaylistMove(r.Context(), *body.Source, *body.Dest))
}

func (s *Server) handlePlaylistClear(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.PlaylistClear(r.Context()))
}

func (s *Server) handlePlaylistShuffle(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.PlaylistShuffle(r.Context()))
}

func (s *Server) handlePlaylistRemove(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	accepted(w, s.room.PlaylistRemove(r.Context(), index))
}

func (s *Server) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var e events.Entry
	if !decodeBody(w, r, &e) {
		return
	}
	e.ID = id
	accepted(w, s.room.PlaylistUpdate(r.Context(), e))
}

type messageBody struct {
	Message string `json:"message"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}
	accepted(w, s.room.ChatSend(r.Context(), body.Message))
}

func (s *Server) handleChatEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}
	accepted(w, s.room.ChatEdit(r.Context(), id, body.Message))
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	accepted(w, s.room.ChatDelete(r.Context(), id))
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	accepted(w, s.room.HistoryClear(r.Context()))
}

func (s *Server) handleUpdateName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	accepted(w, s.room.UpdateName(r.Context(), body.Username))
}

// prefKey maps a public preference name to its store key. The session
// token is never exposed.
func prefKey(name string) (string, bool) {
	switch name {
	case store.KeyToken:
		return "", false
	case store.KeyTab, store.KeySubtitle:
		return name, true
	}
	key := store.PrefKey(name)
	return key, store.ValidKey(key)
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "key")
	key, ok := prefKey(name)
	if !ok {
		writeError(w, http.StatusForbidden, "preference not accessible")
		return
	}
	v, err := s.store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "preference not set")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("control: read preference")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": name, "value": v})
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "key")
	key, ok := prefKey(name)
	if !ok {
		writeError(w, http.StatusForbidden, "preference not accessible")
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.store.Set(r.Context(), key, body.Value); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("control: write preference")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": name, "value": body.Value})
}
