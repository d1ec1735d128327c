package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/api"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/gateway"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/hubtest"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/playback"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
)

// roomServer is a minimal in-memory room server. Every change is applied
// and broadcast under one lock, so the broadcast order is the server order.
type roomServer struct {
	mu       sync.Mutex
	hub      *hubtest.Hub
	tokens   map[string]uint64
	users    []events.User
	player   events.PlayerSnapshot
	playlist []events.Entry
	chat     []events.ChatMessage
	nextID   uint64
	requests map[string]int
}

func startRoomServer(t *testing.T) (*roomServer, string) {
	t.Helper()
	s := &roomServer{
		hub:      hubtest.New(zerolog.Nop()),
		tokens:   map[string]uint64{},
		nextID:   100,
		requests: map[string]int{},
	}
	s.hub.Authorize = func(token string) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.tokens[token]
		return ok
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)

	r := chi.NewRouter()
	r.Get("/api/events", s.hub.ServeWS)
	r.Post("/api/{group}/{action}", s.handle)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return s, srv.URL
}

func (s *roomServer) publish(kind events.Kind, payload any) {
	if err := s.hub.Publish(kind, payload); err != nil {
		panic(err)
	}
}

func (s *roomServer) publishPlaylist(action string, data any, top bool) {
	raw, _ := json.Marshal(data)
	s.publish(events.KindPlaylist, events.PlaylistFrame{Action: action, Data: raw, Top: top})
}

func (s *roomServer) count(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[endpoint]
}

func (s *roomServer) playlistIDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []uint64{}
	for _, e := range s.playlist {
		ids = append(ids, e.ID)
	}
	return ids
}

func (s *roomServer) indexOf(id uint64) int {
	return slices.IndexFunc(s.playlist, func(e events.Entry) bool { return e.ID == id })
}

func (s *roomServer) handle(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "group") + "/" + chi.URLParam(r, "action")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[endpoint]++

	userID, authed := s.tokens[r.Header.Get("Authorization")]
	if !authed && endpoint != "user/create" {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	reply := func(v any) { _ = json.NewEncoder(w).Encode(v) }
	decode := func(v any) bool {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			http.Error(w, `{"error":"bad body"}`, http.StatusBadRequest)
			return false
		}
		return true
	}

	switch endpoint {
	case "user/create":
		s.nextID++
		u := events.User{ID: s.nextID, Username: fmt.Sprintf("user%d", s.nextID), Online: true}
		token := fmt.Sprintf("tok-%d", u.ID)
		s.tokens[token] = u.ID
		s.users = append(s.users, u)
		s.publish(events.KindUserCreate, u)
		reply(token)
	case "user/verify":
		reply(userID)
	case "user/getall":
		reply(s.users)
	case "player/get":
		reply(s.player)
	case "player/play", "player/pause", "player/seek":
		var req api.SyncRequest
		if !decode(&req) {
			return
		}
		action := strings.TrimPrefix(endpoint, "player/")
		s.player.Timestamp = req.Timestamp
		if action != events.SyncSeek {
			s.player.Playing = action == events.SyncPlay
		}
		s.publish(events.KindSync, events.Sync{Action: action, Timestamp: req.Timestamp, UserID: userID})
	case "playlist/get":
		reply(s.playlist)
	case "playlist/add":
		var req api.PlaylistAddRequest
		if !decode(&req) {
			return
		}
		s.nextID++
		e := req.Entry
		e.ID = s.nextID
		if req.Top {
			s.playlist = slices.Insert(s.playlist, 0, e)
		} else {
			s.playlist = append(s.playlist, e)
		}
		s.publishPlaylist(events.PlaylistAdd, e, req.Top)
	case "playlist/remove":
		var req events.RemoveData
		if !decode(&req) {
			return
		}
		i := s.indexOf(req.EntryID)
		if i < 0 {
			http.Error(w, `{"error":"no such entry"}`, http.StatusNotFound)
			return
		}
		s.playlist = slices.Delete(s.playlist, i, i+1)
		s.publishPlaylist(events.PlaylistRemove, events.RemoveData{Index: i, EntryID: req.EntryID}, false)
	case "playlist/move":
		var req events.MoveData
		if !decode(&req) {
			return
		}
		i := s.indexOf(req.EntryID)
		if i < 0 || req.DestIndex < 0 || req.DestIndex >= len(s.playlist) {
			http.Error(w, `{"error":"bad move"}`, http.StatusBadRequest)
			return
		}
		e := s.playlist[i]
		s.playlist = slices.Insert(slices.Delete(s.playlist, i, i+1), req.DestIndex, e)
		s.publishPlaylist(events.PlaylistMove, events.MoveData{SourceIndex: i, DestIndex: req.DestIndex, EntryID: e.ID}, false)
	case "chat/get":
		reply(s.chat)
	case "chat/send":
		var req api.ChatSendRequest
		if !decode(&req) {
			return
		}
		s.nextID++
		m := events.ChatMessage{ID: s.nextID, AuthorID: userID, Message: req.Message, UnixTime: 1_700_000_000}
		s.chat = append(s.chat, m)
		s.publish(events.KindMessageCreate, m)
	case "history/get":
		reply([]events.Entry{})
	default:
		http.Error(w, `{"error":"not implemented"}`, http.StatusNotFound)
	}
}

type loopbackClient struct {
	room  *Room
	media *playback.SimulatedMedia
}

func startClient(t *testing.T, baseURL string) *loopbackClient {
	t.Helper()
	sess := session.New("")
	media := playback.NewSimulatedMedia(nil)
	r := New(Config{Media: media, Store: store.NewMemoryStore()}, sess, api.New(baseURL, sess, nil, zerolog.Nop()), zerolog.Nop())
	ws := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/events"
	gw := gateway.New(gateway.Config{URL: ws, ReconnectDelay: 20 * time.Millisecond}, sess, r, r, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = r.Run(ctx) }()
	go func() { defer wg.Done(); _ = gw.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	c := &loopbackClient{room: r, media: media}
	require.Eventually(t, func() bool { return c.state(t).Connected }, 3*time.Second, 10*time.Millisecond)
	return c
}

func (c *loopbackClient) state(t *testing.T) State {
	t.Helper()
	s, err := c.room.State(context.Background())
	require.NoError(t, err)
	return s
}

func (c *loopbackClient) playlistIDs(t *testing.T) []uint64 {
	t.Helper()
	ids := []uint64{}
	for _, row := range c.state(t).Playlist {
		ids = append(ids, row.EntryID)
	}
	return ids
}

func convergeOn(t *testing.T, srv *roomServer, clients ...*loopbackClient) {
	t.Helper()
	require.Eventually(t, func() bool {
		want := srv.playlistIDs()
		for _, c := range clients {
			if !slices.Equal(c.playlistIDs(t), want) {
				return false
			}
		}
		return true
	}, 3*time.Second, 10*time.Millisecond, "server playlist %v", srv.playlistIDs())
}

func TestLoopback_ClientsConverge(t *testing.T) {
	srv, url := startRoomServer(t)
	srv.playlist = entries(1, 2, 3)
	a := startClient(t, url)
	b := startClient(t, url)
	ctx := context.Background()

	require.NoError(t, a.room.PlaylistMove(ctx, 0, 2))
	convergeOn(t, srv, a, b)
	assert.Equal(t, []uint64{2, 3, 1}, srv.playlistIDs())

	require.NoError(t, b.room.PlaylistRemove(ctx, 0))
	convergeOn(t, srv, a, b)
	assert.Equal(t, []uint64{3, 1}, srv.playlistIDs())

	require.NoError(t, a.room.PlaylistAdd(ctx, events.Entry{URL: "https://example.com/new.mp4"}, true))
	convergeOn(t, srv, a, b)
	require.Len(t, srv.playlistIDs(), 3)

	require.NoError(t, b.room.PlaylistMove(ctx, 2, 0))
	convergeOn(t, srv, a, b)
	assert.Equal(t, uint64(1), srv.playlistIDs()[0])

	require.NoError(t, b.room.ChatSend(ctx, "hello"))
	require.Eventually(t, func() bool {
		return len(a.state(t).Chat) == 1 && len(b.state(t).Chat) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", a.state(t).Chat[0].Message)
	assert.Len(t, a.state(t).Users, 2)
}

func TestLoopback_PlaybackIsNotEchoed(t *testing.T) {
	srv, url := startRoomServer(t)
	srv.player = events.PlayerSnapshot{Entry: entry(1)}
	a := startClient(t, url)
	b := startClient(t, url)

	require.NoError(t, a.room.Play(context.Background()))

	require.Eventually(t, func() bool {
		return b.state(t).Player.State == "playing" && b.media.Playing()
	}, 3*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return srv.count("player/play") > 1 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.Zero(t, srv.count("player/pause"))
	assert.True(t, a.media.Playing())
}

func TestLoopback_ReconnectResyncs(t *testing.T) {
	srv, url := startRoomServer(t)
	srv.playlist = entries(1, 2, 3)
	a := startClient(t, url)
	convergeOn(t, srv, a)

	// Changes the client never hears about.
	srv.mu.Lock()
	srv.playlist = entries(3, 5)
	srv.chat = []events.ChatMessage{{ID: 50, AuthorID: 1, Message: "while you were away"}}
	srv.mu.Unlock()
	srv.hub.DisconnectAll()

	convergeOn(t, srv, a)
	require.Eventually(t, func() bool {
		s := a.state(t)
		return s.Connected && len(s.Chat) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
