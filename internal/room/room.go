// Package room holds the synchronized state of one watch room and
// coordinates local actions with the events the server pushes back.
//
// All state is owned by a single loop goroutine (Run). Gateway callbacks,
// media callbacks, request completions and public actions are executed as
// tasks on that loop, so nothing in here is locked.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/api"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/guard"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/playback"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/reconcile"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/view"
)

const (
	taskBuffer     = 256
	chatFetchCount = 100
)

var (
	ErrStopped    = errors.New("room: stopped")
	ErrNoMedia    = errors.New("room: player not initialized")
	ErrOutOfRange = errors.New("room: index out of range")
	ErrNotFound   = errors.New("room: no such item")
)

// Backend is the request surface the room talks to. *api.Client
// implements it.
type Backend interface {
	CreateUser(ctx context.Context) (string, error)
	VerifyUser(ctx context.Context) (uint64, error)
	GetUsers(ctx context.Context) ([]events.User, error)
	UpdateUserName(ctx context.Context, name string) error

	GetPlayer(ctx context.Context) (events.PlayerSnapshot, error)
	SetEntry(ctx context.Context, e events.Entry) error
	Next(ctx context.Context, currentID uint64) error
	Play(ctx context.Context, ts float64) error
	Pause(ctx context.Context, ts float64) error
	Seek(ctx context.Context, ts float64) error
	SetAutoplay(ctx context.Context, on bool) error
	SetLooping(ctx context.Context, on bool) error
	UpdateTitle(ctx context.Context, title string) error

	GetPlaylist(ctx context.Context) ([]events.Entry, error)
	PlaylistAdd(ctx context.Context, e events.Entry, top bool) error
	PlaylistRemove(ctx context.Context, index int, entryID uint64) error
	PlaylistMove(ctx context.Context, src, dst int, entryID uint64) error
	PlaylistClear(ctx context.Context) error
	PlaylistShuffle(ctx context.Context) error
	PlaylistUpdate(ctx context.Context, e events.Entry) error

	GetChat(ctx context.Context, count, backOffset int) ([]events.ChatMessage, error)
	ChatSend(ctx context.Context, message string) error
	ChatEdit(ctx context.Context, id uint64, message string) error
	ChatDelete(ctx context.Context, id uint64) error

	GetHistory(ctx context.Context) ([]events.Entry, error)
	HistoryClear(ctx context.Context) error
}

var _ Backend = (*api.Client)(nil)

type Config struct {
	MaxDesync float64
	// Media may be nil; playback events are then dropped with a warning.
	Media playback.Media
	// Store persists the session token. Optional.
	Store store.Store
}

type Room struct {
	tasks   chan func()
	stopped chan struct{}
	ctx     context.Context

	sess    *session.Session
	backend Backend
	store   store.Store
	media   playback.Media
	now     func() time.Time

	guard    *guard.Guard
	player   *playback.Synchronizer
	users    *reconcile.List[events.User]
	playlist *reconcile.List[events.Entry]
	chat     *reconcile.List[events.ChatMessage]
	history  *reconcile.List[events.Entry]

	playlistView *view.Playlist
	chatView     *view.Chat

	// Optimistic changes whose echo has not arrived yet.
	removedEntries  pendingIDs
	movedEntries    pendingIDs
	removedMessages pendingIDs

	// Snapshot requests in flight per collection.
	playerReload   reload
	usersReload    reload
	playlistReload reload
	chatReload     reload
	historyReload  reload

	connected bool
	inflight  sync.WaitGroup
	log       zerolog.Logger
}

func New(cfg Config, sess *session.Session, backend Backend, log zerolog.Logger) *Room {
	log = log.With().Str("component", "room").Logger()
	r := &Room{
		tasks:   make(chan func(), taskBuffer),
		stopped: make(chan struct{}),
		ctx:     context.Background(),
		sess:    sess,
		backend: backend,
		store:   cfg.Store,
		media:   cfg.Media,
		now:     time.Now,
		guard:   guard.New(log),

		users:    reconcile.NewList("users", func(u events.User) uint64 { return u.ID }, log),
		playlist: reconcile.NewList("playlist", func(e events.Entry) uint64 { return e.ID }, log),
		chat:     reconcile.NewList("chat", func(m events.ChatMessage) uint64 { return m.ID }, log),
		history:  reconcile.NewList("history", func(e events.Entry) uint64 { return e.ID }, log),

		playlistView:    view.NewPlaylist(),
		chatView:        view.NewChat(),
		removedEntries:  pendingIDs{},
		movedEntries:    pendingIDs{},
		removedMessages: pendingIDs{},
		log:             log,
	}
	r.player = playback.NewSynchronizer(r.guard, outbound{r}, cfg.MaxDesync, log)
	r.player.Attach(cfg.Media)
	r.playlist.Observe(r.playlistView)
	r.chat.Observe(r.chatView)
	return r
}

// Run is the room loop. It returns when ctx ends.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.stopped)
	r.ctx = ctx

	var mediaEvents <-chan playback.MediaEvent
	if r.media != nil {
		mediaEvents = r.media.Events()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-r.tasks:
			task()
		case ev := <-mediaEvents:
			r.player.OnMediaEvent(ev)
		}
	}
}

// post queues fn on the loop.
func (r *Room) post(fn func()) bool {
	select {
	case r.tasks <- fn:
		return true
	case <-r.stopped:
		return false
	}
}

// exec runs fn on the loop and waits for it to finish.
func (r *Room) exec(fn func()) {
	done := make(chan struct{})
	if !r.post(func() { fn(); close(done) }) {
		return
	}
	select {
	case <-done:
	case <-r.stopped:
	}
}

// do runs fn on the loop on behalf of a caller and returns its result.
func (r *Room) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case r.tasks <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrStopped
	}
}

// request performs call off the loop. On failure, onFail runs on the loop.
func (r *Room) request(name string, call func(ctx context.Context) error, onFail func(err error)) {
	ctx := r.ctx
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		err := call(ctx)
		if err == nil {
			return
		}
		r.log.Warn().Err(err).Str("request", name).Msg("room: request failed")
		if onFail != nil {
			r.exec(func() { onFail(err) })
		}
	}()
}

// fetch loads a snapshot off the loop and hands the result to done on the
// loop.
func fetch[T any](r *Room, name string, get func(ctx context.Context) (T, error), done func(T, error)) {
	ctx := r.ctx
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		v, err := get(ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("snapshot", name).Msg("room: reload failed")
		}
		r.exec(func() { done(v, err) })
	}()
}

// reload tracks the snapshot request of one collection. The server may
// take the snapshot before or after any event that arrives while the
// request is in flight, so such events are applied at once and kept to be
// replayed on top of the snapshot. Replayed changes name items by id and
// are no-ops when the snapshot already holds them. An event that cannot be
// replayed that way marks the request stale, and a fresh snapshot is asked
// for when it returns; that request is sent after the event was seen, so
// the snapshot reflects it.
type reload struct {
	seq      uint64
	inflight bool
	stale    bool
	replay   []func()
}

// apply runs a change now and, while a snapshot is in flight, again on top
// of it.
func (rl *reload) apply(change func(replay bool)) {
	change(false)
	if rl.inflight {
		rl.replay = append(rl.replay, func() { change(true) })
	}
}

// invalidate marks the snapshot in flight, if any, as taken too early.
func (rl *reload) invalidate() {
	if rl.inflight {
		rl.stale = true
	}
}

// cancel forgets the request in flight; its result is discarded.
func (rl *reload) cancel() {
	rl.seq++
	rl.inflight, rl.stale, rl.replay = false, false, nil
}

func reloadInto[T any](r *Room, rl *reload, name string, get func(ctx context.Context) (T, error), replace func(T)) {
	if rl.inflight {
		rl.stale = true
		return
	}
	rl.seq++
	seq := rl.seq
	rl.inflight, rl.stale, rl.replay = true, false, nil
	fetch(r, name, get, func(v T, err error) {
		if rl.seq != seq {
			return
		}
		stale, replay := rl.stale, rl.replay
		rl.inflight, rl.stale, rl.replay = false, false, nil
		if err != nil {
			return
		}
		if stale {
			r.log.Debug().Str("snapshot", name).Msg("room: snapshot outdated by a later event, reloading again")
			reloadInto(r, rl, name, get, replace)
			return
		}
		replace(v)
		for _, fn := range replay {
			fn()
		}
	})
}

func (r *Room) reloadPlayer() {
	reloadInto(r, &r.playerReload, "player", r.backend.GetPlayer, r.player.Load)
}

func (r *Room) reloadPlaylist() {
	reloadInto(r, &r.playlistReload, "playlist", r.backend.GetPlaylist, r.playlist.ReplaceAll)
}

func (r *Room) reloadChat() {
	reloadInto(r, &r.chatReload, "chat", func(ctx context.Context) ([]events.ChatMessage, error) {
		return r.backend.GetChat(ctx, chatFetchCount, 0)
	}, r.chat.ReplaceAll)
}

func (r *Room) reloadHistory() {
	reloadInto(r, &r.historyReload, "history", r.backend.GetHistory, r.history.ReplaceAll)
}

func (r *Room) reloadUsers() {
	reloadInto(r, &r.usersReload, "users", r.backend.GetUsers, r.users.ReplaceAll)
}

// Authenticate makes sure the session carries a token the server accepts,
// creating a new user when there is none or it was rejected.
func (r *Room) Authenticate(ctx context.Context) error {
	token := r.sess.Token()
	if token == "" && r.store != nil {
		stored, err := r.store.Get(ctx, store.KeyToken)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			r.log.Warn().Err(err).Msg("room: read stored token")
		}
		token = stored
		r.sess.SetToken(token)
	}

	if token != "" && !session.TokenExpired(token, r.now()) {
		id, err := r.backend.VerifyUser(ctx)
		if err == nil {
			r.sess.SetUserID(id)
			return nil
		}
		if !errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("room: verify token: %w", err)
		}
		r.log.Warn().Msg("room: token rejected, creating a new user")
	}

	token, err := r.backend.CreateUser(ctx)
	if err != nil {
		return fmt.Errorf("room: create user: %w", err)
	}
	r.sess.SetToken(token)
	if r.store != nil {
		if err := r.store.Set(ctx, store.KeyToken, token); err != nil {
			r.log.Warn().Err(err).Msg("room: persist token")
		}
	}
	id, err := r.backend.VerifyUser(ctx)
	if err != nil {
		return fmt.Errorf("room: verify new token: %w", err)
	}
	r.sess.SetUserID(id)
	return nil
}

type snapshot struct {
	users    []events.User
	player   events.PlayerSnapshot
	playlist []events.Entry
	chat     []events.ChatMessage
	history  []events.Entry
}

// OnOpen reloads every collection from the server. It runs before any
// event of the new connection is delivered, so the snapshots become the
// base the following events apply to.
func (r *Room) OnOpen(ctx context.Context) error {
	var (
		s   snapshot
		err error
	)
	if s.users, err = r.backend.GetUsers(ctx); err != nil {
		return fmt.Errorf("room: load users: %w", err)
	}
	if s.player, err = r.backend.GetPlayer(ctx); err != nil {
		return fmt.Errorf("room: load player: %w", err)
	}
	if s.playlist, err = r.backend.GetPlaylist(ctx); err != nil {
		return fmt.Errorf("room: load playlist: %w", err)
	}
	if s.chat, err = r.backend.GetChat(ctx, chatFetchCount, 0); err != nil {
		return fmt.Errorf("room: load chat: %w", err)
	}
	if s.history, err = r.backend.GetHistory(ctx); err != nil {
		return fmt.Errorf("room: load history: %w", err)
	}
	return r.do(ctx, func() error {
		// The snapshots supersede every reload in flight and every
		// optimistic change still waiting for its echo.
		for _, rl := range []*reload{&r.playerReload, &r.usersReload, &r.playlistReload, &r.chatReload, &r.historyReload} {
			rl.cancel()
		}
		r.removedEntries.reset()
		r.movedEntries.reset()
		r.removedMessages.reset()

		r.users.ReplaceAll(s.users)
		r.player.Load(s.player)
		r.playlist.ReplaceAll(s.playlist)
		r.chat.ReplaceAll(s.chat)
		r.history.ReplaceAll(s.history)
		r.connected = true
		r.log.Info().
			Int("users", len(s.users)).
			Int("playlist", len(s.playlist)).
			Int("history", len(s.history)).
			Msg("room: state reloaded")
		return nil
	})
}

func (r *Room) OnEvent(ev events.Event) {
	r.post(func() { events.Dispatch(r, ev) })
}

// OnError runs when the connection dropped. Presence is unknown until the
// next reload, so everybody is shown offline.
func (r *Room) OnError(err error) {
	r.post(func() {
		r.connected = false
		for _, u := range r.users.Items() {
			if u.Online {
				r.users.UpdateByID(u.ID, func(u *events.User) { u.Online = false })
			}
		}
	})
}

// State is a point-in-time copy of everything the room shows.
type State struct {
	Connected    bool               `json:"connected"`
	ConnectionID uint64             `json:"connectionId"`
	UserID       uint64             `json:"userId"`
	Player       playback.Snapshot  `json:"player"`
	Users        []events.User      `json:"users"`
	Playlist     []view.PlaylistRow `json:"playlist"`
	Chat         []view.ChatLine    `json:"chat"`
	History      []events.Entry     `json:"history"`
}

func (r *Room) State(ctx context.Context) (State, error) {
	var s State
	err := r.do(ctx, func() error {
		s = State{
			Connected:    r.connected,
			ConnectionID: r.sess.ConnectionID(),
			UserID:       r.sess.UserID(),
			Player:       r.player.Snapshot(),
			Users:        r.users.Items(),
			Playlist:     r.playlistView.Rows(),
			Chat:         r.chatView.Lines(),
			History:      r.history.Items(),
		}
		return nil
	})
	return s, err
}

// pendingIDs counts optimistic removals per id.
type pendingIDs map[uint64]int

func (p pendingIDs) add(id uint64) { p[id]++ }

func (p pendingIDs) empty() bool { return len(p) == 0 }

func (p pendingIDs) reset() { clear(p) }

// take reports whether id was pending and consumes one count.
func (p pendingIDs) take(id uint64) bool {
	n := p[id]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(p, id)
	} else {
		p[id] = n - 1
	}
	return true
}

// outbound reports user-initiated media actions to the server.
type outbound struct{ r *Room }

func (o outbound) Play(ts float64) {
	o.r.request("play", func(ctx context.Context) error { return o.r.backend.Play(ctx, ts) },
		func(error) { o.r.reloadPlayer() })
}

func (o outbound) Pause(ts float64) {
	o.r.request("pause", func(ctx context.Context) error { return o.r.backend.Pause(ctx, ts) },
		func(error) { o.r.reloadPlayer() })
}

func (o outbound) Seek(ts float64) {
	o.r.request("seek", func(ctx context.Context) error { return o.r.backend.Seek(ctx, ts) },
		func(error) { o.r.reloadPlayer() })
}
