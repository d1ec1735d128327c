package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/playback"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/store"
)

// fakeBackend answers snapshot requests from its fields and records every
// other request. Requests named in fail return that error.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error

	token    string
	userID   uint64
	users    []events.User
	player   events.PlayerSnapshot
	playlist []events.Entry
	chat     []events.ChatMessage
	history  []events.Entry

	// The next verifyFailures calls of VerifyUser return verifyErr.
	verifyErr      error
	verifyFailures int

	// gate, when set, blocks mutating requests until it is closed.
	gate chan struct{}
	// snapshotGate, when set, holds back snapshots after they were taken.
	snapshotGate chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{fail: map[string]error{}, token: "tok-new", userID: 1}
}

func (b *fakeBackend) record(name string) error {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	err := b.fail[name]
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (b *fakeBackend) snapshot(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
	return b.fail[name]
}

// load takes a copy of a collection in the same critical section that
// records the request, then waits on snapshotGate before answering.
func load[T any](b *fakeBackend, name string, src *[]T) ([]T, error) {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	err := b.fail[name]
	items := append([]T(nil), (*src)...)
	gate := b.snapshotGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return items, err
}

func (b *fakeBackend) setFail(name string, err error) {
	b.mu.Lock()
	b.fail[name] = err
	b.mu.Unlock()
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (b *fakeBackend) CreateUser(ctx context.Context) (string, error) {
	if err := b.snapshot("user/create"); err != nil {
		return "", err
	}
	return b.token, nil
}

func (b *fakeBackend) VerifyUser(ctx context.Context) (uint64, error) {
	if err := b.snapshot("user/verify"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.verifyFailures > 0 {
		b.verifyFailures--
		return 0, b.verifyErr
	}
	return b.userID, nil
}

func (b *fakeBackend) GetUsers(ctx context.Context) ([]events.User, error) {
	return load(b, "user/getall", &b.users)
}

func (b *fakeBackend) UpdateUserName(ctx context.Context, name string) error {
	return b.record("user/updatename")
}

func (b *fakeBackend) GetPlayer(ctx context.Context) (events.PlayerSnapshot, error) {
	b.mu.Lock()
	b.calls = append(b.calls, "player/get")
	err := b.fail["player/get"]
	player := b.player
	gate := b.snapshotGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return player, err
}

func (b *fakeBackend) SetEntry(ctx context.Context, e events.Entry) error { return b.record("player/set") }
func (b *fakeBackend) Next(ctx context.Context, id uint64) error         { return b.record("player/next") }
func (b *fakeBackend) Play(ctx context.Context, ts float64) error         { return b.record("player/play") }
func (b *fakeBackend) Pause(ctx context.Context, ts float64) error        { return b.record("player/pause") }
func (b *fakeBackend) Seek(ctx context.Context, ts float64) error         { return b.record("player/seek") }
func (b *fakeBackend) SetAutoplay(ctx context.Context, on bool) error     { return b.record("player/autoplay") }
func (b *fakeBackend) SetLooping(ctx context.Context, on bool) error      { return b.record("player/looping") }
func (b *fakeBackend) UpdateTitle(ctx context.Context, t string) error    { return b.record("player/updatetitle") }

func (b *fakeBackend) GetPlaylist(ctx context.Context) ([]events.Entry, error) {
	return load(b, "playlist/get", &b.playlist)
}

func (b *fakeBackend) PlaylistAdd(ctx context.Context, e events.Entry, top bool) error {
	return b.record("playlist/add")
}
func (b *fakeBackend) PlaylistRemove(ctx context.Context, index int, id uint64) error {
	return b.record("playlist/remove")
}
func (b *fakeBackend) PlaylistMove(ctx context.Context, src, dst int, id uint64) error {
	return b.record("playlist/move")
}
func (b *fakeBackend) PlaylistClear(ctx context.Context) error   { return b.record("playlist/clear") }
func (b *fakeBackend) PlaylistShuffle(ctx context.Context) error { return b.record("playlist/shuffle") }
func (b *fakeBackend) PlaylistUpdate(ctx context.Context, e events.Entry) error {
	return b.record("playlist/update")
}

func (b *fakeBackend) GetChat(ctx context.Context, count, backOffset int) ([]events.ChatMessage, error) {
	return load(b, "chat/get", &b.chat)
}

func (b *fakeBackend) ChatSend(ctx context.Context, m string) error            { return b.record("chat/send") }
func (b *fakeBackend) ChatEdit(ctx context.Context, id uint64, m string) error { return b.record("chat/edit") }
func (b *fakeBackend) ChatDelete(ctx context.Context, id uint64) error         { return b.record("chat/delete") }

func (b *fakeBackend) GetHistory(ctx context.Context) ([]events.Entry, error) {
	return load(b, "history/get", &b.history)
}

func (b *fakeBackend) HistoryClear(ctx context.Context) error { return b.record("history/clear") }

type harness struct {
	room    *Room
	backend *fakeBackend
	media   *playback.SimulatedMedia
	sess    *session.Session
	store   store.Store
}

var testNow = time.Unix(1_700_000_000, 0)

func startRoom(t *testing.T, b *fakeBackend) *harness {
	t.Helper()
	media := playback.NewSimulatedMedia(func() time.Time { return testNow })
	return startRoomWith(t, b, media)
}

// startRoomWith runs a room on media; nil runs it without a player.
func startRoomWith(t *testing.T, b *fakeBackend, media *playback.SimulatedMedia) *harness {
	t.Helper()
	h := &harness{backend: b, sess: session.New(""), store: store.NewMemoryStore(), media: media}
	cfg := Config{Store: h.store}
	if media != nil {
		cfg.Media = media
	}
	h.room = New(cfg, h.sess, b, zerolog.Nop())
	h.room.now = func() time.Time { return testNow }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.room.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// open performs the reload a fresh connection does.
func (h *harness) open(t *testing.T) {
	t.Helper()
	require.NoError(t, h.room.OnOpen(context.Background()))
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	s, err := h.room.State(context.Background())
	require.NoError(t, err)
	return s
}

// settle waits for in-flight requests and the tasks they queued.
func (h *harness) settle(t *testing.T) State {
	t.Helper()
	h.room.inflight.Wait()
	return h.state(t)
}

func (h *harness) playlistIDs(t *testing.T) []uint64 {
	t.Helper()
	ids := []uint64{}
	for _, row := range h.state(t).Playlist {
		ids = append(ids, row.EntryID)
	}
	return ids
}

// inLoop runs fn on the room loop.
func (h *harness) inLoop(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.room.do(context.Background(), func() error {
		fn()
		return nil
	}))
}

func entry(id uint64) events.Entry {
	return events.Entry{ID: id, URL: fmt.Sprintf("https://example.com/%d.mp4", id), Title: fmt.Sprintf("video %d", id)}
}

func entries(ids ...uint64) []events.Entry {
	out := make([]events.Entry, len(ids))
	for i, id := range ids {
		out[i] = entry(id)
	}
	return out
}
