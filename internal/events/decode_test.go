package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	kinds []Kind
}

func (r *recorder) add(e Event)                                 { r.kinds = append(r.kinds, e.Kind()) }
func (r *recorder) HandleWelcome(e Welcome)                     { r.add(e) }
func (r *recorder) HandleUserCreated(e UserCreated)             { r.add(e) }
func (r *recorder) HandleUserUpdated(e UserUpdated)             { r.add(e) }
func (r *recorder) HandleUserDeleted(e UserDeleted)             { r.add(e) }
func (r *recorder) HandleUserConnected(e UserConnected)         { r.add(e) }
func (r *recorder) HandleUserDisconnected(e UserDisconnected)   { r.add(e) }
func (r *recorder) HandlePlayerSet(e PlayerSet)                 { r.add(e) }
func (r *recorder) HandlePlayerAutoplay(e PlayerAutoplay)       { r.add(e) }
func (r *recorder) HandlePlayerLooping(e PlayerLooping)         { r.add(e) }
func (r *recorder) HandlePlayerUpdateTitle(e PlayerUpdateTitle) { r.add(e) }
func (r *recorder) HandleSync(e Sync)                           { r.add(e) }
func (r *recorder) HandlePlaylist(e Playlist)                   { r.add(e) }
func (r *recorder) HandleMessageCreated(e MessageCreated)       { r.add(e) }
func (r *recorder) HandleMessageEdited(e MessageEdited)         { r.add(e) }
func (r *recorder) HandleMessageDeleted(e MessageDeleted)       { r.add(e) }
func (r *recorder) HandleHistoryCleared(e HistoryCleared)       { r.add(e) }
func (r *recorder) HandleSubtitleAttached(e SubtitleAttached)   { r.add(e) }
func (r *recorder) HandleSubtitleUpdated(e SubtitleUpdated)     { r.add(e) }
func (r *recorder) HandleSubtitleDeleted(e SubtitleDeleted)     { r.add(e) }
func (r *recorder) HandleSubtitleShifted(e SubtitleShifted)     { r.add(e) }

var samplePayloads = map[Kind]any{
	KindUserWelcome:       12,
	KindUserCreate:        User{ID: 1, Username: "anon"},
	KindUserUpdate:        User{ID: 1, Username: "bob"},
	KindUserDelete:        User{ID: 1},
	KindUserConnected:     1,
	KindUserDisconnected:  1,
	KindPlayerSet:         map[string]any{"prev_entry": Entry{}, "new_entry": Entry{ID: 5, URL: "a.mp4"}},
	KindPlayerNext:        map[string]any{"prev_entry": Entry{ID: 5}, "new_entry": Entry{ID: 6}},
	KindPlayerAutoplay:    true,
	KindPlayerLooping:     false,
	KindPlayerUpdateTitle: "title",
	KindSync:              Sync{Action: SyncSeek, Timestamp: 3.5, UserID: 2},
	KindPlaylist:          PlaylistFrame{Action: PlaylistClear},
	KindMessageCreate:     ChatMessage{ID: 1, AuthorID: 2, Message: "hi"},
	KindMessageEdit:       MessageEdited{ID: 1, Message: "hey"},
	KindMessageDelete:     1,
	KindHistoryClear:      nil,
	KindSubtitleAttach:    Subtitle{ID: 3, Name: "en"},
	KindSubtitleUpdate:    SubtitleUpdated{ID: 3, Name: "en-US"},
	KindSubtitleDelete:    3,
	KindSubtitleShift:     SubtitleShifted{ID: 3, Shift: -1.5},
}

func TestDecode_EveryKindDispatches(t *testing.T) {
	require.Len(t, samplePayloads, len(Kinds()))

	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			frame, err := Encode(kind, samplePayloads[kind])
			require.NoError(t, err)

			ev, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, kind, ev.Kind())

			rec := &recorder{}
			Dispatch(rec, ev)
			assert.Equal(t, []Kind{kind}, rec.kinds)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"nope","payload":1}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadPayload)

	_, err = Decode([]byte(`{"type":"sync","payload":{"action":"rewind","timestamp":1}}`))
	assert.ErrorIs(t, err, ErrBadPayload)

	_, err = Decode([]byte(`{"type":"usercreate"}`))
	assert.ErrorIs(t, err, ErrBadPayload)

	_, err = Decode([]byte(`{"type":"playlist","payload":{"action":"explode"}}`))
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestDecode_PlaylistShapes(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"playlist","payload":{"action":"remove","data":2}}`))
	require.NoError(t, err)
	assert.Equal(t, Playlist{Action: PlaylistRemove, Index: 2}, ev)

	ev, err = Decode([]byte(`{"type":"playlist","payload":{"action":"remove","data":{"index":1,"entry_id":9}}}`))
	require.NoError(t, err)
	assert.Equal(t, Playlist{Action: PlaylistRemove, Index: 1, EntryID: 9}, ev)

	ev, err = Decode([]byte(`{"type":"playlist","payload":{"action":"move","data":{"source_index":0,"dest_index":2}}}`))
	require.NoError(t, err)
	assert.Equal(t, Playlist{Action: PlaylistMove, Source: 0, Dest: 2}, ev)

	ev, err = Decode([]byte(`{"type":"playlist","payload":{"action":"add","top":true,"data":{"id":4,"title":"x"}}}`))
	require.NoError(t, err)
	pl := ev.(Playlist)
	assert.True(t, pl.Top)
	assert.Equal(t, uint64(4), pl.Entry.ID)

	ev, err = Decode([]byte(`{"type":"playlist","payload":{"action":"shuffle","data":[{"id":2},{"id":1}]}}`))
	require.NoError(t, err)
	assert.Len(t, ev.(Playlist).Entries, 2)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("playernext")
	assert.True(t, ok)
	assert.Equal(t, KindPlayerNext, k)

	_, ok = ParseKind("")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Kind(250).String())
}
