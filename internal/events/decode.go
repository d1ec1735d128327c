package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("events: unknown event kind")
	ErrBadPayload  = errors.New("events: malformed payload")
)

// Frame is the envelope every pushed event travels in.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps a wire payload in a frame of the given kind.
func Encode(kind Kind, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("events: encode %s: %w", kind, err)
		}
		raw = b
	}
	return json.Marshal(Frame{Type: kind.String(), Payload: raw})
}

// Decode parses one frame into its typed event.
func Decode(data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	kind, ok := ParseKind(f.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Type)
	}
	ev, err := decodePayload(kind, f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, kind, err)
	}
	return ev, nil
}

func decodePayload(kind Kind, p json.RawMessage) (Event, error) {
	switch kind {
	case KindUserWelcome:
		var id uint64
		err := unmarshal(p, &id)
		return Welcome{ConnectionID: id}, err
	case KindUserCreate:
		var u User
		err := unmarshal(p, &u)
		return UserCreated{User: u}, err
	case KindUserUpdate:
		var u User
		err := unmarshal(p, &u)
		return UserUpdated{User: u}, err
	case KindUserDelete:
		var u User
		err := unmarshal(p, &u)
		return UserDeleted{User: u}, err
	case KindUserConnected:
		var id uint64
		err := unmarshal(p, &id)
		return UserConnected{UserID: id}, err
	case KindUserDisconnected:
		var id uint64
		err := unmarshal(p, &id)
		return UserDisconnected{UserID: id}, err
	case KindPlayerSet, KindPlayerNext:
		var e PlayerSet
		err := unmarshal(p, &e)
		e.Next = kind == KindPlayerNext
		return e, err
	case KindPlayerAutoplay:
		var on bool
		err := unmarshal(p, &on)
		return PlayerAutoplay{Enabled: on}, err
	case KindPlayerLooping:
		var on bool
		err := unmarshal(p, &on)
		return PlayerLooping{Enabled: on}, err
	case KindPlayerUpdateTitle:
		var title string
		err := unmarshal(p, &title)
		return PlayerUpdateTitle{Title: title}, err
	case KindSync:
		var s Sync
		if err := unmarshal(p, &s); err != nil {
			return nil, err
		}
		switch s.Action {
		case SyncPlay, SyncPause, SyncSeek:
			return s, nil
		}
		return nil, fmt.Errorf("unknown sync action %q", s.Action)
	case KindPlaylist:
		return decodePlaylist(p)
	case KindMessageCreate:
		var m ChatMessage
		err := unmarshal(p, &m)
		return MessageCreated{Message: m}, err
	case KindMessageEdit:
		var e MessageEdited
		err := unmarshal(p, &e)
		return e, err
	case KindMessageDelete:
		var id uint64
		err := unmarshal(p, &id)
		return MessageDeleted{ID: id}, err
	case KindHistoryClear:
		return HistoryCleared{}, nil
	case KindSubtitleAttach:
		var s Subtitle
		err := unmarshal(p, &s)
		return SubtitleAttached{Subtitle: s}, err
	case KindSubtitleUpdate:
		var e SubtitleUpdated
		err := unmarshal(p, &e)
		return e, err
	case KindSubtitleDelete:
		var id uint64
		err := unmarshal(p, &id)
		return SubtitleDeleted{ID: id}, err
	case KindSubtitleShift:
		var e SubtitleShifted
		err := unmarshal(p, &e)
		return e, err
	}
	return nil, ErrUnknownKind
}

func unmarshal(p json.RawMessage, v any) error {
	if len(p) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(p, v)
}

// PlaylistFrame is the wire form of a playlist event.
type PlaylistFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
	Top    bool            `json:"top,omitempty"`
}

// RemoveData targets a playlist entry. The bare-index form is also accepted.
type RemoveData struct {
	Index   int    `json:"index"`
	EntryID uint64 `json:"entry_id,omitempty"`
}

type MoveData struct {
	SourceIndex int    `json:"source_index"`
	DestIndex   int    `json:"dest_index"`
	EntryID     uint64 `json:"entry_id,omitempty"`
}

func decodePlaylist(p json.RawMessage) (Event, error) {
	var f PlaylistFrame
	if err := unmarshal(p, &f); err != nil {
		return nil, err
	}
	ev := Playlist{Action: f.Action, Top: f.Top}
	switch f.Action {
	case PlaylistAdd, PlaylistUpdate:
		if err := unmarshal(f.Data, &ev.Entry); err != nil {
			return nil, err
		}
	case PlaylistRemove:
		d := bytes.TrimSpace(f.Data)
		if len(d) > 0 && d[0] == '{' {
			var rd RemoveData
			if err := json.Unmarshal(d, &rd); err != nil {
				return nil, err
			}
			ev.Index, ev.EntryID = rd.Index, rd.EntryID
		} else if err := unmarshal(f.Data, &ev.Index); err != nil {
			return nil, err
		}
	case PlaylistMove:
		var md MoveData
		if err := unmarshal(f.Data, &md); err != nil {
			return nil, err
		}
		ev.Source, ev.Dest, ev.EntryID = md.SourceIndex, md.DestIndex, md.EntryID
	case PlaylistShuffle:
		if err := unmarshal(f.Data, &ev.Entries); err != nil {
			return nil, err
		}
	case PlaylistClear:
	default:
		return nil, fmt.Errorf("unknown playlist action %q", f.Action)
	}
	return ev, nil
}
