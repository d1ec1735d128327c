package events

// Kind enumerates every event the room server pushes.
type Kind uint8

const (
	KindUserWelcome Kind = iota
	KindUserCreate
	KindUserUpdate
	KindUserDelete
	KindUserConnected
	KindUserDisconnected
	KindPlayerSet
	KindPlayerNext
	KindPlayerAutoplay
	KindPlayerLooping
	KindPlayerUpdateTitle
	KindSync
	KindPlaylist
	KindMessageCreate
	KindMessageEdit
	KindMessageDelete
	KindHistoryClear
	KindSubtitleAttach
	KindSubtitleUpdate
	KindSubtitleDelete
	KindSubtitleShift

	kindCount
)

var kindNames = [kindCount]string{
	KindUserWelcome:       "userwelcome",
	KindUserCreate:        "usercreate",
	KindUserUpdate:        "userupdate",
	KindUserDelete:        "userdelete",
	KindUserConnected:     "userconnected",
	KindUserDisconnected:  "userdisconnected",
	KindPlayerSet:         "playerset",
	KindPlayerNext:        "playernext",
	KindPlayerAutoplay:    "playerautoplay",
	KindPlayerLooping:     "playerlooping",
	KindPlayerUpdateTitle: "playerupdatetitle",
	KindSync:              "sync",
	KindPlaylist:          "playlist",
	KindMessageCreate:     "messagecreate",
	KindMessageEdit:       "messageedit",
	KindMessageDelete:     "messagedelete",
	KindHistoryClear:      "historyclear",
	KindSubtitleAttach:    "subtitleattach",
	KindSubtitleUpdate:    "subtitleupdate",
	KindSubtitleDelete:    "subtitledelete",
	KindSubtitleShift:     "subtitleshift",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a wire name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Kinds lists all known kinds in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Event is a decoded server push. The set of implementations is closed.
type Event interface {
	Kind() Kind
	sealed()
}

type Welcome struct {
	ConnectionID uint64
}

type UserCreated struct{ User User }
type UserUpdated struct{ User User }
type UserDeleted struct{ User User }

type UserConnected struct{ UserID uint64 }
type UserDisconnected struct{ UserID uint64 }

// PlayerSet is sent for both playerset and playernext; Next tells them apart.
type PlayerSet struct {
	PrevEntry Entry `json:"prev_entry"`
	NewEntry  Entry `json:"new_entry"`
	Next      bool  `json:"-"`
}

type PlayerAutoplay struct{ Enabled bool }
type PlayerLooping struct{ Enabled bool }
type PlayerUpdateTitle struct{ Title string }

type Sync struct {
	Action    string  `json:"action"`
	Timestamp float64 `json:"timestamp"`
	UserID    uint64  `json:"user_id"`
}

// Playlist carries one decoded playlist operation. Which fields are set
// depends on Action. EntryID is zero when the server only sent indices.
type Playlist struct {
	Action  string
	Top     bool
	Entry   Entry
	Entries []Entry
	Index   int
	Source  int
	Dest    int
	EntryID uint64
}

type MessageCreated struct{ Message ChatMessage }

type MessageEdited struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

type MessageDeleted struct{ ID uint64 }

type HistoryCleared struct{}

type SubtitleAttached struct{ Subtitle Subtitle }

type SubtitleUpdated struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type SubtitleDeleted struct{ ID uint64 }

type SubtitleShifted struct {
	ID    uint64  `json:"id"`
	Shift float64 `json:"shift"`
}

func (Welcome) Kind() Kind           { return KindUserWelcome }
func (UserCreated) Kind() Kind       { return KindUserCreate }
func (UserUpdated) Kind() Kind       { return KindUserUpdate }
func (UserDeleted) Kind() Kind       { return KindUserDelete }
func (UserConnected) Kind() Kind     { return KindUserConnected }
func (UserDisconnected) Kind() Kind  { return KindUserDisconnected }
func (PlayerAutoplay) Kind() Kind    { return KindPlayerAutoplay }
func (PlayerLooping) Kind() Kind     { return KindPlayerLooping }
func (PlayerUpdateTitle) Kind() Kind { return KindPlayerUpdateTitle }
func (Sync) Kind() Kind              { return KindSync }
func (Playlist) Kind() Kind          { return KindPlaylist }
func (MessageCreated) Kind() Kind    { return KindMessageCreate }
func (MessageEdited) Kind() Kind     { return KindMessageEdit }
func (MessageDeleted) Kind() Kind    { return KindMessageDelete }
func (HistoryCleared) Kind() Kind    { return KindHistoryClear }
func (SubtitleAttached) Kind() Kind  { return KindSubtitleAttach }
func (SubtitleUpdated) Kind() Kind   { return KindSubtitleUpdate }
func (SubtitleDeleted) Kind() Kind   { return KindSubtitleDelete }
func (SubtitleShifted) Kind() Kind   { return KindSubtitleShift }

func (e PlayerSet) Kind() Kind {
	if e.Next {
		return KindPlayerNext
	}
	return KindPlayerSet
}

func (Welcome) sealed()           {}
func (UserCreated) sealed()       {}
func (UserUpdated) sealed()       {}
func (UserDeleted) sealed()       {}
func (UserConnected) sealed()     {}
func (UserDisconnected) sealed()  {}
func (PlayerSet) sealed()         {}
func (PlayerAutoplay) sealed()    {}
func (PlayerLooping) sealed()     {}
func (PlayerUpdateTitle) sealed() {}
func (Sync) sealed()              {}
func (Playlist) sealed()          {}
func (MessageCreated) sealed()    {}
func (MessageEdited) sealed()     {}
func (MessageDeleted) sealed()    {}
func (HistoryCleared) sealed()    {}
func (SubtitleAttached) sealed()  {}
func (SubtitleUpdated) sealed()   {}
func (SubtitleDeleted) sealed()   {}
func (SubtitleShifted) sealed()   {}
