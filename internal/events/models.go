package events

// User is a room participant. Online is only ever set from presence events
// and snapshots.
type User struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Online   bool   `json:"online"`
}

// Subtitle belongs to an entry. Shift is in seconds.
type Subtitle struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	URL   string  `json:"url"`
	Shift float64 `json:"shift"`
}

// Entry is a playlist or history item. Position in its collection is
// defined by the server.
type Entry struct {
	ID         uint64     `json:"id"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	UseProxy   bool       `json:"use_proxy"`
	RefererURL string     `json:"referer_url"`
	Subtitles  []Subtitle `json:"subtitles"`
	CreatedAt  string     `json:"created_at"`
	LastSetAt  string     `json:"last_set_at"`
	UserID     uint64     `json:"user_id"`
}

// ChatMessage is one line of the chat log. Messages arrive in append order.
type ChatMessage struct {
	ID       uint64 `json:"id"`
	AuthorID uint64 `json:"authorId"`
	Message  string `json:"message"`
	UnixTime int64  `json:"unixTime"`
	Edited   bool   `json:"edited"`
}

// PlayerSnapshot is the full playback state returned by the player/get request.
type PlayerSnapshot struct {
	Entry     Entry   `json:"entry"`
	Timestamp float64 `json:"timestamp"`
	Playing   bool    `json:"playing"`
	Autoplay  bool    `json:"autoplay"`
	Looping   bool    `json:"looping"`
}

const (
	SyncPlay  = "play"
	SyncPause = "pause"
	SyncSeek  = "seek"
)

const (
	PlaylistAdd     = "add"
	PlaylistRemove  = "remove"
	PlaylistMove    = "move"
	PlaylistClear   = "clear"
	PlaylistShuffle = "shuffle"
	PlaylistUpdate  = "update"
)
