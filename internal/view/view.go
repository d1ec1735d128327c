// Package view holds the presentation side of the synchronized collections.
// Views observe reconcile lists and never mutate them.
package view

import (
	"strconv"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/reconcile"
)

// groupWindow is how close in time two messages of the same author must be
// to render as one group.
const groupWindow int64 = 5 * 60

// PlaylistRow is one rendered playlist line.
type PlaylistRow struct {
	EntryID uint64 `json:"entryId"`
	Label   string `json:"label"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Playlist renders entries with their "1.", "2." position labels.
type Playlist struct {
	*reconcile.Binding[events.Entry, *PlaylistRow]
}

func NewPlaylist() *Playlist {
	return &Playlist{reconcile.NewBinding(reconcile.Hooks[events.Entry, *PlaylistRow]{
		Create: func(e events.Entry) *PlaylistRow {
			return &PlaylistRow{EntryID: e.ID, Title: displayTitle(e), URL: e.URL}
		},
		Update: func(r *PlaylistRow, e events.Entry) *PlaylistRow {
			r.Title, r.URL = displayTitle(e), e.URL
			return r
		},
		Reindex: func(rows []*PlaylistRow, from int) {
			for i := from; i < len(rows); i++ {
				rows[i].Label = strconv.Itoa(i+1) + "."
			}
		},
	})}
}

func (p *Playlist) Rows() []PlaylistRow {
	hs := p.Handles()
	out := make([]PlaylistRow, len(hs))
	for i, h := range hs {
		out[i] = *h
	}
	return out
}

func displayTitle(e events.Entry) string {
	if e.Title != "" {
		return e.Title
	}
	return e.URL
}

// ChatLine is one rendered chat message.
type ChatLine struct {
	MessageID    uint64 `json:"messageId"`
	AuthorID     uint64 `json:"authorId"`
	Message      string `json:"message"`
	UnixTime     int64  `json:"unixTime"`
	Edited       bool   `json:"edited"`
	FirstOfGroup bool   `json:"firstOfGroup"`
}

// Chat renders the chat log, merging consecutive messages of one author
// into groups. Only the first line of a group shows the author.
type Chat struct {
	*reconcile.Binding[events.ChatMessage, *ChatLine]
}

func NewChat() *Chat {
	return &Chat{reconcile.NewBinding(reconcile.Hooks[events.ChatMessage, *ChatLine]{
		Create: func(m events.ChatMessage) *ChatLine {
			return &ChatLine{
				MessageID: m.ID,
				AuthorID:  m.AuthorID,
				Message:   m.Message,
				UnixTime:  m.UnixTime,
				Edited:    m.Edited,
			}
		},
		Update: func(l *ChatLine, m events.ChatMessage) *ChatLine {
			l.Message, l.Edited = m.Message, m.Edited
			return l
		},
		Reindex: regroup,
	})}
}

// regroup recomputes group markers. A change at from can only affect the
// line at from and everything after it, since markers depend on the
// previous line.
func regroup(lines []*ChatLine, from int) {
	for i := from; i < len(lines); i++ {
		if i == 0 {
			lines[i].FirstOfGroup = true
			continue
		}
		prev, cur := lines[i-1], lines[i]
		cur.FirstOfGroup = prev.AuthorID != cur.AuthorID || cur.UnixTime-prev.UnixTime > groupWindow
	}
}

func (c *Chat) Lines() []ChatLine {
	hs := c.Handles()
	out := make([]ChatLine, len(hs))
	for i, h := range hs {
		out[i] = *h
	}
	return out
}
