package room

import (
	"context"
	"errors"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

// Local actions. Mutations that do not need a server-assigned id are
// applied before the request is sent. When the request fails the change is
// undone if the collection still holds it unmodified (same version);
// otherwise other changes were layered on top and the collection is
// reloaded from the server instead.
//
// Actions that create items or reorder the whole collection wait for the
// server's event.

// rollback returns the failure handler for an optimistic change that left
// a list at version v.
func rollback(current func() uint64, v uint64, undo, reload func()) func(error) {
	return func(error) {
		if current() == v {
			undo()
			return
		}
		reload()
	}
}

func (r *Room) SetEntry(ctx context.Context, e events.Entry) error {
	if e.URL == "" {
		return errors.New("room: set entry: empty url")
	}
	return r.do(ctx, func() error {
		r.request("player/set", func(ctx context.Context) error { return r.backend.SetEntry(ctx, e) }, nil)
		return nil
	})
}

func (r *Room) Next(ctx context.Context) error {
	return r.do(ctx, func() error {
		current := r.player.Entry().ID
		r.request("player/next", func(ctx context.Context) error { return r.backend.Next(ctx, current) }, nil)
		return nil
	})
}

// Play starts the local player with the guard armed and sends exactly one
// request. The server's echo then finds the player already playing.
func (r *Room) Play(ctx context.Context) error {
	return r.do(ctx, func() error {
		if r.player.Media() == nil {
			return ErrNoMedia
		}
		r.player.PlayLocal()
		ts := r.player.CurrentTime()
		r.request("player/play", func(ctx context.Context) error { return r.backend.Play(ctx, ts) },
			func(error) { r.reloadPlayer() })
		return nil
	})
}

func (r *Room) Pause(ctx context.Context) error {
	return r.do(ctx, func() error {
		if r.player.Media() == nil {
			return ErrNoMedia
		}
		r.player.PauseLocal()
		ts := r.player.CurrentTime()
		r.request("player/pause", func(ctx context.Context) error { return r.backend.Pause(ctx, ts) },
			func(error) { r.reloadPlayer() })
		return nil
	})
}

func (r *Room) Seek(ctx context.Context, ts float64) error {
	return r.do(ctx, func() error {
		if r.player.Media() == nil {
			return ErrNoMedia
		}
		r.player.SeekLocal(ts)
		r.request("player/seek", func(ctx context.Context) error { return r.backend.Seek(ctx, ts) },
			func(error) { r.reloadPlayer() })
		return nil
	})
}

func (r *Room) SetAutoplay(ctx context.Context, on bool) error {
	return r.do(ctx, func() error {
		prev := r.player.Autoplay()
		r.player.SetAutoplay(on)
		r.request("player/autoplay", func(ctx context.Context) error { return r.backend.SetAutoplay(ctx, on) },
			func(error) {
				if r.player.Autoplay() == on {
					r.player.SetAutoplay(prev)
				}
			})
		return nil
	})
}

func (r *Room) SetLooping(ctx context.Context, on bool) error {
	return r.do(ctx, func() error {
		prev := r.player.Looping()
		r.player.SetLooping(on)
		r.request("player/looping", func(ctx context.Context) error { return r.backend.SetLooping(ctx, on) },
			func(error) {
				if r.player.Looping() == on {
					r.player.SetLooping(prev)
				}
			})
		return nil
	})
}

func (r *Room) UpdateTitle(ctx context.Context, title string) error {
	return r.do(ctx, func() error {
		r.player.UpdateTitle(title)
		r.request("player/updatetitle", func(ctx context.Context) error { return r.backend.UpdateTitle(ctx, title) },
			func(error) { r.reloadPlayer() })
		return nil
	})
}

func (r *Room) PlaylistAdd(ctx context.Context, e events.Entry, top bool) error {
	if e.URL == "" {
		return errors.New("room: playlist add: empty url")
	}
	return r.do(ctx, func() error {
		r.request("playlist/add", func(ctx context.Context) error { return r.backend.PlaylistAdd(ctx, e, top) }, nil)
		return nil
	})
}

func (r *Room) PlaylistRemove(ctx context.Context, index int) error {
	return r.do(ctx, func() error {
		item, ok := r.playlist.At(index)
		if !ok {
			return ErrOutOfRange
		}
		r.playlist.RemoveAt(index)
		r.removedEntries.add(item.ID)
		v := r.playlist.Version()

		r.request("playlist/remove",
			func(ctx context.Context) error { return r.backend.PlaylistRemove(ctx, index, item.ID) },
			func(error) {
				r.removedEntries.take(item.ID)
				rollback(r.playlist.Version, v,
					func() { r.playlist.Insert(index, item) },
					r.reloadPlaylist)(nil)
			})
		return nil
	})
}

func (r *Room) PlaylistMove(ctx context.Context, src, dst int) error {
	return r.do(ctx, func() error {
		item, ok := r.playlist.At(src)
		if !ok {
			return ErrOutOfRange
		}
		if dst < 0 || dst >= r.playlist.Len() {
			return ErrOutOfRange
		}
		if src == dst {
			return nil
		}
		r.playlist.Move(src, dst)
		r.movedEntries.add(item.ID)
		v := r.playlist.Version()

		r.request("playlist/move",
			func(ctx context.Context) error { return r.backend.PlaylistMove(ctx, src, dst, item.ID) },
			func(error) {
				r.movedEntries.take(item.ID)
				rollback(r.playlist.Version, v, func() { r.playlist.Move(dst, src) }, r.reloadPlaylist)(nil)
			})
		return nil
	})
}

func (r *Room) PlaylistClear(ctx context.Context) error {
	return r.do(ctx, func() error {
		items := r.playlist.Items()
		r.playlist.Clear()
		v := r.playlist.Version()
		r.request("playlist/clear", r.backend.PlaylistClear,
			rollback(r.playlist.Version, v, func() { r.playlist.ReplaceAll(items) }, r.reloadPlaylist))
		return nil
	})
}

func (r *Room) PlaylistShuffle(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.request("playlist/shuffle", r.backend.PlaylistShuffle, nil)
		return nil
	})
}

// PlaylistUpdate edits an entry in place. The id selects the entry.
func (r *Room) PlaylistUpdate(ctx context.Context, e events.Entry) error {
	return r.do(ctx, func() error {
		prev, ok := r.playlist.Get(e.ID)
		if !ok {
			return ErrNotFound
		}
		r.playlist.UpdateByID(e.ID, func(cur *events.Entry) { *cur = e })
		v := r.playlist.Version()
		r.request("playlist/update", func(ctx context.Context) error { return r.backend.PlaylistUpdate(ctx, e) },
			rollback(r.playlist.Version, v,
				func() { r.playlist.UpdateByID(e.ID, func(cur *events.Entry) { *cur = prev }) },
				r.reloadPlaylist))
		return nil
	})
}

func (r *Room) ChatSend(ctx context.Context, message string) error {
	if message == "" {
		return errors.New("room: chat send: empty message")
	}
	return r.do(ctx, func() error {
		r.request("chat/send", func(ctx context.Context) error { return r.backend.ChatSend(ctx, message) }, nil)
		return nil
	})
}

func (r *Room) ChatEdit(ctx context.Context, id uint64, message string) error {
	return r.do(ctx, func() error {
		prev, ok := r.chat.Get(id)
		if !ok {
			return ErrNotFound
		}
		r.chat.UpdateByID(id, func(m *events.ChatMessage) { m.Message, m.Edited = message, true })
		v := r.chat.Version()
		r.request("chat/edit", func(ctx context.Context) error { return r.backend.ChatEdit(ctx, id, message) },
			rollback(r.chat.Version, v,
				func() { r.chat.UpdateByID(id, func(m *events.ChatMessage) { *m = prev }) },
				r.reloadChat))
		return nil
	})
}

func (r *Room) ChatDelete(ctx context.Context, id uint64) error {
	return r.do(ctx, func() error {
		index := r.chat.IndexOf(id)
		if index < 0 {
			return ErrNotFound
		}
		item, _ := r.chat.RemoveAt(index)
		r.removedMessages.add(id)
		v := r.chat.Version()
		r.request("chat/delete", func(ctx context.Context) error { return r.backend.ChatDelete(ctx, id) },
			func(error) {
				r.removedMessages.take(id)
				rollback(r.chat.Version, v, func() { r.chat.Insert(index, item) }, r.reloadChat)(nil)
			})
		return nil
	})
}

func (r *Room) HistoryClear(ctx context.Context) error {
	return r.do(ctx, func() error {
		items := r.history.Items()
		r.history.Clear()
		v := r.history.Version()
		r.request("history/clear", r.backend.HistoryClear,
			rollback(r.history.Version, v, func() { r.history.ReplaceAll(items) }, r.reloadHistory))
		return nil
	})
}

// UpdateName renames the local user.
func (r *Room) UpdateName(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("room: update name: empty name")
	}
	return r.do(ctx, func() error {
		self := r.sess.UserID()
		prev, ok := r.users.Get(self)
		if !ok {
			r.request("user/updatename", func(ctx context.Context) error { return r.backend.UpdateUserName(ctx, name) }, nil)
			return nil
		}
		r.users.UpdateByID(self, func(u *events.User) { u.Username = name })
		v := r.users.Version()
		r.request("user/updatename", func(ctx context.Context) error { return r.backend.UpdateUserName(ctx, name) },
			rollback(r.users.Version, v,
				func() { r.users.UpdateByID(self, func(u *events.User) { u.Username = prev.Username }) },
				r.reloadUsers))
		return nil
	})
}
