package room

import (
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/reconcile"
)

var _ events.Handler = (*Room)(nil)

func (r *Room) HandleWelcome(ev events.Welcome) {
	r.log.Debug().Uint64("connection_id", ev.ConnectionID).Msg("room: welcome")
}

func (r *Room) HandleUserCreated(ev events.UserCreated) {
	r.usersReload.apply(func(replay bool) {
		if replay && r.users.IndexOf(ev.User.ID) >= 0 {
			return
		}
		r.users.Add(ev.User, reconcile.Append)
	})
}

// Presence is not taken from user updates; only presence events and
// snapshots change it.
func (r *Room) HandleUserUpdated(ev events.UserUpdated) {
	r.usersReload.apply(func(replay bool) {
		if replay && r.users.IndexOf(ev.User.ID) < 0 {
			return
		}
		r.users.UpdateByID(ev.User.ID, func(u *events.User) {
			u.Username, u.Avatar = ev.User.Username, ev.User.Avatar
		})
	})
}

func (r *Room) HandleUserDeleted(ev events.UserDeleted) {
	r.usersReload.apply(func(replay bool) {
		if replay && r.users.IndexOf(ev.User.ID) < 0 {
			return
		}
		r.users.RemoveByID(ev.User.ID)
	})
}

func (r *Room) HandleUserConnected(ev events.UserConnected) {
	r.usersReload.apply(func(replay bool) { r.setOnline(ev.UserID, true, replay) })
}

func (r *Room) HandleUserDisconnected(ev events.UserDisconnected) {
	r.usersReload.apply(func(replay bool) { r.setOnline(ev.UserID, false, replay) })
}

func (r *Room) setOnline(id uint64, online, quiet bool) {
	u, ok := r.users.Get(id)
	if !ok {
		if !quiet {
			r.log.Warn().Uint64("user", id).Bool("online", online).Msg("room: presence of unknown user ignored")
		}
		return
	}
	if u.Online == online {
		return
	}
	r.users.UpdateByID(id, func(u *events.User) { u.Online = online })
}

// HandlePlayerSet covers playerset and playernext. The previous entry
// goes to the history; on next the new entry leaves the playlist and, when
// looping, the previous one is queued again at the end.
func (r *Room) HandlePlayerSet(ev events.PlayerSet) {
	r.playerReload.invalidate()
	r.player.HandleSet(ev)

	prev := ev.PrevEntry
	if ev.Next {
		looping := r.player.Looping()
		r.playlistReload.apply(func(bool) {
			if r.playlist.IndexOf(ev.NewEntry.ID) >= 0 {
				r.playlist.RemoveByID(ev.NewEntry.ID)
			}
			if looping && prev.URL != "" && r.playlist.IndexOf(prev.ID) < 0 {
				r.playlist.Add(prev, reconcile.Append)
			}
		})
	}
	if prev.URL != "" {
		r.historyReload.apply(func(bool) {
			if r.history.IndexOf(prev.ID) < 0 {
				r.history.Add(prev, reconcile.Append)
			}
		})
	}
}

func (r *Room) HandlePlayerAutoplay(ev events.PlayerAutoplay) {
	r.playerReload.invalidate()
	r.player.SetAutoplay(ev.Enabled)
}

func (r *Room) HandlePlayerLooping(ev events.PlayerLooping) {
	r.playerReload.invalidate()
	r.player.SetLooping(ev.Enabled)
}

func (r *Room) HandlePlayerUpdateTitle(ev events.PlayerUpdateTitle) {
	r.playerReload.invalidate()
	r.player.UpdateTitle(ev.Title)
}

func (r *Room) HandleSync(ev events.Sync) {
	r.playerReload.invalidate()
	r.player.HandleSync(ev)
}

func (r *Room) HandlePlaylist(ev events.Playlist) {
	switch ev.Action {
	case events.PlaylistAdd:
		p := reconcile.Append
		if ev.Top {
			p = reconcile.Prepend
		}
		r.playlistReload.apply(func(replay bool) {
			if replay && r.playlist.IndexOf(ev.Entry.ID) >= 0 {
				return
			}
			r.playlist.Add(ev.Entry, p)
		})

	case events.PlaylistRemove:
		if ev.EntryID != 0 {
			own := r.removedEntries.take(ev.EntryID)
			r.playlistReload.apply(func(replay bool) {
				if r.playlist.IndexOf(ev.EntryID) < 0 {
					if !own && !replay {
						r.log.Warn().Uint64("id", ev.EntryID).Msg("room: remove of missing entry ignored")
					}
					return
				}
				r.playlist.RemoveByID(ev.EntryID)
			})
			return
		}
		if r.unconfirmedPlaylistChanges() {
			r.log.Debug().Int("index", ev.Index).Msg("room: index remove during local change, reloading playlist")
			r.resyncPlaylist()
			return
		}
		r.playlistReload.invalidate()
		r.playlist.RemoveAt(ev.Index)

	case events.PlaylistMove:
		if ev.EntryID != 0 {
			r.movedEntries.take(ev.EntryID)
			r.playlistReload.apply(func(replay bool) {
				i := r.playlist.IndexOf(ev.EntryID)
				if i < 0 {
					if !replay {
						r.log.Warn().Uint64("id", ev.EntryID).Msg("room: move of missing entry ignored")
					}
					return
				}
				// Already there when this is the echo of a local move.
				if i != ev.Dest && ev.Dest < r.playlist.Len() {
					r.playlist.Move(i, ev.Dest)
				}
			})
			return
		}
		if r.unconfirmedPlaylistChanges() {
			r.log.Debug().Int("source", ev.Source).Msg("room: index move during local change, reloading playlist")
			r.resyncPlaylist()
			return
		}
		r.playlistReload.invalidate()
		r.playlist.Move(ev.Source, ev.Dest)

	case events.PlaylistClear:
		r.playlistReload.apply(func(bool) {
			if r.playlist.Len() > 0 {
				r.playlist.Clear()
			}
		})

	case events.PlaylistShuffle:
		r.playlistReload.apply(func(bool) { r.playlist.ReplaceAll(ev.Entries) })

	case events.PlaylistUpdate:
		r.playlistReload.apply(func(replay bool) {
			if replay && r.playlist.IndexOf(ev.Entry.ID) < 0 {
				return
			}
			r.playlist.UpdateByID(ev.Entry.ID, func(e *events.Entry) { *e = ev.Entry })
		})
	}
}

// An event that only names indices cannot be matched against local changes
// the server has not confirmed yet, so the playlist is reloaded instead.
func (r *Room) unconfirmedPlaylistChanges() bool {
	return !r.removedEntries.empty() || !r.movedEntries.empty()
}

func (r *Room) resyncPlaylist() {
	r.removedEntries.reset()
	r.movedEntries.reset()
	r.reloadPlaylist()
}

func (r *Room) HandleMessageCreated(ev events.MessageCreated) {
	r.chatReload.apply(func(replay bool) {
		if replay && r.chat.IndexOf(ev.Message.ID) >= 0 {
			return
		}
		r.chat.Add(ev.Message, reconcile.Append)
	})
}

func (r *Room) HandleMessageEdited(ev events.MessageEdited) {
	r.chatReload.apply(func(replay bool) {
		if replay && r.chat.IndexOf(ev.ID) < 0 {
			return
		}
		r.chat.UpdateByID(ev.ID, func(m *events.ChatMessage) {
			m.Message, m.Edited = ev.Message, true
		})
	})
}

func (r *Room) HandleMessageDeleted(ev events.MessageDeleted) {
	own := r.removedMessages.take(ev.ID)
	r.chatReload.apply(func(replay bool) {
		if r.chat.IndexOf(ev.ID) < 0 {
			if !own && !replay {
				r.log.Warn().Uint64("id", ev.ID).Msg("room: delete of missing message ignored")
			}
			return
		}
		r.chat.RemoveByID(ev.ID)
	})
}

func (r *Room) HandleHistoryCleared(events.HistoryCleared) {
	r.historyReload.apply(func(bool) {
		if r.history.Len() > 0 {
			r.history.Clear()
		}
	})
}

func (r *Room) HandleSubtitleAttached(ev events.SubtitleAttached) {
	r.playerReload.invalidate()
	r.player.AttachSubtitle(ev.Subtitle)
}

func (r *Room) HandleSubtitleUpdated(ev events.SubtitleUpdated) {
	r.playerReload.invalidate()
	r.player.RenameSubtitle(ev.ID, ev.Name)
}

func (r *Room) HandleSubtitleDeleted(ev events.SubtitleDeleted) {
	r.playerReload.invalidate()
	r.player.DeleteSubtitle(ev.ID)
}

func (r *Room) HandleSubtitleShifted(ev events.SubtitleShifted) {
	r.playerReload.invalidate()
	r.player.ShiftSubtitle(ev.ID, ev.Shift)
}
