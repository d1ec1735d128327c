package events

// Handler has one method per event kind. A new kind is not usable until
// every Handler implements its method.
type Handler interface {
	HandleWelcome(Welcome)
	HandleUserCreated(UserCreated)
	HandleUserUpdated(UserUpdated)
	HandleUserDeleted(UserDeleted)
	HandleUserConnected(UserConnected)
	HandleUserDisconnected(UserDisconnected)
	HandlePlayerSet(PlayerSet)
	HandlePlayerAutoplay(PlayerAutoplay)
	HandlePlayerLooping(PlayerLooping)
	HandlePlayerUpdateTitle(PlayerUpdateTitle)
	HandleSync(Sync)
	HandlePlaylist(Playlist)
	HandleMessageCreated(MessageCreated)
	HandleMessageEdited(MessageEdited)
	HandleMessageDeleted(MessageDeleted)
	HandleHistoryCleared(HistoryCleared)
	HandleSubtitleAttached(SubtitleAttached)
	HandleSubtitleUpdated(SubtitleUpdated)
	HandleSubtitleDeleted(SubtitleDeleted)
	HandleSubtitleShifted(SubtitleShifted)
}

// Dispatch routes ev to the matching Handler method.
func Dispatch(h Handler, ev Event) {
	switch e := ev.(type) {
	case Welcome:
		h.HandleWelcome(e)
	case UserCreated:
		h.HandleUserCreated(e)
	case UserUpdated:
		h.HandleUserUpdated(e)
	case UserDeleted:
		h.HandleUserDeleted(e)
	case UserConnected:
		h.HandleUserConnected(e)
	case UserDisconnected:
		h.HandleUserDisconnected(e)
	case PlayerSet:
		h.HandlePlayerSet(e)
	case PlayerAutoplay:
		h.HandlePlayerAutoplay(e)
	case PlayerLooping:
		h.HandlePlayerLooping(e)
	case PlayerUpdateTitle:
		h.HandlePlayerUpdateTitle(e)
	case Sync:
		h.HandleSync(e)
	case Playlist:
		h.HandlePlaylist(e)
	case MessageCreated:
		h.HandleMessageCreated(e)
	case MessageEdited:
		h.HandleMessageEdited(e)
	case MessageDeleted:
		h.HandleMessageDeleted(e)
	case HistoryCleared:
		h.HandleHistoryCleared(e)
	case SubtitleAttached:
		h.HandleSubtitleAttached(e)
	case SubtitleUpdated:
		h.HandleSubtitleUpdated(e)
	case SubtitleDeleted:
		h.HandleSubtitleDeleted(e)
	case SubtitleShifted:
		h.HandleSubtitleShifted(e)
	}
}
