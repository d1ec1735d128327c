package api

import (
	"context"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

// Request bodies.

type SyncRequest struct {
	Timestamp float64 `json:"timestamp"`
}

type SetRequest struct {
	Entry events.Entry `json:"entry"`
}

type NextRequest struct {
	EntryID uint64 `json:"entry_id"`
}

type PlaylistAddRequest struct {
	Entry events.Entry `json:"entry"`
	Top   bool         `json:"top"`
}

type ChatGetRequest struct {
	Count      int `json:"count"`
	BackOffset int `json:"back_offset"`
}

type ChatSendRequest struct {
	Message string `json:"message"`
}

type ChatEditRequest struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

type ChatDeleteRequest struct {
	ID uint64 `json:"id"`
}

// Users.

// CreateUser provisions a new user and returns its token.
func (c *Client) CreateUser(ctx context.Context) (string, error) {
	var token string
	err := c.call(ctx, "user/create", nil, &token)
	return token, err
}

// VerifyUser checks the session token and returns the id of its user.
func (c *Client) VerifyUser(ctx context.Context) (uint64, error) {
	var id uint64
	err := c.call(ctx, "user/verify", nil, &id)
	return id, err
}

func (c *Client) GetUsers(ctx context.Context) ([]events.User, error) {
	var users []events.User
	err := c.call(ctx, "user/getall", nil, &users)
	return users, err
}

func (c *Client) UpdateUserName(ctx context.Context, name string) error {
	return c.call(ctx, "user/updatename", name, nil)
}

// Player.

func (c *Client) GetPlayer(ctx context.Context) (events.PlayerSnapshot, error) {
	var snap events.PlayerSnapshot
	err := c.call(ctx, "player/get", nil, &snap)
	return snap, err
}

func (c *Client) SetEntry(ctx context.Context, e events.Entry) error {
	return c.call(ctx, "player/set", SetRequest{Entry: e}, nil)
}

// Next asks for the entry after currentID. The id lets the server ignore
// stale requests from clients that have not seen the last change yet.
func (c *Client) Next(ctx context.Context, currentID uint64) error {
	return c.call(ctx, "player/next", NextRequest{EntryID: currentID}, nil)
}

func (c *Client) Play(ctx context.Context, ts float64) error {
	return c.call(ctx, "player/play", SyncRequest{Timestamp: ts}, nil)
}

func (c *Client) Pause(ctx context.Context, ts float64) error {
	return c.call(ctx, "player/pause", SyncRequest{Timestamp: ts}, nil)
}

func (c *Client) Seek(ctx context.Context, ts float64) error {
	return c.call(ctx, "player/seek", SyncRequest{Timestamp: ts}, nil)
}

func (c *Client) SetAutoplay(ctx context.Context, on bool) error {
	return c.call(ctx, "player/autoplay", on, nil)
}

func (c *Client) SetLooping(ctx context.Context, on bool) error {
	return c.call(ctx, "player/looping", on, nil)
}

func (c *Client) UpdateTitle(ctx context.Context, title string) error {
	return c.call(ctx, "player/updatetitle", title, nil)
}

// Playlist.

func (c *Client) GetPlaylist(ctx context.Context) ([]events.Entry, error) {
	var entries []events.Entry
	err := c.call(ctx, "playlist/get", nil, &entries)
	return entries, err
}

func (c *Client) PlaylistAdd(ctx context.Context, e events.Entry, top bool) error {
	return c.call(ctx, "playlist/add", PlaylistAddRequest{Entry: e, Top: top}, nil)
}

func (c *Client) PlaylistRemove(ctx context.Context, index int, entryID uint64) error {
	return c.call(ctx, "playlist/remove", events.RemoveData{Index: index, EntryID: entryID}, nil)
}

func (c *Client) PlaylistMove(ctx context.Context, src, dst int, entryID uint64) error {
	return c.call(ctx, "playlist/move", events.MoveData{SourceIndex: src, DestIndex: dst, EntryID: entryID}, nil)
}

func (c *Client) PlaylistClear(ctx context.Context) error {
	return c.call(ctx, "playlist/clear", nil, nil)
}

func (c *Client) PlaylistShuffle(ctx context.Context) error {
	return c.call(ctx, "playlist/shuffle", nil, nil)
}

func (c *Client) PlaylistUpdate(ctx context.Context, e events.Entry) error {
	return c.call(ctx, "playlist/update", e, nil)
}

// Chat.

func (c *Client) GetChat(ctx context.Context, count, backOffset int) ([]events.ChatMessage, error) {
	var msgs []events.ChatMessage
	err := c.call(ctx, "chat/get", ChatGetRequest{Count: count, BackOffset: backOffset}, &msgs)
	return msgs, err
}

func (c *Client) ChatSend(ctx context.Context, message string) error {
	return c.call(ctx, "chat/send", ChatSendRequest{Message: message}, nil)
}

func (c *Client) ChatEdit(ctx context.Context, id uint64, message string) error {
	return c.call(ctx, "chat/edit", ChatEditRequest{ID: id, Message: message}, nil)
}

func (c *Client) ChatDelete(ctx context.Context, id uint64) error {
	return c.call(ctx, "chat/delete", ChatDeleteRequest{ID: id}, nil)
}

// History.

func (c *Client) GetHistory(ctx context.Context) ([]events.Entry, error) {
	var entries []events.Entry
	err := c.call(ctx, "history/get", nil, &entries)
	return entries, err
}

func (c *Client) HistoryClear(ctx context.Context) error {
	return c.call(ctx, "history/clear", nil, nil)
}
