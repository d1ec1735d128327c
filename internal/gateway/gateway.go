// Package gateway keeps the room's push stream alive. It authenticates,
// dials the stream, waits for the welcome, lets the handler reload the full
// state and then delivers every decoded event in receipt order. Any failure
// tears the connection down and a new one is attempted after a fixed delay,
// forever.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
)

const DefaultReconnectDelay = 5 * time.Second

var ErrNoWelcome = errors.New("gateway: first frame is not userwelcome")

// Handler receives the stream. All methods are called from the gateway
// goroutine, one at a time.
type Handler interface {
	// OnOpen runs after the welcome and before any further frame is
	// delivered. An error drops the connection.
	OnOpen(ctx context.Context) error
	OnEvent(ev events.Event)
	OnError(err error)
}

// Authenticator makes sure the session holds a usable token.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Recorder sees every decoded frame before it is delivered.
type Recorder interface {
	Record(connectionID uint64, kind events.Kind, frame []byte)
}

type Config struct {
	// URL of the stream endpoint; the token is added as a query parameter.
	URL            string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Recorder       Recorder
}

type Gateway struct {
	cfg     Config
	sess    *session.Session
	auth    Authenticator
	handler Handler
	log     zerolog.Logger
}

func New(cfg Config, sess *session.Session, auth Authenticator, h Handler, log zerolog.Logger) *Gateway {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Gateway{
		cfg:     cfg,
		sess:    sess,
		auth:    auth,
		handler: h,
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// Run connects and reconnects until ctx ends, then returns ctx.Err().
func (g *Gateway) Run(ctx context.Context) error {
	for {
		err := g.connect(ctx)
		if ctx.Err() != nil {
			g.sess.SetConnectionID(0)
			return ctx.Err()
		}
		g.sess.SetConnectionID(0)
		g.handler.OnError(err)
		g.log.Warn().Err(err).Dur("retry_in", g.cfg.ReconnectDelay).Msg("gateway: connection lost")

		t := time.NewTimer(g.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// connect runs one connection until it fails.
func (g *Gateway) connect(ctx context.Context) error {
	if g.auth != nil {
		if err := g.auth.Authenticate(ctx); err != nil {
			return fmt.Errorf("gateway: authenticate: %w", err)
		}
	}

	u, err := url.Parse(g.cfg.URL)
	if err != nil {
		return fmt.Errorf("gateway: stream url: %w", err)
	}
	q := u.Query()
	q.Set("token", g.sess.Token())
	u.RawQuery = q.Encode()

	conn, _, err := g.cfg.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("gateway: dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("gateway: read welcome: %w", err)
	}
	ev, err := events.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoWelcome, err)
	}
	welcome, ok := ev.(events.Welcome)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrNoWelcome, ev.Kind())
	}
	g.sess.SetConnectionID(welcome.ConnectionID)
	g.log.Info().Uint64("connection_id", welcome.ConnectionID).Msg("gateway: connected")

	if err := g.handler.OnOpen(ctx); err != nil {
		return fmt.Errorf("gateway: open: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gateway: read: %w", err)
		}
		ev, err := events.Decode(data)
		if err != nil {
			g.log.Warn().Err(err).Msg("gateway: frame dropped")
			continue
		}
		if w, ok := ev.(events.Welcome); ok {
			g.sess.SetConnectionID(w.ConnectionID)
		}
		if g.cfg.Recorder != nil {
			g.cfg.Recorder.Record(g.sess.ConnectionID(), ev.Kind(), data)
		}
		g.handler.OnEvent(ev)
	}
}
