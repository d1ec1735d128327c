package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies this client to the server. The token survives
// reconnects and restarts; the connection id is valid for one live
// connection only.
type Session struct {
	mu           sync.RWMutex
	token        string
	userID       uint64
	connectionID uint64
}

func New(token string) *Session {
	return &Session{token: token}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// UserID is the id of the user the token belongs to, 0 until verified.
func (s *Session) UserID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) SetUserID(id uint64) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

func (s *Session) ConnectionID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionID
}

func (s *Session) SetConnectionID(id uint64) {
	s.mu.Lock()
	s.connectionID = id
	s.mu.Unlock()
}

// Connected reports whether a welcome has been received on the current
// connection.
func (s *Session) Connected() bool {
	return s.ConnectionID() != 0
}

// TokenExpired reports whether token is a JWT whose exp claim lies before
// now. Opaque tokens are never considered expired locally; the server
// decides.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
