// Package api is the request surface of the room server. Every call is a
// JSON POST that carries the session token and the connection id, so the
// server can tell which connection an event was caused by.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/session"
)

const (
	HeaderConnectionID = "X-Connection-Id"
	HeaderRequestID    = "X-Request-Id"

	defaultTimeout = 10 * time.Second
)

// ErrUnauthorized matches a StatusError for a rejected token.
var ErrUnauthorized = errors.New("api: unauthorized")

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s failed: %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("api: %s failed: %d: %s", e.Endpoint, e.Status, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

type Client struct {
	baseURL string
	sess    *session.Session
	http    *http.Client
	log     zerolog.Logger
}

// New returns a client for the server at baseURL. A nil hc gets a client
// with a default timeout.
func New(baseURL string, sess *session.Session, hc *http.Client, log zerolog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		sess:    sess,
		http:    hc,
		log:     log.With().Str("component", "api").Logger(),
	}
}

func (c *Client) Session() *session.Session { return c.sess }

// call posts in as JSON to /api/<endpoint> and decodes the response into
// out. A nil in sends no body, a nil out discards the response.
func (c *Client) call(ctx context.Context, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: %s: encode: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+endpoint, body)
	if err != nil {
		return fmt.Errorf("api: %s: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.sess.Token())
	req.Header.Set(HeaderConnectionID, strconv.FormatUint(c.sess.ConnectionID(), 10))
	req.Header.Set(HeaderRequestID, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn().
			Str("endpoint", endpoint).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Msg("api: request failed")
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Message: errorMessage(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: %s: decode: %w", endpoint, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies and falls back to the raw
// text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
