// Package journal keeps an append-only Postgres log of the events the room
// received, for inspecting how local state came to be.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

const (
	DefaultBuffer = 256
	flushTimeout  = 5 * time.Second
)

// DBOps is the subset of pgxpool.Pool the journal uses.
type DBOps interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Record struct {
	ID           int64           `json:"id"`
	ConnectionID uint64          `json:"connectionId"`
	Kind         string          `json:"kind"`
	Frame        json.RawMessage `json:"frame"`
	ReceivedAt   time.Time       `json:"receivedAt"`
}

func AutoMigrate(ctx context.Context, db DBOps) error {
	_, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS room_events (
        id            BIGSERIAL PRIMARY KEY,
        connection_id BIGINT NOT NULL,
        kind          TEXT NOT NULL,
        payload       JSONB NOT NULL,
        received_at   TIMESTAMPTZ NOT NULL DEFAULT now()
      )`)
	if err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Journal buffers records in memory and writes them from its own goroutine
// so the room loop never waits on the database.
type Journal struct {
	db      DBOps
	queue   chan Record
	now     func() time.Time
	dropped atomic.Int64
	log     zerolog.Logger
}

func New(db DBOps, buffer int, log zerolog.Logger) *Journal {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Journal{
		db:    db,
		queue: make(chan Record, buffer),
		now:   time.Now,
		log:   log.With().Str("component", "journal").Logger(),
	}
}

// Record queues one received frame. A full queue drops the record.
func (j *Journal) Record(connectionID uint64, kind events.Kind, frame []byte) {
	r := Record{
		ConnectionID: connectionID,
		Kind:         kind.String(),
		Frame:        append(json.RawMessage(nil), frame...),
		ReceivedAt:   j.now(),
	}
	select {
	case j.queue <- r:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			j.log.Warn().Int64("dropped", n).Msg("journal: queue full, record dropped")
		}
	}
}

func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Run writes queued records until ctx ends, then flushes what is left.
func (j *Journal) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			j.flush(context.WithoutCancel(ctx))
			return
		}
		select {
		case r := <-j.queue:
			j.write(ctx, r)
		case <-ctx.Done():
		}
	}
}

func (j *Journal) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	for {
		select {
		case r := <-j.queue:
			j.write(ctx, r)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, r Record) {
	if err := j.Insert(ctx, r); err != nil {
		j.log.Warn().Err(err).Str("kind", r.Kind).Msg("journal: write failed")
	}
}

func (j *Journal) Insert(ctx context.Context, r Record) error {
	_, err := j.db.Exec(ctx,
		`INSERT INTO room_events (connection_id, kind, payload, received_at) VALUES ($1, $2, $3, $4)`,
		int64(r.ConnectionID), r.Kind, []byte(r.Frame), r.ReceivedAt)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(ctx,
		`SELECT id, connection_id, kind, payload, received_at FROM room_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r      Record
			connID int64
			frame  []byte
		)
		if err := rows.Scan(&r.ID, &connID, &r.Kind, &frame, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		r.ConnectionID = uint64(connID)
		r.Frame = frame
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return out, nil
}
