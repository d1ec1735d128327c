package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

// setupIntegrationJournal connects to JOURNAL_TEST_DSN or skips the test.
func setupIntegrationJournal(t *testing.T) (*Journal, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("JOURNAL_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: JOURNAL_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to DB: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Skipping integration test: cannot ping DB: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, AutoMigrate(ctx, pool))
	return New(pool, 0, zerolog.Nop()), pool
}

func TestJournalIntegration_RecordAndRead(t *testing.T) {
	j, pool := setupIntegrationJournal(t)
	ctx := context.Background()

	connID := uint64(time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM room_events WHERE connection_id = $1`, int64(connID))
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		j.Run(runCtx)
		close(done)
	}()
	j.Record(connID, events.KindSync, []byte(`{"type":"sync","payload":{"action":"play","timestamp":1}}`))
	j.Record(connID, events.KindHistoryClear, []byte(`{"type":"historyclear"}`))

	var mine []Record
	require.Eventually(t, func() bool {
		records, err := j.Recent(ctx, 10)
		if err != nil {
			return false
		}
		mine = mine[:0]
		for _, r := range records {
			if r.ConnectionID == connID {
				mine = append(mine, r)
			}
		}
		return len(mine) == 2
	}, 5*time.Second, 50*time.Millisecond)
	cancel()
	<-done

	require.Len(t, mine, 2)
	assert.Equal(t, "historyclear", mine[0].Kind)
	assert.Equal(t, "sync", mine[1].Kind)
	assert.JSONEq(t, `{"type":"sync","payload":{"action":"play","timestamp":1}}`, string(mine[1].Frame))
}
