package workqueue

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSQLiteQueue(t *testing.T, lease time.Duration) *SQLiteQueue {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	q, err := NewSQLiteQueue(db, lease)
	require.NoError(t, err)
	return q
}

func TestSQLiteQueue(t *testing.T) {
	runQueueContract(t, func(t *testing.T) Queue {
		return newTestSQLiteQueue(t, time.Minute)
	})
}

func TestSQLiteQueueRedeliversExpiredLease(t *testing.T) {
	q := newTestSQLiteQueue(t, 100*time.Millisecond)
	item := forwardItem("crash")
	require.NoError(t, q.Enqueue(t.Context(), item))

	first := dequeueWithin(t, q, time.Second)
	assert.Equal(t, item.Id, first.Id)
	assert.Equal(t, 0, q.Len())

	// never acked: the lease runs out and the item comes back
	second := dequeueWithin(t, q, 2*time.Second)
	assert.Equal(t, item.Id, second.Id)
	require.NoError(t, q.Ack(t.Context(), second))
	assert.Equal(t, 0, q.Len())
}
