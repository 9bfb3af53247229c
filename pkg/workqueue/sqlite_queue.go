package workqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// SQLiteQueue is a persistent queue backed by a work_items table.
//
// Dequeued items stay in the table with a lease. An item whose lease expires
// before it is acked is delivered again, which covers workers that crash
// between commit and ack.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
	lease        time.Duration
}

// NewSQLiteQueue initializes the work_items table in db.
func NewSQLiteQueue(db *sql.DB, lease time.Duration) (*SQLiteQueue, error) {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
		lease:        lease,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS work_items (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			process_instance_key INTEGER NOT NULL,
			priority INTEGER NOT NULL,
			payload BLOB NOT NULL,
			enqueued_at INTEGER NOT NULL,
			not_before INTEGER NOT NULL,
			leased_until INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS work_items_eligible ON work_items (priority DESC, not_before, id);
	`)
	return err
}

var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, item runtime.WorkItem) error {
	now := time.Now()
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = now
	}
	notBefore := item.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}
	payload, err := EncodeItem(item)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO work_items (id, kind, process_instance_key, priority, payload, enqueued_at, not_before, leased_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (id) DO UPDATE SET
			payload = excluded.payload, priority = excluded.priority,
			not_before = excluded.not_before, leased_until = 0`,
		item.Id, string(item.Kind), item.ProcessInstanceKey, item.Priority, payload,
		item.EnqueuedAt.UnixNano(), notBefore.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue work item %s: %w", item.Id, err)
	}
	return nil
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (runtime.WorkItem, error) {
	for {
		select {
		case <-ctx.Done():
			return runtime.WorkItem{}, ctx.Err()
		default:
		}

		item, found, err := q.claim(ctx)
		if err != nil {
			return runtime.WorkItem{}, err
		}
		if found {
			return item, nil
		}

		select {
		case <-ctx.Done():
			return runtime.WorkItem{}, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *SQLiteQueue) claim(ctx context.Context) (runtime.WorkItem, bool, error) {
	now := time.Now().UnixNano()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return runtime.WorkItem{}, false, err
	}
	defer tx.Rollback()

	var (
		id      string
		payload []byte
	)
	row := tx.QueryRowContext(ctx, `
		SELECT id, payload FROM work_items
		WHERE not_before <= ? AND leased_until < ?
		ORDER BY priority DESC, not_before, id
		LIMIT 1`, now, now)
	if err := row.Scan(&id, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return runtime.WorkItem{}, false, nil
		}
		return runtime.WorkItem{}, false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE work_items SET leased_until = ? WHERE id = ?`,
		now+q.lease.Nanoseconds(), id); err != nil {
		return runtime.WorkItem{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return runtime.WorkItem{}, false, err
	}

	item, err := DecodeItem(payload)
	if err != nil {
		return runtime.WorkItem{}, false, err
	}
	return item, true, nil
}

func (q *SQLiteQueue) Ack(ctx context.Context, item runtime.WorkItem) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = ? AND leased_until > 0`, item.Id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUnknownItem
	}
	return nil
}

func (q *SQLiteQueue) Nack(ctx context.Context, item runtime.WorkItem, delay time.Duration) error {
	item.Attempts++
	item.NotBefore = time.Now().Add(delay)
	payload, err := EncodeItem(item)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE work_items SET payload = ?, not_before = ?, leased_until = 0
		WHERE id = ? AND leased_until > 0`,
		payload, item.NotBefore.UnixNano(), item.Id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUnknownItem
	}
	return nil
}

func (q *SQLiteQueue) Len() int {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM work_items WHERE leased_until < ?`, time.Now().UnixNano()).Scan(&n)
	if err != nil {
		return 0
	}
	return n
}
