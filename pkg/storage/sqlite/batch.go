package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
)

type stmt func(ctx context.Context, tx *sql.Tx) error

// Batch runs its statements in one transaction on Flush.
type Batch struct {
	db    *sql.DB
	stmts []stmt
}

var _ storage.Batch = (*Batch)(nil)

func (b *Batch) Flush(ctx context.Context) error {
	if len(b.stmts) == 0 {
		return nil
	}
	stmts := b.stmts
	b.stmts = nil
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, s := range stmts {
		if err := s(ctx, tx); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// versioned inserts when expected is 0 and otherwise updates the row only if it still has the expected version.
func versioned(ctx context.Context, tx *sql.Tx, entity string, key int64, expected int64, insert string, insertArgs []any, update string, updateArgs []any) error {
	var res sql.Result
	var err error
	if expected == 0 {
		res, err = tx.ExecContext(ctx, insert, insertArgs...)
	} else {
		res, err = tx.ExecContext(ctx, update, updateArgs...)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s %d: %w", entity, key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %d is not at version %d", storage.ErrVersionConflict, entity, key, expected)
	}
	return nil
}

func (b *Batch) SaveProcessDefinition(ctx context.Context, definition *runtime.ProcessDefinition) error {
	body, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to encode process definition %d: %w", definition.Key, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO process_definitions (entity_key, id, version, body) VALUES (?, ?, ?, ?)
			ON CONFLICT (entity_key) DO UPDATE SET id = excluded.id, version = excluded.version, body = excluded.body`,
			definition.Key, definition.Id, definition.Version, body)
		return err
	})
	return nil
}

func (b *Batch) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	pi := processInstance
	if pi.RootProcessInstanceKey == 0 {
		pi.RootProcessInstanceKey = pi.Key
	}
	body, err := json.Marshal(pi)
	if err != nil {
		return fmt.Errorf("failed to encode process instance %d: %w", pi.Key, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		err := versioned(ctx, tx, "process instance", pi.Key, pi.Version,
			`INSERT INTO process_instances (entity_key, version, root_key, caller_key, body) VALUES (?, 1, ?, ?, ?) ON CONFLICT (entity_key) DO NOTHING`,
			[]any{pi.Key, pi.RootProcessInstanceKey, pi.CallerKey, body},
			`UPDATE process_instances SET version = version + 1, caller_key = ?, body = ? WHERE entity_key = ? AND version = ? AND root_key = ?`,
			[]any{pi.CallerKey, body, pi.Key, pi.Version, pi.RootProcessInstanceKey},
		)
		if err == nil || !errors.Is(err, storage.ErrVersionConflict) || pi.Version == 0 {
			return err
		}
		var rootKey, version int64
		if qerr := tx.QueryRowContext(ctx, `SELECT root_key, version FROM process_instances WHERE entity_key = ?`, pi.Key).Scan(&rootKey, &version); qerr == nil {
			if rootKey != pi.RootProcessInstanceKey && version == pi.Version {
				return fmt.Errorf("%w: root process instance key of %d", storage.ErrImmutableField, pi.Key)
			}
		}
		return err
	})
	return nil
}

func (b *Batch) SaveFlowNodeInstance(ctx context.Context, flowNodeInstance runtime.FlowNodeInstance) error {
	n := flowNodeInstance
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode flow node instance %d: %w", n.Key, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		return versioned(ctx, tx, "flow node instance", n.Key, n.Version,
			`INSERT INTO flow_node_instances (entity_key, version, root_container_key, body) VALUES (?, 1, ?, ?) ON CONFLICT (entity_key) DO NOTHING`,
			[]any{n.Key, n.RootContainerKey, body},
			`UPDATE flow_node_instances SET version = version + 1, body = ? WHERE entity_key = ? AND version = ?`,
			[]any{body, n.Key, n.Version},
		)
	})
	return nil
}

func (b *Batch) SaveConnectorInstance(ctx context.Context, connectorInstance runtime.ConnectorInstance) error {
	c := connectorInstance
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode connector instance %d: %w", c.Key, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		return versioned(ctx, tx, "connector instance", c.Key, c.Revision,
			`INSERT INTO connector_instances (entity_key, revision, container_key, container_type, activation_event, execution_order, body)
			 VALUES (?, 1, ?, ?, ?, ?, ?) ON CONFLICT (entity_key) DO NOTHING`,
			[]any{c.Key, c.ContainerKey, string(c.ContainerType), string(c.ActivationEvent), c.ExecutionOrder, body},
			`UPDATE connector_instances SET revision = revision + 1, body = ? WHERE entity_key = ? AND revision = ?`,
			[]any{body, c.Key, c.Revision},
		)
	})
	return nil
}

func (b *Batch) SaveTokenSet(ctx context.Context, tokenSet runtime.TokenSet) error {
	set := tokenSet
	body, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode token set of %d: %w", set.ProcessInstanceKey, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		return versioned(ctx, tx, "token set", set.ProcessInstanceKey, set.Version,
			`INSERT INTO token_sets (process_instance_key, version, body) VALUES (?, 1, ?) ON CONFLICT (process_instance_key) DO NOTHING`,
			[]any{set.ProcessInstanceKey, body},
			`UPDATE token_sets SET version = version + 1, body = ? WHERE process_instance_key = ? AND version = ?`,
			[]any{body, set.ProcessInstanceKey, set.Version},
		)
	})
	return nil
}

func (b *Batch) SaveHiddenTask(ctx context.Context, hiddenTask runtime.HiddenTask) error {
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO hidden_tasks (activity_instance_key, user_key, hidden_at) VALUES (?, ?, ?)
			ON CONFLICT (activity_instance_key, user_key) DO UPDATE SET hidden_at = excluded.hidden_at`,
			hiddenTask.ActivityInstanceKey, hiddenTask.UserKey, hiddenTask.HiddenAt.UnixMilli())
		return err
	})
	return nil
}

func (b *Batch) DeleteHiddenTask(ctx context.Context, activityInstanceKey int64, userKey int64) error {
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM hidden_tasks WHERE activity_instance_key = ? AND user_key = ?`, activityInstanceKey, userKey)
		return err
	})
	return nil
}

func (b *Batch) DeleteHiddenTasksForActivity(ctx context.Context, activityInstanceKey int64) error {
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM hidden_tasks WHERE activity_instance_key = ?`, activityInstanceKey)
		return err
	})
	return nil
}

func (b *Batch) SaveIncident(ctx context.Context, incident runtime.Incident) error {
	body, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to encode incident %d: %w", incident.Key, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO incidents (entity_key, process_instance_key, body) VALUES (?, ?, ?)
			ON CONFLICT (entity_key) DO UPDATE SET body = excluded.body`,
			incident.Key, incident.ProcessInstanceKey, body)
		return err
	})
	return nil
}

func (b *Batch) SaveOutboxItem(ctx context.Context, item runtime.WorkItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode outbox item %s: %w", item.Id, err)
	}
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO outbox (item_id, body) VALUES (?, ?) ON CONFLICT (item_id) DO NOTHING`, item.Id, body)
		return err
	})
	return nil
}

func (b *Batch) DeleteOutboxItem(ctx context.Context, itemId string) error {
	b.stmts = append(b.stmts, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE item_id = ?`, itemId)
		return err
	})
	return nil
}
