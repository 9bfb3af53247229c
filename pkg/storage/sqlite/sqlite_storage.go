// Package sqlite persists engine state in a SQLite database through modernc.org/sqlite.
// Entities are stored as JSON bodies next to the columns used for lookups and
// optimistic locking.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/zenflake"
	_ "modernc.org/sqlite"
)

type Storage struct {
	db   *sql.DB
	keys *zenflake.Generator
}

var _ storage.Storage = (*Storage)(nil)

// Open opens dsn with the sqlite driver. The pool is limited to one connection,
// SQLite serializes writers anyway.
func Open(dsn string, keys *zenflake.Generator) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewStorage(db, keys)
}

// NewStorage initializes the schema in db.
func NewStorage(db *sql.DB, keys *zenflake.Generator) (*Storage, error) {
	s := &Storage{db: db, keys: keys}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS process_definitions (
			entity_key INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			version INTEGER NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS process_definitions_id ON process_definitions (id, version);

		CREATE TABLE IF NOT EXISTS process_instances (
			entity_key INTEGER PRIMARY KEY,
			version INTEGER NOT NULL,
			root_key INTEGER NOT NULL,
			caller_key INTEGER NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS process_instances_caller ON process_instances (caller_key);

		CREATE TABLE IF NOT EXISTS flow_node_instances (
			entity_key INTEGER PRIMARY KEY,
			version INTEGER NOT NULL,
			root_container_key INTEGER NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS flow_node_instances_root ON flow_node_instances (root_container_key, entity_key);

		CREATE TABLE IF NOT EXISTS connector_instances (
			entity_key INTEGER PRIMARY KEY,
			revision INTEGER NOT NULL,
			container_key INTEGER NOT NULL,
			container_type TEXT NOT NULL,
			activation_event TEXT NOT NULL,
			execution_order INTEGER NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS connector_instances_group ON connector_instances (container_key, container_type, activation_event);

		CREATE TABLE IF NOT EXISTS token_sets (
			process_instance_key INTEGER PRIMARY KEY,
			version INTEGER NOT NULL,
			body BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS hidden_tasks (
			activity_instance_key INTEGER NOT NULL,
			user_key INTEGER NOT NULL,
			hidden_at INTEGER NOT NULL,
			PRIMARY KEY (activity_instance_key, user_key)
		);

		CREATE TABLE IF NOT EXISTS incidents (
			entity_key INTEGER PRIMARY KEY,
			process_instance_key INTEGER NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS incidents_process_instance ON incidents (process_instance_key);

		CREATE TABLE IF NOT EXISTS outbox (
			item_id TEXT PRIMARY KEY,
			body BLOB NOT NULL
		);
	`)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GenerateId() int64 {
	return s.keys.Generate()
}

func (s *Storage) NewBatch() storage.Batch {
	return &Batch{db: s.db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func (s *Storage) FindProcessDefinitionByKey(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM process_definitions WHERE entity_key = ?`, processDefinitionKey)
	return scanDefinition(row)
}

func (s *Storage) FindLatestProcessDefinitionById(ctx context.Context, processDefinitionId string) (*runtime.ProcessDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM process_definitions WHERE id = ? ORDER BY version DESC LIMIT 1`, processDefinitionId)
	return scanDefinition(row)
}

func scanDefinition(row *sql.Row) (*runtime.ProcessDefinition, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		return nil, notFound(err)
	}
	var def runtime.ProcessDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("failed to decode process definition: %w", err)
	}
	if err := def.Index(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *Storage) FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	var pi runtime.ProcessInstance
	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version, body FROM process_instances WHERE entity_key = ?`, processInstanceKey).Scan(&version, &body)
	if err != nil {
		return pi, notFound(err)
	}
	if err := json.Unmarshal(body, &pi); err != nil {
		return pi, fmt.Errorf("failed to decode process instance %d: %w", processInstanceKey, err)
	}
	pi.Version = version
	return pi, nil
}

func (s *Storage) FindProcessInstancesByCaller(ctx context.Context, callerKey int64) ([]runtime.ProcessInstance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, body FROM process_instances WHERE caller_key = ? ORDER BY entity_key`, callerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]runtime.ProcessInstance, 0)
	for rows.Next() {
		var pi runtime.ProcessInstance
		var body []byte
		var version int64
		if err := rows.Scan(&version, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode process instance: %w", err)
		}
		pi.Version = version
		res = append(res, pi)
	}
	return res, rows.Err()
}

func (s *Storage) FindFlowNodeInstanceByKey(ctx context.Context, flowNodeInstanceKey int64) (runtime.FlowNodeInstance, error) {
	var n runtime.FlowNodeInstance
	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version, body FROM flow_node_instances WHERE entity_key = ?`, flowNodeInstanceKey).Scan(&version, &body)
	if err != nil {
		return n, notFound(err)
	}
	if err := json.Unmarshal(body, &n); err != nil {
		return n, fmt.Errorf("failed to decode flow node instance %d: %w", flowNodeInstanceKey, err)
	}
	n.Version = version
	return n, nil
}

// QueryFlowNodeInstances reads the whole matching set before yielding so no
// connection is held while the caller works on the results.
func (s *Storage) QueryFlowNodeInstances(ctx context.Context, rootContainerKey int64, predicate func(runtime.FlowNodeInstance) bool) iter.Seq2[runtime.FlowNodeInstance, error] {
	return func(yield func(runtime.FlowNodeInstance, error) bool) {
		nodes, err := s.loadFlowNodeInstances(ctx, rootContainerKey)
		if err != nil {
			yield(runtime.FlowNodeInstance{}, err)
			return
		}
		for _, n := range nodes {
			if predicate != nil && !predicate(n) {
				continue
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

func (s *Storage) loadFlowNodeInstances(ctx context.Context, rootContainerKey int64) ([]runtime.FlowNodeInstance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, body FROM flow_node_instances WHERE root_container_key = ? ORDER BY entity_key`, rootContainerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []runtime.FlowNodeInstance
	for rows.Next() {
		var n runtime.FlowNodeInstance
		var body []byte
		var version int64
		if err := rows.Scan(&version, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("failed to decode flow node instance: %w", err)
		}
		n.Version = version
		res = append(res, n)
	}
	return res, rows.Err()
}

func (s *Storage) FindConnectorInstanceByKey(ctx context.Context, connectorInstanceKey int64) (runtime.ConnectorInstance, error) {
	var c runtime.ConnectorInstance
	var body []byte
	var revision int64
	err := s.db.QueryRowContext(ctx, `SELECT revision, body FROM connector_instances WHERE entity_key = ?`, connectorInstanceKey).Scan(&revision, &body)
	if err != nil {
		return c, notFound(err)
	}
	if err := json.Unmarshal(body, &c); err != nil {
		return c, fmt.Errorf("failed to decode connector instance %d: %w", connectorInstanceKey, err)
	}
	c.Revision = revision
	return c, nil
}

func (s *Storage) FindConnectorInstances(ctx context.Context, containerKey int64, containerType runtime.ContainerType, activationEvent runtime.ActivationEvent) ([]runtime.ConnectorInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, body FROM connector_instances
		WHERE container_key = ? AND container_type = ? AND activation_event = ?
		ORDER BY execution_order, entity_key`,
		containerKey, string(containerType), string(activationEvent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]runtime.ConnectorInstance, 0)
	for rows.Next() {
		var c runtime.ConnectorInstance
		var body []byte
		var revision int64
		if err := rows.Scan(&revision, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("failed to decode connector instance: %w", err)
		}
		c.Revision = revision
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *Storage) FindTokenSet(ctx context.Context, processInstanceKey int64) (runtime.TokenSet, error) {
	var set runtime.TokenSet
	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version, body FROM token_sets WHERE process_instance_key = ?`, processInstanceKey).Scan(&version, &body)
	if err != nil {
		return set, notFound(err)
	}
	if err := json.Unmarshal(body, &set); err != nil {
		return set, fmt.Errorf("failed to decode token set of %d: %w", processInstanceKey, err)
	}
	if set.Live == nil {
		set.Live = map[int64]runtime.Token{}
	}
	set.Version = version
	return set, nil
}

func (s *Storage) IsTaskHidden(ctx context.Context, activityInstanceKey int64, userKey int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hidden_tasks WHERE activity_instance_key = ? AND user_key = ?`, activityInstanceKey, userKey).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) FindHiddenTasks(ctx context.Context, activityInstanceKey int64) ([]runtime.HiddenTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_key, hidden_at FROM hidden_tasks WHERE activity_instance_key = ? ORDER BY user_key`, activityInstanceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]runtime.HiddenTask, 0)
	for rows.Next() {
		h := runtime.HiddenTask{ActivityInstanceKey: activityInstanceKey}
		var hiddenAt int64
		if err := rows.Scan(&h.UserKey, &hiddenAt); err != nil {
			return nil, err
		}
		h.HiddenAt = time.UnixMilli(hiddenAt)
		res = append(res, h)
	}
	return res, rows.Err()
}

func (s *Storage) FindIncidentByKey(ctx context.Context, incidentKey int64) (runtime.Incident, error) {
	var inc runtime.Incident
	var body []byte
	if err := s.db.QueryRowContext(ctx, `SELECT body FROM incidents WHERE entity_key = ?`, incidentKey).Scan(&body); err != nil {
		return inc, notFound(err)
	}
	if err := json.Unmarshal(body, &inc); err != nil {
		return inc, fmt.Errorf("failed to decode incident %d: %w", incidentKey, err)
	}
	return inc, nil
}

func (s *Storage) FindIncidentsByProcessInstanceKey(ctx context.Context, processInstanceKey int64) ([]runtime.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM incidents WHERE process_instance_key = ? ORDER BY entity_key`, processInstanceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]runtime.Incident, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var inc runtime.Incident
		if err := json.Unmarshal(body, &inc); err != nil {
			return nil, fmt.Errorf("failed to decode incident: %w", err)
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *Storage) FindOutboxItems(ctx context.Context, limit int) ([]runtime.WorkItem, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM outbox ORDER BY item_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]runtime.WorkItem, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var item runtime.WorkItem
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("failed to decode outbox item: %w", err)
		}
		res = append(res, item)
	}
	return res, rows.Err()
}
