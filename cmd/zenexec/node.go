package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/internal/config"
	"github.com/pbinitiative/zenexec/internal/log"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/lock"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/storage/inmemory"
	"github.com/pbinitiative/zenexec/pkg/storage/sqlite"
	"github.com/pbinitiative/zenexec/pkg/workqueue"
	"github.com/pbinitiative/zenexec/pkg/zenflake"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// node holds an engine and the resources it was built from.
type node struct {
	engine  *bpmn.Engine
	events  *gochannel.GoChannel
	closers []func() error
}

func (n *node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			log.Error("failed to release engine resource: %s", err)
		}
	}
}

// newNode wires storage, queue, lock and event export as configured.
func newNode(conf config.Config) (*node, error) {
	n := &node{}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  conf.Name,
		Level: hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
	})
	hclog.SetDefault(logger)

	keys, err := zenflake.NewGeneratorForName(conf.NodeId)
	if err != nil {
		return nil, err
	}

	var persistence storage.Storage
	switch conf.Persistence.Type {
	case config.PersistenceSqlite:
		s, err := sqlite.Open(conf.Persistence.DSN, keys)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, s.Close)
		persistence = s
	default:
		persistence = inmemory.NewStorage()
	}

	var redisClient redis.UniversalClient
	if conf.Queue.Type == config.QueueRedis || conf.Lock.Type == config.LockRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		n.closers = append(n.closers, redisClient.Close)
	}

	var queue workqueue.Queue
	switch conf.Queue.Type {
	case config.QueueSqlite:
		db, err := sql.Open("sqlite", conf.Queue.DSN)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to open queue database: %w", err)
		}
		n.closers = append(n.closers, db.Close)
		q, err := workqueue.NewSQLiteQueue(db, conf.Lock.TTLDuration())
		if err != nil {
			n.Close()
			return nil, err
		}
		queue = q
	case config.QueueRedis:
		queue = workqueue.NewRedisQueue(redisClient, conf.Queue.Prefix)
	default:
		queue = workqueue.NewInMemoryQueue()
	}

	var locker lock.Locker
	switch conf.Lock.Type {
	case config.LockRedis:
		locker = lock.NewRedisLocker(redisClient, conf.Queue.Prefix+"lock:", conf.Lock.TTLDuration())
	default:
		locker = lock.NewLocalLocker()
	}

	n.events = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1000}, watermill.NewStdLogger(false, false))
	n.closers = append(n.closers, n.events.Close)

	n.engine, err = bpmn.NewEngine(
		bpmn.EngineWithName(conf.Name),
		bpmn.EngineWithLogger(logger),
		bpmn.EngineWithStorage(persistence),
		bpmn.EngineWithQueue(queue),
		bpmn.EngineWithLocker(locker),
		bpmn.EngineWithRetryPolicy(conf.Engine.MaxAttempts, conf.Engine.RetryDelayDuration()),
		bpmn.EngineWithDefinitionCacheSize(conf.Engine.DefinitionCacheSize),
		bpmn.EngineWithExporter(exporter.NewWatermillExporter(n.events, exporter.DefaultTopic)),
	)
	if err != nil {
		n.Close()
		return nil, err
	}
	registerBuiltinConnectors(n.engine, logger.Named("connector"))
	log.Info("engine %s on node %s: persistence=%s queue=%s lock=%s", conf.Name, conf.NodeId, conf.Persistence.Type, conf.Queue.Type, conf.Lock.Type)
	return n, nil
}

// registerBuiltinConnectors registers connectors that need no external system.
func registerBuiltinConnectors(engine *bpmn.Engine, logger hclog.Logger) {
	engine.RegisterConnector("log", bpmn.ConnectorFunc(func(ctx context.Context, request bpmn.ConnectorRequest) (map[string]any, error) {
		args := []any{"connector", request.Name, "processInstance", request.ProcessInstanceKey, "flowNode", request.FlowNodeInstanceKey}
		for k, v := range request.Inputs {
			args = append(args, k, v)
		}
		logger.Info("log connector", args...)
		return request.Inputs, nil
	}))
}
