package bpmn

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/lock"
	"github.com/pbinitiative/zenexec/pkg/script"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/workqueue"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type EngineOption = func(*Engine)

func EngineWithExporter(exporter exporter.EventExporter) EngineOption {
	return func(engine *Engine) { engine.AddEventExporter(exporter) }
}

func EngineWithStorage(persistence storage.Storage) EngineOption {
	return func(engine *Engine) {
		engine.persistence = persistence
	}
}

func EngineWithQueue(queue workqueue.Queue) EngineOption {
	return func(engine *Engine) {
		engine.queue = queue
	}
}

// EngineWithLocker replaces the in-process locks, use a distributed locker when several engines share storage.
func EngineWithLocker(locker lock.Locker) EngineOption {
	return func(engine *Engine) {
		engine.locker = locker
	}
}

func EngineWithEvaluator(evaluator *script.Evaluator) EngineOption {
	return func(engine *Engine) {
		engine.evaluator = evaluator
	}
}

func EngineWithReachabilityOracle(oracle ReachabilityOracle) EngineOption {
	return func(engine *Engine) {
		engine.oracle = oracle
	}
}

func EngineWithName(name string) EngineOption {
	return func(engine *Engine) {
		engine.name = name
	}
}

func EngineWithTracer(tracer trace.Tracer) EngineOption {
	return func(engine *Engine) {
		engine.tracer = tracer
	}
}

func EngineWithMeter(meter metric.Meter) EngineOption {
	return func(engine *Engine) {
		engine.meter = meter
	}
}

func EngineWithLogger(logger hclog.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// EngineWithRetryPolicy sets how often a work item or connector is attempted and the base delay between attempts.
func EngineWithRetryPolicy(maxAttempts int, retryDelay time.Duration) EngineOption {
	return func(engine *Engine) {
		if maxAttempts > 0 {
			engine.maxAttempts = maxAttempts
		}
		engine.retryDelay = retryDelay
	}
}

func EngineWithDefinitionCacheSize(size int) EngineOption {
	return func(engine *Engine) {
		engine.definitionCacheSize = size
	}
}

func EngineWithClock(now func() time.Time) EngineOption {
	return func(engine *Engine) {
		engine.now = now
	}
}

// EngineWithOutboxRelayInterval sets how often a worker pool looks for committed work items
// that never reached the queue. Items younger than the interval are left alone.
func EngineWithOutboxRelayInterval(interval time.Duration) EngineOption {
	return func(engine *Engine) {
		if interval > 0 {
			engine.outboxRelayInterval = interval
		}
	}
}
