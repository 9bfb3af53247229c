package script

import (
	"context"
	"sync"
	"time"
)

type Runner interface {
	Runner()
}

type RunnerFactory interface {
	NewRunner() Runner
}

// RunnerPool hands out runners that are not safe for concurrent use. It keeps
// at least minPoolSize idle runners and creates up to maxPoolSize on demand.
type RunnerPool struct {
	pool               chan Runner
	runnerFactory      RunnerFactory
	activeRunnersCount int
	activeRunnersMu    *sync.Mutex
	maxPoolSize        int
	minPoolSize        int
}

func NewRunnerPool(ctx context.Context, runnerFactory RunnerFactory, maxPoolSize int, minPoolSize int) *RunnerPool {
	if maxPoolSize < minPoolSize {
		panic("runner pool max size is smaller than min size")
	}

	p := RunnerPool{
		pool:            make(chan Runner, maxPoolSize),
		runnerFactory:   runnerFactory,
		activeRunnersMu: &sync.Mutex{},
		maxPoolSize:     maxPoolSize,
		minPoolSize:     minPoolSize,
	}

	for range minPoolSize {
		p.pool <- p.runnerFactory.NewRunner()
		p.activeRunnersCount++
	}

	// idle runners above the minimum are dropped every 10 minutes
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.shrink()
			case <-ctx.Done():
				return
			}
		}
	}()
	return &p
}

func (r *RunnerPool) shrink() {
	for len(r.pool) > r.minPoolSize {
		select {
		case <-r.pool:
			r.activeRunnersMu.Lock()
			r.activeRunnersCount--
			r.activeRunnersMu.Unlock()
		default:
			return
		}
	}
}

func (r *RunnerPool) GetRunnerFromPool() Runner {
	var runner Runner
	select {
	case runner = <-r.pool:
	default:
		r.activeRunnersMu.Lock()
		if r.activeRunnersCount < r.maxPoolSize {
			runner = r.runnerFactory.NewRunner()
			r.activeRunnersCount++
		}
		r.activeRunnersMu.Unlock()
		if runner == nil {
			runner = <-r.pool
		}
	}
	return runner
}

func (r *RunnerPool) ReturnRunnerToPool(runner Runner) {
	select {
	case r.pool <- runner:
	default:
		r.activeRunnersMu.Lock()
		r.activeRunnersCount--
		r.activeRunnersMu.Unlock()
	}
}

func (r *RunnerPool) ActiveRunners() int {
	r.activeRunnersMu.Lock()
	defer r.activeRunnersMu.Unlock()
	return r.activeRunnersCount
}
