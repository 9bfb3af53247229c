package appcontext

import (
	"context"
)

type EXECUTION_CONTEXT string

var (
	// ExecutionKey carries the key of the process instance a work item is advancing.
	ExecutionKey EXECUTION_CONTEXT = "executionKey"
	// WorkerKey carries the name of the worker goroutine handling the item.
	WorkerKey EXECUTION_CONTEXT = "workerKey"
)

func WithExecutionKey(ctx context.Context, key int64) context.Context {
	return context.WithValue(ctx, ExecutionKey, key)
}

func GetExecutionContext(ctx context.Context) (int64, bool) {
	executionContextKey, ok := ctx.Value(ExecutionKey).(int64)
	if !ok {
		return 0, false
	}
	return executionContextKey, true
}

func WithWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, WorkerKey, name)
}

func GetWorker(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(WorkerKey).(string)
	return name, ok
}
