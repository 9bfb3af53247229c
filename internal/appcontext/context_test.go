package appcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionKey(t *testing.T) {
	ctx := WithExecutionKey(context.Background(), 42)

	key, found := GetExecutionContext(ctx)
	assert.True(t, found)
	assert.Equal(t, int64(42), key)

	key, found = GetExecutionContext(context.Background())
	assert.False(t, found)
	assert.Equal(t, int64(0), key)
}

func TestWorker(t *testing.T) {
	ctx := WithWorker(context.Background(), "worker-1")
	name, found := GetWorker(ctx)
	assert.True(t, found)
	assert.Equal(t, "worker-1", name)

	_, found = GetWorker(context.Background())
	assert.False(t, found)
}
