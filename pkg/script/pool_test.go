package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingRunner struct{ id int }

func (countingRunner) Runner() {}

type countingFactory struct{ created *int }

func (f countingFactory) NewRunner() Runner {
	*f.created++
	return countingRunner{id: *f.created}
}

func TestRunnerPoolGrowsToMaxAndShrinksToMin(t *testing.T) {
	created := 0
	pool := NewRunnerPool(t.Context(), countingFactory{created: &created}, 3, 1)
	assert.Equal(t, 1, created)

	a := pool.GetRunnerFromPool()
	b := pool.GetRunnerFromPool()
	c := pool.GetRunnerFromPool()
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, pool.ActiveRunners())

	pool.ReturnRunnerToPool(a)
	pool.ReturnRunnerToPool(b)
	pool.ReturnRunnerToPool(c)

	pool.shrink()
	assert.Equal(t, 1, pool.ActiveRunners())
}

func TestRunnerPoolPanicsOnInvertedBounds(t *testing.T) {
	assert.Panics(t, func() {
		NewRunnerPool(t.Context(), countingFactory{created: new(int)}, 1, 2)
	})
}
