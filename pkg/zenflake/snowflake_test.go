package zenflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeMask(t *testing.T) {
	nodeId := int64(4)
	gen, err := NewGenerator(nodeId)
	require.NoError(t, err)

	key := gen.Generate()
	assert.Equal(t, nodeId, GetNodeId(key))
	assert.Equal(t, nodeId<<int64(nodeShift), key&GetNodeMask())
}

func TestKeysAreIncreasing(t *testing.T) {
	gen, err := NewGenerator(1)
	require.NoError(t, err)

	prev := gen.Generate()
	for range 1000 {
		next := gen.Generate()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNodeIdOutOfRange(t *testing.T) {
	_, err := NewGenerator(nodeMax + 1)
	assert.Error(t, err)

	id := NodeIdFromName("node-a")
	assert.GreaterOrEqual(t, id, int64(0))
	assert.LessOrEqual(t, id, nodeMax)
	assert.Equal(t, id, NodeIdFromName("node-a"))
}
