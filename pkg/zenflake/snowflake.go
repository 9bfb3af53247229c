// Package zenflake generates the int64 keys of process instances, flow node
// instances, connectors, tokens and incidents. Keys sort by creation time
// and carry the id of the engine node that generated them.
package zenflake

import (
	"fmt"
	"hash/fnv"

	"github.com/bwmarrin/snowflake"
)

var (
	// NodeBits holds the number of bits to use for Node
	// Remember, you have a total 22 bits to share between Node/Step
	NodeBits uint8 = 10

	// StepBits holds the number of bits to use for Step
	// Remember, you have a total 22 bits to share between Node/Step
	StepBits uint8 = 12

	// internal values of bwmarrin/snowflake
	nodeMax   int64 = -1 ^ (-1 << NodeBits)
	nodeMask        = nodeMax << StepBits
	nodeShift       = StepBits
)

// Generator hands out unique keys for one engine node.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(nodeId int64) (*Generator, error) {
	if nodeId < 0 || nodeId > nodeMax {
		return nil, fmt.Errorf("node id %d outside of [0, %d]", nodeId, nodeMax)
	}
	snowflake.NodeBits = NodeBits
	snowflake.StepBits = StepBits
	node, err := snowflake.NewNode(nodeId)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeId, err)
	}
	return &Generator{node: node}, nil
}

// NewGeneratorForName derives the node id from a textual node name.
func NewGeneratorForName(name string) (*Generator, error) {
	return NewGenerator(NodeIdFromName(name))
}

func (g *Generator) Generate() int64 {
	return g.node.Generate().Int64()
}

func NodeIdFromName(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32()) & nodeMax
}

func GetNodeMask() int64 {
	return nodeMask
}

// GetNodeId returns the id of the engine node that generated key.
func GetNodeId(key int64) int64 {
	return (key & nodeMask) >> int64(nodeShift)
}
