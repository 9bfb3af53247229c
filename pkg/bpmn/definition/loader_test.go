package definition

import (
	"path/filepath"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLIndexesDefinition(t *testing.T) {
	def, err := LoadYAML(filepath.Join("..", "test-cases", "fork_join.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "fork-join", def.Id)
	assert.Equal(t, []string{"start"}, def.StartNodes())
	join, ok := def.FlowNode("join")
	require.True(t, ok)
	assert.Equal(t, runtime.GatewayTypeParallel, join.GatewayType)
	assert.Len(t, def.Incoming("join"), 2)
}

func TestLoadYAMLReportsMissingFile(t *testing.T) {
	_, err := LoadYAML(filepath.Join("..", "test-cases", "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load from file")
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte(`
id: p
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
    colour: red
`))
	assert.ErrorContains(t, err, "colour")
}

func TestParseYAMLRejectsEmptyDocument(t *testing.T) {
	_, err := ParseYAML([]byte(""))
	assert.ErrorIs(t, err, runtime.ErrInvalidDefinition)
}

func TestParseYAMLRejectsDefinitionWithoutId(t *testing.T) {
	_, err := ParseYAML([]byte(`
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
`))
	assert.ErrorIs(t, err, runtime.ErrInvalidDefinition)
}

func TestParseYAMLRejectsDanglingTransition(t *testing.T) {
	_, err := ParseYAML([]byte(`
id: p
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
transitions:
  - id: t1
    sourceRef: start
    targetRef: nowhere
`))
	assert.ErrorIs(t, err, runtime.ErrInvalidDefinition)
	assert.ErrorContains(t, err, "unknown target nowhere")
}

func TestParseYAMLLoopWithoutLoopMaxIsUnbounded(t *testing.T) {
	def, err := ParseYAML([]byte(`
id: p
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
  - id: repeat
    kind: LOOP_ACTIVITY
    loop:
      loopCondition: "js: loopCounter < 5"
  - id: bounded
    kind: LOOP_ACTIVITY
    loop:
      loopMax: 2
`))
	require.NoError(t, err)

	repeat, ok := def.FlowNode("repeat")
	require.True(t, ok)
	require.NotNil(t, repeat.Loop)
	assert.Equal(t, -1, repeat.Loop.LoopMax)
	bounded, _ := def.FlowNode("bounded")
	assert.Equal(t, 2, bounded.Loop.LoopMax)
}
