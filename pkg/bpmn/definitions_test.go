package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_cached_definitions_load_from_storage_once(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	def := deploy(t, bpmnEngine, "simple_task.yaml")
	definitions := NewCachedDefinitions(bpmnEngine.persistence, 4)

	// when
	first, err := definitions.Get(t.Context(), def.Key)
	require.NoError(t, err)
	second, err := definitions.Get(t.Context(), def.Key)
	require.NoError(t, err)

	// then
	assert.Same(t, first, second)
	assert.Equal(t, 1, definitions.Len())
	_, ok := first.FlowNode("task")
	assert.True(t, ok)
}

func Test_cached_definitions_resolve_latest_version(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	deploy(t, bpmnEngine, "simple_task.yaml")
	v2 := deploy(t, bpmnEngine, "simple_task.yaml")
	definitions := NewCachedDefinitions(bpmnEngine.persistence, 4)

	// when
	latest, err := definitions.Latest(t.Context(), "simple-task")

	// then
	require.NoError(t, err)
	assert.Equal(t, v2.Key, latest.Key)
	assert.Equal(t, int32(2), latest.Version)
}

func Test_cached_definitions_evict_least_recently_used(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	a := deploy(t, bpmnEngine, "simple_task.yaml")
	b := deploy(t, bpmnEngine, "fork_join.yaml")
	definitions := NewCachedDefinitions(bpmnEngine.persistence, 1)

	// when
	_, err := definitions.Get(t.Context(), a.Key)
	require.NoError(t, err)
	_, err = definitions.Get(t.Context(), b.Key)
	require.NoError(t, err)

	// then
	assert.Equal(t, 1, definitions.Len())
}

func Test_cached_definitions_report_unknown_key(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	definitions := NewCachedDefinitions(bpmnEngine.persistence, 4)

	// when
	_, err := definitions.Get(t.Context(), 42)

	// then
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
