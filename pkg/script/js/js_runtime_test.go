package js

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsRuntimeBindsVariables(t *testing.T) {
	rt := NewJsRuntime(t.Context(), 2, 1)

	res, err := rt.Evaluate("loopCounter < limit", map[string]any{"loopCounter": 2, "limit": 3})
	require.NoError(t, err)
	assert.Equal(t, true, res)

	res, err = rt.Evaluate("a + b", map[string]any{"a": 2, "b": 5})
	require.NoError(t, err)
	assert.EqualValues(t, 7, res)
}

func TestJsRuntimeDoesNotLeakBindings(t *testing.T) {
	rt := NewJsRuntime(t.Context(), 1, 1)

	_, err := rt.Evaluate("secret", map[string]any{"secret": "x"})
	require.NoError(t, err)

	res, err := rt.Evaluate("typeof secret", nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined", res)
}

func TestJsRuntimeReportsSyntaxError(t *testing.T) {
	rt := NewJsRuntime(t.Context(), 1, 1)
	_, err := rt.Evaluate("1 +", nil)
	assert.Error(t, err)
}
