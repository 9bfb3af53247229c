package feel

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeelRuntimeComparison(t *testing.T) {
	rt := NewFeelRuntime()

	res, err := rt.Evaluate("amount > 100", map[string]any{"amount": 150})
	require.NoError(t, err)
	assert.Equal(t, true, res)

	res, err = rt.Evaluate("amount > 100", map[string]any{"amount": 50})
	require.NoError(t, err)
	assert.Equal(t, false, res)
}

func TestFeelRuntimeArithmeticConvertsToInt(t *testing.T) {
	rt := NewFeelRuntime()
	res, err := rt.Evaluate("1 + 2", nil)
	require.NoError(t, err)

	n, err := script.ToInt(res)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
