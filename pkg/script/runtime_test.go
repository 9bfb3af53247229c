package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRuntime struct {
	result any
	err    error
	seen   string
}

func (f *fixedRuntime) Evaluate(expression string, _ map[string]any) (any, error) {
	f.seen = expression
	return f.result, f.err
}

func TestEvaluatorRoutesByPrefix(t *testing.T) {
	feel := &fixedRuntime{result: true}
	js := &fixedRuntime{result: int64(3)}
	e := NewEvaluator(feel, js)

	ok, err := e.EvaluateBool("= a > 1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a > 1", feel.seen)

	n, err := e.EvaluateInt("js: items.length", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "items.length", js.seen)
}

func TestEvaluatorLiterals(t *testing.T) {
	e := NewEvaluator(nil, nil)

	v, err := e.Evaluate("  plain text ", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", v)

	n, err := e.EvaluateInt("4", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	b, err := e.EvaluateBool("false", nil)
	require.NoError(t, err)
	assert.False(t, b)

	_, err = e.Evaluate("= 1", nil)
	assert.Error(t, err)
}

func TestEvaluatorWrapsRuntimeError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEvaluator(&fixedRuntime{err: boom}, nil)
	_, err := e.Evaluate("= x", nil)
	assert.ErrorIs(t, err, boom)
}

type decimal string

func (d decimal) String() string { return string(d) }

func TestToInt(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want int
		ok   bool
	}{
		{3, 3, true},
		{int64(7), 7, true},
		{float64(2), 2, true},
		{2.5, 0, false},
		{"12", 12, true},
		{decimal("5"), 5, true},
		{decimal("5.0"), 5, true},
		{nil, 0, false},
		{"x", 0, false},
	} {
		got, err := ToInt(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrUnexpectedType, "%v", tc.in)
			continue
		}
		require.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestToBool(t *testing.T) {
	b, err := ToBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = ToBool(1)
	assert.ErrorIs(t, err, ErrUnexpectedType)
	_, err = ToBool(nil)
	assert.ErrorIs(t, err, ErrUnexpectedType)
}
