package ptr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonZero(t *testing.T) {
	assert.Nil(t, NonZero(time.Time{}))

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	res := NonZero(now)
	if assert.NotNil(t, res) {
		assert.Equal(t, now, *res)
	}
}

func TestDeref(t *testing.T) {
	assert.Equal(t, 5, Deref(nil, 5))
	assert.Equal(t, 7, Deref(To(7), 5))
}
