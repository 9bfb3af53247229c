package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, PROD, Parse("prod"))
	assert.Equal(t, TEST, Parse(" Test "))
	assert.Equal(t, DEV, Parse(""))
	assert.Equal(t, DEV, Parse("staging"))
}

func TestInitProfile(t *testing.T) {
	t.Setenv("PROFILE", "PROD")

	p := InitProfile()

	assert.Equal(t, PROD, p)
	assert.Equal(t, PROD, Current)
	assert.True(t, Current.StructuredLogs())
	assert.False(t, DEV.StructuredLogs())
}
