package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	assert.Error(t, Required(""))
	assert.Error(t, Required("   "))
	assert.NoError(t, Required("client-id"))
}
