package website

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedirectBudget(t *testing.T) {
	b := redirectBudget{max: 2}
	assert.False(t, b.exceeded())
	assert.False(t, b.hop())
	assert.False(t, b.hop())
	assert.True(t, b.hop())
	assert.True(t, b.exceeded())
}
