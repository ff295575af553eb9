package corrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUnique(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
