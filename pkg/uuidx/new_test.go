package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
	assert.NotEqual(t, id, New())
}

func TestNewString(t *testing.T) {
	s := NewString()
	parsed, err := uuid.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewIsTimeOrdered(t *testing.T) {
	// v7 embeds a millisecond timestamp in the high bits, so ids generated
	// in sequence compare in generation order.
	first := NewString()
	last := first
	for range 50 {
		last = NewString()
	}
	assert.LessOrEqual(t, first, last)
}
