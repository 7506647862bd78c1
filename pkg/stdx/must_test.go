package stdx

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestMust0(t *testing.T) {
	assert.NotPanics(t, func() { Must0(nil) })
	assert.PanicsWithError(t, "boom", func() { Must0(errBoom) })
}

func TestMust1(t *testing.T) {
	assert.Equal(t, 42, Must1(strconv.Atoi("42")))
	assert.PanicsWithError(t, "boom", func() { Must1(0, errBoom) })
}

func TestMust2(t *testing.T) {
	a, b := Must2("left", 2, nil)
	assert.Equal(t, "left", a)
	assert.Equal(t, 2, b)
	assert.PanicsWithError(t, "boom", func() { Must2("left", 2, errBoom) })
}
