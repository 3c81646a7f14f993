package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthiness(t *testing.T) {
	assert.True(t, IsFalsey(NewNil()))
	assert.True(t, IsFalsey(NewBool(false)))
	assert.False(t, IsFalsey(NewBool(true)))
	assert.False(t, IsFalsey(NewNumber(0)))
	assert.False(t, IsFalsey(NewNumber(1)))
}

func TestEqualityAcrossKinds(t *testing.T) {
	assert.True(t, Equal(NewNil(), NewNil()))
	assert.False(t, Equal(NewNil(), NewBool(false)))
	assert.False(t, Equal(NewNumber(1), NewBool(true)))
	assert.True(t, Equal(NewNumber(1), NewNumber(1)))
	assert.False(t, Equal(NewNumber(1), NewNumber(2)))
}

func TestEqualityIsSymmetric(t *testing.T) {
	pairs := []struct{ a, b Value }{
		{NewNil(), NewBool(false)},
		{NewNumber(3), NewNumber(3)},
		{NewBool(true), NewBool(true)},
	}
	for _, p := range pairs {
		assert.Equal(t, Equal(p.a, p.b), Equal(p.b, p.a))
	}
}

func TestInterningIdempotence(t *testing.T) {
	h := NewHeap()
	a := h.InternString("hello")
	b := h.InternString("hello")
	assert.True(t, Equal(a, b))
	assert.Equal(t, a.Obj, b.Obj)

	c := h.InternString("world")
	assert.False(t, Equal(a, c))
}

func TestRender(t *testing.T) {
	h := NewHeap()
	assert.Equal(t, "nil", Render(h, NewNil()))
	assert.Equal(t, "true", Render(h, NewBool(true)))
	assert.Equal(t, "false", Render(h, NewBool(false)))
	assert.Equal(t, "1.5", Render(h, NewNumber(1.5)))
	assert.Equal(t, "3", Render(h, NewNumber(3)))

	s := h.InternString("hi")
	assert.Equal(t, "hi", Render(h, s))
	assert.Equal(t, `"hi"`, RenderQuoted(h, s))
}
