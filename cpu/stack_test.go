package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack_Push(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 4}
	assert.True(s.Empty())
	assert.False(s.Full())

	s.Push(0x123456)
	assert.False(s.Empty())
	assert.Equal(1, s.Size())
	assert.Equal(int32(0x123456), s.Data[0])
}

func TestStack_Pop(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 4}
	s.Push(7)
	s.Push(-12)

	val, ok := s.Pop()
	assert.True(ok)
	assert.Equal(int32(-12), val)
	assert.Equal(1, s.Size())

	val, ok = s.Pop()
	assert.True(ok)
	assert.Equal(int32(7), val)
	assert.True(s.Empty())
}

func TestStack_Pop_Empty(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 4}
	val, ok := s.Pop()
	assert.False(ok)
	assert.Equal(int32(0), val)
}

func TestStack_Full(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 2}
	s.Push(1)
	assert.False(s.Full())
	s.Push(2)
	assert.True(s.Full())
}

func TestStack_Peek(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 4}
	s.Push(9)

	val, ok := s.Peek()
	assert.True(ok)
	assert.Equal(int32(9), val)
	assert.Equal(1, s.Size())
}

func TestStack_Reset(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{Limit: 4}
	s.Push(1)
	s.Push(2)
	s.Reset()
	assert.True(s.Empty())
	assert.False(s.Full())
}
