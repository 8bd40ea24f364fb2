package volume

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexLayout(t *testing.T) {
	v := New(2)
	require.Equal(t, 4, v.Side())
	require.Equal(t, 64, v.Len())
	require.Equal(t, 0, v.Index(Position{}))
	require.Equal(t, 1, v.Index(Position{X: 1}))
	require.Equal(t, 4, v.Index(Position{Y: 1}))
	require.Equal(t, 16, v.Index(Position{Z: 1}))
	require.Equal(t, 63, v.Index(Position{X: 3, Y: 3, Z: 3}))
}

func TestSetGet(t *testing.T) {
	v := New(3)
	p := Position{X: 5, Y: 1, Z: 7}
	require.False(t, v.Get(p))
	v.Set(p, true)
	require.True(t, v.Get(p))
	require.True(t, v.GetIndex(v.Index(p)))
	require.Equal(t, 1, v.Count())

	require.Panics(t, func() { v.Get(Position{X: 8}) })
	require.Panics(t, func() { v.Set(Position{Y: -1}, true) })
}

func TestNewMaxDepth(t *testing.T) {
	require.Panics(t, func() { New(MaxDepth + 1) })
	require.Panics(t, func() { New(16) })
	require.Equal(t, 1, New(0).Len())
}

func TestEachOrder(t *testing.T) {
	v := New(1)
	var seen []int
	v.Each(func(p Position, _ bool) {
		seen = append(seen, v.Index(p))
	})
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, seen)
}

func TestFillSphere(t *testing.T) {
	v := New(3)
	v.FillSphere(Position{X: 8, Y: 8, Z: 8}, 4.0, true)

	require.True(t, v.Get(Position{X: 7, Y: 7, Z: 7}))
	require.True(t, v.Get(Position{X: 5, Y: 7, Z: 7}))
	require.False(t, v.Get(Position{X: 4, Y: 8 - 1, Z: 7}))
	require.False(t, v.Get(Position{}))
	require.Greater(t, v.Count(), 0)
}

func TestFillBox(t *testing.T) {
	v := New(3)
	v.FillBox(Position{X: 2, Y: 2, Z: 2}, Position{X: 4, Y: 4, Z: 4}, true)
	require.Equal(t, 8, v.Count())

	v.FillBox(Position{X: -5, Y: -5, Z: -5}, Position{X: 100, Y: 100, Z: 100}, true)
	require.Equal(t, 512, v.Count())

	v.Fill(false)
	require.Equal(t, 0, v.Count())
}
