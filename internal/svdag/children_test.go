package svdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChildrenSetGet(t *testing.T) {
	var c Children
	require.False(t, c.IsInteresting())

	c.Set(0, true)
	c.Set(5, true)
	c.Set(7, true)
	require.True(t, c.Get(0))
	require.False(t, c.Get(1))
	require.True(t, c.Get(5))
	require.True(t, c.Get(7))
	require.Equal(t, "10100001", c.String())

	c.Set(5, false)
	require.False(t, c.Get(5))
	require.Equal(t, 2, c.CountOccupied())
	require.True(t, c.IsInteresting())
	require.False(t, c.IsFull())
}

func TestChildrenGetN(t *testing.T) {
	c := Children(0b1011_0110)

	want := []int{0, 0, 1, 2, 2, 3, 4, 4, 5}
	for i, n := range want {
		require.Equal(t, n, c.GetN(i), "prefix count below %d", i)
	}
	require.Equal(t, 5, c.CountOccupied())

	full := Children(0xff)
	require.True(t, full.IsFull())
	for i := 0; i < 8; i++ {
		require.Equal(t, i, full.GetN(i))
	}
}
