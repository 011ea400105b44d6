package dpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircularArray_GetSetWrapsModuloSize(t *testing.T) {
	a := newCircularArray[int](2) // size 4
	require.EqualValues(t, 4, a.size())

	a.set(0, 10)
	a.set(1, 11)
	a.set(4, 40) // wraps to index 0
	require.Equal(t, 40, a.get(0))
	require.Equal(t, 11, a.get(1))
	require.Equal(t, 40, a.get(4))
}

func TestCircularArray_GrowPreservesWindow(t *testing.T) {
	a := newCircularArray[int](2) // size 4
	for i := int64(0); i < 4; i++ {
		a.set(i, int(i)*10)
	}

	grown := a.grow(4, 0)
	require.EqualValues(t, 8, grown.size())
	for i := int64(0); i < 4; i++ {
		require.Equal(t, int(i)*10, grown.get(i))
	}
}

func TestCircularArray_ShrinkPreservesWindow(t *testing.T) {
	a := newCircularArray[int](3) // size 8
	for i := int64(2); i < 5; i++ {
		a.set(i, int(i)*10)
	}

	shrunk := a.shrink(5, 2)
	require.EqualValues(t, 4, shrunk.size())
	for i := int64(2); i < 5; i++ {
		require.Equal(t, int(i)*10, shrunk.get(i))
	}
}

func TestCircularArray_NewClampsLogSizeToAtLeastOne(t *testing.T) {
	a := newCircularArray[int](0)
	require.EqualValues(t, 2, a.size())
}
