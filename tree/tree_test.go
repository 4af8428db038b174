package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatBroadcastRootHasAllChildren(t *testing.T) {
	members := []int{3, 0, 1, 2}
	bt, err := NewBcast(members, 3, 3, 8, Flat, 0)
	require.NoError(t, err)
	assert.True(t, bt.IsRoot())
	assert.ElementsMatch(t, []int{0, 1, 2}, bt.Destinations())
}

func TestFlatBroadcastLeafHasNoChildren(t *testing.T) {
	members := []int{3, 0, 1, 2}
	bt, err := NewBcast(members, 3, 1, 8, Flat, 0)
	require.NoError(t, err)
	assert.False(t, bt.IsRoot())
	assert.Empty(t, bt.Destinations())
}

func TestBinaryTreeFanoutIsTwo(t *testing.T) {
	members := []int{0, 1, 2, 3, 4}
	root, err := NewBcast(members, 0, 0, 8, Binary, 0)
	require.NoError(t, err)
	assert.Len(t, root.Destinations(), 2)

	child, err := NewBcast(members, 0, 1, 8, Binary, 0)
	require.NoError(t, err)
	assert.Len(t, child.Destinations(), 2)
}

func TestReduceTreeRootHasNoParent(t *testing.T) {
	members := []int{0, 1, 2, 3}
	rt, err := NewReduce(members, 2, 2, 4, Binary, 0)
	require.NoError(t, err)
	assert.True(t, rt.IsRoot())
	assert.Nil(t, rt.Destinations())
}

func TestReduceTreeNonRootHasSingleParent(t *testing.T) {
	members := []int{0, 1, 2, 3}
	rt, err := NewReduce(members, 2, 1, 4, Binary, 0)
	require.NoError(t, err)
	assert.False(t, rt.IsRoot())
	assert.Len(t, rt.Destinations(), 1)
}

func TestBuildRejectsNonMember(t *testing.T) {
	_, err := NewBcast([]int{0, 1, 2}, 0, 9, 1, Flat, 0)
	assert.Error(t, err)
}
