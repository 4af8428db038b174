package grid

import "testing"

import "github.com/stretchr/testify/assert"

func TestNewValidatesShape(t *testing.T) {
	_, err := New(0, 2, 0)
	assert.Error(t, err)

	_, err = New(2, 2, 4)
	assert.Error(t, err)

	g, err := New(2, 2, 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, g.MyRow())
	assert.Equal(t, 1, g.MyCol())
}

func TestOwnershipWrapsAroundMesh(t *testing.T) {
	g, err := New(2, 3, 0)
	assert.NoError(t, err)

	assert.Equal(t, 0, g.RowOwner(0))
	assert.Equal(t, 1, g.RowOwner(1))
	assert.Equal(t, 0, g.RowOwner(2))
	assert.Equal(t, 0, g.ColOwner(0))
	assert.Equal(t, 1, g.ColOwner(1))
	assert.Equal(t, 2, g.ColOwner(2))
	assert.Equal(t, 0, g.ColOwner(3))
}

func TestSingleProcessGridIsAlwaysDiagonal(t *testing.T) {
	g, err := New(1, 1, 0)
	assert.NoError(t, err)
	for k := 0; k < 16; k++ {
		assert.True(t, g.IsDiagonal(k))
	}
}

func TestPNumIsRowMajor(t *testing.T) {
	g, err := New(2, 3, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, g.PNum(0, 0))
	assert.Equal(t, 4, g.PNum(1, 1))
}
