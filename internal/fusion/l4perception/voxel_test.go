package l4perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

func TestVoxelGrid_AveragesPerVoxel(t *testing.T) {
	points := []l1geom.Point{
		{X: 0.01, Y: 0.01, Z: 0.01, R: 100, HasColor: true},
		{X: 0.03, Y: 0.05, Z: 0.07, R: 200, HasColor: true},
		{X: 0.25, Y: 0.01, Z: 0.01, NormalZ: 1, HasNormal: true},
	}
	out := VoxelGrid(points, 0.1)
	require.Len(t, out, 2)

	assert.InDelta(t, 0.02, out[0].X, 1e-12)
	assert.InDelta(t, 0.03, out[0].Y, 1e-12)
	assert.InDelta(t, 0.04, out[0].Z, 1e-12)
	assert.Equal(t, uint8(150), out[0].R)
	assert.True(t, out[0].HasColor)
	assert.False(t, out[0].HasNormal)

	assert.InDelta(t, 0.25, out[1].X, 1e-12)
	assert.Equal(t, float32(1), out[1].NormalZ)
	assert.True(t, out[1].HasNormal)
}

func TestVoxelGrid_NegativeCoordinatesFloor(t *testing.T) {
	out := VoxelGrid([]l1geom.Point{{X: -0.05}, {X: 0.05}}, 0.1)
	require.Len(t, out, 2)
	assert.Less(t, out[0].X, out[1].X)
}

func TestVoxelGrid_EmptyAndDisabled(t *testing.T) {
	assert.Nil(t, VoxelGrid(nil, 0.1))
	in := []l1geom.Point{{X: 1}, {X: 1.01}}
	out := VoxelGrid(in, 0)
	assert.Equal(t, in, out)
}

func TestPlanarIndex_WithinIgnoresHeight(t *testing.T) {
	pts := []planar{{x: 0, y: 0, idx: 0}, {x: 0.1, y: 0, idx: 1}, {x: 0.3, y: 0, idx: 2}, {x: 0, y: 0.14, idx: 3}}
	ix := newPlanarIndex(pts)
	got := ix.within(nil, 0, 0.15)
	assert.ElementsMatch(t, []int{0, 1, 3}, got)
}
