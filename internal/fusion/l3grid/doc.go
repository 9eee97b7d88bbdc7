// Package l3grid separates ground from non-ground points with a square
// height grid centred on the sensor.
//
// Each point is binned by truncating gridDim/2 + coord/cellSize toward
// zero. Only the half of the grid with ix >= gridDim/2 (the forward half)
// produces output; points outside it are dropped from both outputs.
package l3grid
