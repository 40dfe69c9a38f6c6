// Package cache is the authoritative in-memory store of ore veins and
// underground fluids per dimension, with change tracking and the binary
// format used to persist it.
package cache

import (
	"slices"

	"github.com/OCharnyshevich/oreveincache/internal/fluid"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// UpdateResult tells callers what a put changed.
type UpdateResult int

const (
	AlreadyKnown UpdateResult = iota
	Updated
	New
)

func (r UpdateResult) String() string {
	switch r {
	case AlreadyKnown:
		return "AlreadyKnown"
	case Updated:
		return "Updated"
	case New:
		return "New"
	}
	return "UpdateResult(?)"
}

// OreVeinPosition is the vein found in one ore chunk cell.
type OreVeinPosition struct {
	DimensionID int
	ChunkX      int
	ChunkZ      int
	VeinType    *veintype.VeinType
	Depleted    bool
}

// NoVeinAt is the value reported for cells that were never prospected or
// hold no vein.
func NoVeinAt(dimensionID, chunkX, chunkZ int) OreVeinPosition {
	return OreVeinPosition{
		DimensionID: dimensionID,
		ChunkX:      chunkX,
		ChunkZ:      chunkZ,
		VeinType:    veintype.NoVein,
		Depleted:    true,
	}
}

// JoinDepletedState returns p with the depleted flag of other or-ed in.
func (p OreVeinPosition) JoinDepletedState(other OreVeinPosition) OreVeinPosition {
	p.Depleted = p.Depleted || other.Depleted
	return p
}

// UndergroundFluidPosition is the fluid distribution of one underground
// fluid cell. Chunks[x][z] is the magnitude of the sub-chunk column at
// offset (x, z) within the cell.
type UndergroundFluidPosition struct {
	DimensionID int
	ChunkX      int
	ChunkZ      int
	Fluid       *fluid.Fluid
	Chunks      [][]int
}

// NotProspected is the value reported for fluid cells that are not cached.
func NotProspected(dimensionID, chunkX, chunkZ, sizeX, sizeZ int) UndergroundFluidPosition {
	return UndergroundFluidPosition{
		DimensionID: dimensionID,
		ChunkX:      chunkX,
		ChunkZ:      chunkZ,
		Chunks:      NewFluidGrid(sizeX, sizeZ),
	}
}

// NewFluidGrid allocates a zeroed magnitude grid.
func NewFluidGrid(sizeX, sizeZ int) [][]int {
	g := make([][]int, sizeX)
	for x := range g {
		g[x] = make([]int, sizeZ)
	}
	return g
}

// IsProspected reports whether the position carries a fluid.
func (p UndergroundFluidPosition) IsProspected() bool {
	return p.Fluid != nil
}

// Equal reports whether both positions hold the same fluid, compared by
// name, with identical magnitude grids.
func (p UndergroundFluidPosition) Equal(other UndergroundFluidPosition) bool {
	if (p.Fluid == nil) != (other.Fluid == nil) {
		return false
	}
	if p.Fluid != nil && p.Fluid.Name != other.Fluid.Name {
		return false
	}
	if len(p.Chunks) != len(other.Chunks) {
		return false
	}
	for x := range p.Chunks {
		if !slices.Equal(p.Chunks[x], other.Chunks[x]) {
			return false
		}
	}
	return true
}

// MaxMagnitude returns the largest magnitude in the grid.
func (p UndergroundFluidPosition) MaxMagnitude() int {
	best := 0
	for _, col := range p.Chunks {
		for _, v := range col {
			best = max(best, v)
		}
	}
	return best
}
