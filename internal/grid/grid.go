// Package grid maps raw chunk coordinates onto the sampling grids used by the
// ore vein and underground fluid caches.
package grid

const (
	// OreChunkStride is the distance in chunks between two ore chunks on the
	// same side of zero.
	OreChunkStride = 3

	// ChunksPerRegion is the edge length of a region file in chunks.
	ChunksPerRegion = 32
)

// ChunkPos identifies a chunk by its X and Z coordinates.
type ChunkPos struct{ X, Z int }

// Rect is an inclusive rectangle. It is empty when X0 > X1 or Z0 > Z1.
type Rect struct {
	X0, Z0, X1, Z1 int
}

// Contains reports whether (x, z) lies inside r.
func (r Rect) Contains(x, z int) bool {
	return x >= r.X0 && x <= r.X1 && z >= r.Z0 && z <= r.Z1
}

// Empty reports whether r contains no coordinate at all.
func (r Rect) Empty() bool {
	return r.X0 > r.X1 || r.Z0 > r.Z1
}

// ChunkToRegion converts a chunk rectangle into the rectangle of region
// files that cover it.
func (r Rect) ChunkToRegion() Rect {
	return Rect{X0: r.X0 >> 5, Z0: r.Z0 >> 5, X1: r.X1 >> 5, Z1: r.Z1 >> 5}
}

// CenterOreChunk maps a chunk coordinate onto the center of its ore chunk
// cell. Centers are the coordinates with |c| % 3 == 1, so the grid mirrors
// at zero: cell 1 holds 0..2 and cell -1 holds only -2..-1.
func CenterOreChunk(c int) int {
	if c >= 0 {
		return c - c%OreChunkStride + 1
	}
	return c - c%OreChunkStride - 1
}

// IsOreChunk reports whether c is the center of an ore chunk cell.
func IsOreChunk(c int) bool {
	return CenterOreChunk(c) == c
}

// OreVeinKey normalizes a chunk position to its ore chunk cell.
func OreVeinKey(chunkX, chunkZ int) ChunkPos {
	return ChunkPos{X: CenterOreChunk(chunkX), Z: CenterOreChunk(chunkZ)}
}

// CornerFluidChunk maps a chunk coordinate onto the lowest corner of its
// underground fluid cell of the given size.
func CornerFluidChunk(c, size int) int {
	return c - floorMod(c, size)
}

// FluidKey normalizes a chunk position to its underground fluid cell.
func FluidKey(chunkX, chunkZ, sizeX, sizeZ int) ChunkPos {
	return ChunkPos{X: CornerFluidChunk(chunkX, sizeX), Z: CornerFluidChunk(chunkZ, sizeZ)}
}

// BlockToChunk converts a block coordinate into a chunk coordinate.
func BlockToChunk(b int) int {
	return b >> 4
}

// NeighborOreChunks returns the eight ore chunk centers surrounding the cell
// of (chunkX, chunkZ).
func NeighborOreChunks(chunkX, chunkZ int) [8]ChunkPos {
	c := OreVeinKey(chunkX, chunkZ)
	var out [8]ChunkPos
	i := 0
	for dx := -OreChunkStride; dx <= OreChunkStride; dx += OreChunkStride {
		for dz := -OreChunkStride; dz <= OreChunkStride; dz += OreChunkStride {
			if dx == 0 && dz == 0 {
				continue
			}
			// Centers 1 and -1 are only two apart.
			out[i] = ChunkPos{X: CenterOreChunk(c.X + dx), Z: CenterOreChunk(c.Z + dz)}
			i++
		}
	}
	return out
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
