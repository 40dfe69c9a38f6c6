// Package worldgen generates synthetic worlds whose ore chunks carry
// GregTech style ore veins. The worlds are written in the 1.7.10 Anvil
// layout and serve as fixtures and demo input for the scanner.
package worldgen

import (
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

const (
	// DefaultVeinChance is the percentage of ore chunk cells holding a vein.
	DefaultVeinChance = 60

	blocksPerLayer = 6
	smallOres      = 3

	saltVein  = 700
	saltOres  = 500
	saltSmall = 900
)

// Generator places ore veins on the ore chunk grid using seeded per-cell RNG.
type Generator struct {
	seed  int64
	veins []*veintype.VeinType

	// VeinChance is the percentage of ore chunk cells that get a vein.
	VeinChance int
	// ErodedChance is the percentage of veins that keep only their
	// secondary layers, as if the rest had been mined out.
	ErodedChance int
}

// New creates a Generator for one dimension. Only the catalog veins allowed
// in the dimension are placed.
func New(seed int64, dimensionID int, cat *veintype.Catalog) *Generator {
	g := &Generator{seed: seed, VeinChance: DefaultVeinChance}
	for _, v := range cat.Types() {
		if v.AllowedIn(dimensionID) {
			g.veins = append(g.veins, v)
		}
	}
	return g
}

// VeinAt returns the vein generated in the ore chunk cell containing the
// chunk and the Y of its lowest layer.
func (g *Generator) VeinAt(chunkX, chunkZ int) (*veintype.VeinType, int) {
	key := grid.OreVeinKey(chunkX, chunkZ)
	rng := newChunkRNG(g.seed, key.X, key.Z, saltVein)
	if len(g.veins) == 0 || rng.nextN(100) >= g.VeinChance {
		return veintype.NoVein, 0
	}
	v := g.veins[rng.nextN(len(g.veins))]
	y := v.MinY
	if v.MaxY > v.MinY {
		y += rng.nextN(v.MaxY - v.MinY + 1)
	}
	return v, y
}

// Eroded reports whether the vein of the cell containing the chunk lost
// everything but its secondary layers.
func (g *Generator) Eroded(chunkX, chunkZ int) bool {
	if g.ErodedChance <= 0 {
		return false
	}
	key := grid.OreVeinKey(chunkX, chunkZ)
	return newChunkRNG(g.seed, key.X, key.Z, saltVein+1).nextN(100) < g.ErodedChance
}

// Generate returns the ore blocks of the chunk: the layers of the vein
// covering its cell plus a few small ores.
func (g *Generator) Generate(chunkX, chunkZ int) *region.Chunk {
	c := &region.Chunk{X: chunkX, Z: chunkZ}
	if v, y := g.VeinAt(chunkX, chunkZ); !v.IsNoVein() {
		layers := veintype.VeinHeight
		if g.Eroded(chunkX, chunkZ) {
			layers = 3
		}
		g.placeVein(c, v, y, layers)
	}
	g.placeSmallOres(c)
	return c
}

func (g *Generator) placeVein(c *region.Chunk, v *veintype.VeinType, y, layers int) {
	rng := newChunkRNG(g.seed, c.X, c.Z, saltOres)
	for layer := range layers {
		material := v.Primary
		switch {
		case layer < 3:
			material = v.Secondary
		case layer < 5:
			material = v.InBetween
		}

		used := make(map[int]bool, blocksPerLayer)
		for range blocksPerLayer {
			x, z := rng.nextN(16), rng.nextN(16)
			if used[x+z*16] {
				continue
			}
			used[x+z*16] = true

			m := material
			if rng.nextN(7) == 0 {
				m = v.Sporadic
			}
			c.Ores = append(c.Ores, region.OreBlock{
				X:    c.X*16 + x,
				Y:    y + layer,
				Z:    c.Z*16 + z,
				Meta: m,
			})
		}
	}
}

// placeSmallOres scatters small ores. Their meta is offset by
// veintype.SmallOreMeta so they never identify a vein.
func (g *Generator) placeSmallOres(c *region.Chunk) {
	if len(g.veins) == 0 {
		return
	}
	rng := newChunkRNG(g.seed, c.X, c.Z, saltSmall)
	for range smallOres {
		v := g.veins[rng.nextN(len(g.veins))]
		c.Ores = append(c.Ores, region.OreBlock{
			X:    c.X*16 + rng.nextN(16),
			Y:    1 + rng.nextN(120),
			Z:    c.Z*16 + rng.nextN(16),
			Meta: int16(veintype.SmallOreMeta) + v.Primary,
		})
	}
}
