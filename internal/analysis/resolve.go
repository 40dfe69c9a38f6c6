package analysis

import (
	"math"
	"sync"

	"github.com/OCharnyshevich/oreveincache/internal/cache"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// YIndex records the Y level of every ore chunk cell the first pass matched
// to a vein. Each cell is written once; later writes are ignored.
type YIndex struct {
	m sync.Map // grid.ChunkPos -> int
}

// Store records y for the cell containing the chunk.
func (ix *YIndex) Store(chunkX, chunkZ, y int) {
	ix.m.LoadOrStore(grid.OreVeinKey(chunkX, chunkZ), y)
}

// Load returns the recorded Y of the cell containing the chunk.
func (ix *YIndex) Load(chunkX, chunkZ int) (int, bool) {
	v, ok := ix.m.Load(grid.OreVeinKey(chunkX, chunkZ))
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// Resolver settles chunks the classifier found ambiguous by weighing block
// evidence per layer against the Y levels of already matched neighbors.
type Resolver struct {
	dimensionID int
	veins       []*veintype.VeinType
}

// NewResolver creates a resolver over the veins c considers.
func NewResolver(c *Classifier) *Resolver {
	return &Resolver{dimensionID: c.dimensionID, veins: c.veins}
}

// Resolve always returns a terminal classification of the chunk. It only
// reads ix.
func (r *Resolver) Resolve(chunk *region.Chunk, ix *YIndex) cache.OreVeinPosition {
	pos := cache.OreVeinPosition{
		DimensionID: r.dimensionID,
		ChunkX:      chunk.X,
		ChunkZ:      chunk.Z,
		VeinType:    veintype.NoVein,
	}

	layers := make(map[int]map[int16]int)
	for _, o := range chunk.Ores {
		m, ok := veintype.Material(o.Meta)
		if !ok {
			continue
		}
		if layers[o.Y] == nil {
			layers[o.Y] = make(map[int16]int)
		}
		layers[o.Y][m]++
	}
	if len(layers) == 0 {
		return pos
	}

	materials, minY := evidence(layers, neighborBands(chunk, ix))
	if len(materials) == 0 {
		// Neighbors explain every layer; fall back to the whole chunk.
		materials, minY = evidence(layers, nil)
	}

	if v := r.best(materials, minY, true); v != nil {
		pos.VeinType = v
	} else if v := r.best(materials, minY, false); v != nil {
		pos.VeinType = v
	}
	return pos
}

type band struct{ lo, hi int }

func neighborBands(chunk *region.Chunk, ix *YIndex) []band {
	var bands []band
	for _, n := range grid.NeighborOreChunks(chunk.X, chunk.Z) {
		if y, ok := ix.Load(n.X, n.Z); ok {
			bands = append(bands, band{lo: y, hi: y + veintype.VeinHeight - 1})
		}
	}
	return bands
}

// evidence sums the material counts of every layer outside the excluded
// bands and returns the lowest kept layer.
func evidence(layers map[int]map[int16]int, excluded []band) (map[int16]int, int) {
	materials := make(map[int16]int)
	minY := math.MaxInt
	for y, counts := range layers {
		if inBands(y, excluded) {
			continue
		}
		for m, n := range counts {
			materials[m] += n
		}
		minY = min(minY, y)
	}
	return materials, minY
}

func inBands(y int, bands []band) bool {
	for _, b := range bands {
		if y >= b.lo && y <= b.hi {
			return true
		}
	}
	return false
}

// best returns the vein with the most matching ore blocks, breaking ties by
// the number of distinct matched materials and then catalog order. With
// fitY set only veins whose height range admits minY compete.
func (r *Resolver) best(materials map[int16]int, minY int, fitY bool) *veintype.VeinType {
	var (
		winner       *veintype.VeinType
		bestScore    int
		bestDistinct int
	)
	for _, v := range r.veins {
		if fitY && !v.FitsY(minY) {
			continue
		}
		score, distinct := 0, 0
		for m, n := range materials {
			if v.Contains(m) {
				score += n
				distinct++
			}
		}
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && distinct > bestDistinct) {
			winner, bestScore, bestDistinct = v, score, distinct
		}
	}
	return winner
}
