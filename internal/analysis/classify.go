// Package analysis scans world saves and turns the ore blocks of every ore
// chunk into cached vein positions.
package analysis

import (
	"math"

	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// Classification is the outcome of the first pass over one chunk.
type Classification struct {
	// Vein is the single matching vein type, NoVein for a chunk without
	// vein ores, or nil when Ambiguous is set.
	Vein *veintype.VeinType
	// Y is the lowest vein ore block of the chunk.
	Y         int
	Ambiguous bool
}

// Classifier matches the ores of a chunk against the vein types allowed in
// one dimension. It keeps no mutable state and may be shared by workers.
type Classifier struct {
	dimensionID int
	veins       []*veintype.VeinType
}

// NewClassifier creates a classifier for the catalog veins allowed in the
// dimension.
func NewClassifier(cat *veintype.Catalog, dimensionID int) *Classifier {
	c := &Classifier{dimensionID: dimensionID}
	for _, v := range cat.Types() {
		if v.AllowedIn(dimensionID) {
			c.veins = append(c.veins, v)
		}
	}
	return c
}

// Veins returns the vein types the classifier considers, in catalog order.
func (c *Classifier) Veins() []*veintype.VeinType {
	return c.veins
}

// Classify reports the vein of a chunk when its ore materials belong to
// exactly one vein type.
func (c *Classifier) Classify(chunk *region.Chunk) Classification {
	materials, minY := oreMaterials(chunk)
	if len(materials) == 0 {
		return Classification{Vein: veintype.NoVein}
	}

	var match *veintype.VeinType
	for _, v := range c.veins {
		if !v.ContainsAll(materials) {
			continue
		}
		if match != nil {
			return Classification{Ambiguous: true}
		}
		match = v
	}
	if match == nil {
		return Classification{Ambiguous: true}
	}
	return Classification{Vein: match, Y: minY}
}

// oreMaterials counts vein ore blocks per material, ignoring small ores.
func oreMaterials(chunk *region.Chunk) (map[int16]int, int) {
	materials := make(map[int16]int)
	minY := math.MaxInt
	for _, o := range chunk.Ores {
		m, ok := veintype.Material(o.Meta)
		if !ok {
			continue
		}
		materials[m]++
		minY = min(minY, o.Y)
	}
	return materials, minY
}
