// Package veintype describes the ore vein definitions the cache can recognize
// and the per-world dictionary that gives them compact numeric ids.
package veintype

import "slices"

// VeinHeight is the number of block layers a vein occupies above its
// representative Y level.
const VeinHeight = 8

// SmallOreMeta is the first ore meta value used for small ores. Small ores
// are scattered independently of veins and never identify one.
const SmallOreMeta = 16000

// VeinType is a generatable ore vein definition recognized by the materials
// of its ore blocks.
type VeinType struct {
	Name       string `yaml:"name"`
	Primary    int16  `yaml:"primary"`
	Secondary  int16  `yaml:"secondary"`
	InBetween  int16  `yaml:"in_between"`
	Sporadic   int16  `yaml:"sporadic"`
	MinY       int    `yaml:"min_y"`
	MaxY       int    `yaml:"max_y"`
	Dimensions []int  `yaml:"dimensions"`
}

// NoVein is the vein type of a cell without any vein.
var NoVein = &VeinType{Name: "NO_VEIN"}

// IsNoVein reports whether v is the empty vein type.
func (v *VeinType) IsNoVein() bool {
	return v == nil || v == NoVein
}

// Ores returns the distinct materials of the vein's four layers.
func (v *VeinType) Ores() []int16 {
	if v.IsNoVein() {
		return nil
	}
	ores := []int16{v.Primary}
	for _, m := range []int16{v.Secondary, v.InBetween, v.Sporadic} {
		if !slices.Contains(ores, m) {
			ores = append(ores, m)
		}
	}
	return ores
}

// Contains reports whether material is one of the vein's ores.
func (v *VeinType) Contains(material int16) bool {
	if v.IsNoVein() {
		return false
	}
	return material == v.Primary || material == v.Secondary ||
		material == v.InBetween || material == v.Sporadic
}

// ContainsAll reports whether every material in materials belongs to the vein.
func (v *VeinType) ContainsAll(materials map[int16]int) bool {
	for m := range materials {
		if !v.Contains(m) {
			return false
		}
	}
	return true
}

// AllowedIn reports whether the vein can generate in the dimension. A vein
// without a dimension list generates everywhere.
func (v *VeinType) AllowedIn(dimensionID int) bool {
	return len(v.Dimensions) == 0 || slices.Contains(v.Dimensions, dimensionID)
}

// FitsY reports whether a vein whose lowest ore block sits at y could have
// been generated by v. Veins without a configured range fit everywhere.
func (v *VeinType) FitsY(y int) bool {
	if v.MaxY <= v.MinY {
		return true
	}
	return y >= v.MinY-1 && y <= v.MaxY+VeinHeight
}

// Material extracts the ore material from an ore tile entity meta value.
// The second return value is false for small ores.
func Material(meta int16) (int16, bool) {
	if int(meta) >= SmallOreMeta || meta < 0 {
		return 0, false
	}
	return meta % 1000, true
}
