package worldgen

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// WorldOptions describes a synthetic world.
type WorldOptions struct {
	Name           string
	Seed           int64
	SpawnX, SpawnZ int // block coordinates
	Dimensions     []int
	Area           grid.Rect // chunk coordinates, per dimension
	Catalog        *veintype.Catalog
	VeinChance     int
	ErodedChance   int
}

// Generators returns the per-dimension generators WriteWorld uses for opts.
func Generators(opts WorldOptions) map[int]*Generator {
	gens := make(map[int]*Generator, len(opts.Dimensions))
	for _, dim := range opts.Dimensions {
		g := New(opts.Seed+int64(dim), dim, opts.Catalog)
		if opts.VeinChance > 0 {
			g.VeinChance = opts.VeinChance
		}
		g.ErodedChance = opts.ErodedChance
		gens[dim] = g
	}
	return gens
}

// DimensionDir returns the directory holding the region folder of a
// dimension.
func DimensionDir(worldDir string, dimensionID int) string {
	if dimensionID == 0 {
		return worldDir
	}
	return filepath.Join(worldDir, "DIM"+strconv.Itoa(dimensionID))
}

// WriteWorld writes level.dat and the region files of every dimension in
// opts into dir. Every chunk of opts.Area is generated.
func WriteWorld(dir string, opts WorldOptions) error {
	if opts.Area.Empty() {
		return fmt.Errorf("empty world area %+v", opts.Area)
	}
	lvl := region.Level{
		Name:    opts.Name,
		Seed:    opts.Seed,
		SpawnX:  int32(opts.SpawnX),
		SpawnY:  64,
		SpawnZ:  int32(opts.SpawnZ),
		Version: 19133,
	}
	if err := region.WriteLevel(dir, lvl); err != nil {
		return err
	}

	for dim, g := range Generators(opts) {
		regionDir := filepath.Join(DimensionDir(dir, dim), "region")
		if err := writeDimension(regionDir, g, opts.Area); err != nil {
			return fmt.Errorf("dimension %d: %w", dim, err)
		}
	}
	return nil
}

func writeDimension(regionDir string, g *Generator, area grid.Rect) error {
	regions := area.ChunkToRegion()
	for rx := regions.X0; rx <= regions.X1; rx++ {
		for rz := regions.Z0; rz <= regions.Z1; rz++ {
			chunks := make(map[grid.ChunkPos][]byte)
			for lx := range grid.ChunksPerRegion {
				for lz := range grid.ChunksPerRegion {
					x, z := rx*grid.ChunksPerRegion+lx, rz*grid.ChunksPerRegion+lz
					if !area.Contains(x, z) {
						continue
					}
					raw, err := region.EncodeChunk(g.Generate(x, z))
					if err != nil {
						return err
					}
					chunks[grid.ChunkPos{X: x, Z: z}] = raw
				}
			}
			if err := region.WriteRegion(regionDir, rx, rz, chunks); err != nil {
				return err
			}
		}
	}
	return nil
}
