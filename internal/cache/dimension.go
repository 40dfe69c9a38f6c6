package cache

import (
	"sort"
	"sync"

	"github.com/OCharnyshevich/oreveincache/internal/fluid"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

const shardCount = 32

// Options are shared by every dimension cache of a session.
type Options struct {
	Veins      *veintype.Dictionary
	Fluids     *fluid.Registry
	FluidSizeX int
	FluidSizeZ int
}

// oreShard holds the ore cells whose key hashes to it. Scanner workers
// insert into different shards without contending on one lock.
type oreShard struct {
	mu      sync.RWMutex
	veins   map[grid.ChunkPos]OreVeinPosition
	changed map[grid.ChunkPos]struct{}
}

// DimensionCache holds the ore veins and underground fluids of one
// dimension. All methods are safe for concurrent use.
type DimensionCache struct {
	DimensionID int
	opts        Options

	shards [shardCount]oreShard

	fluidMu       sync.RWMutex
	fluids        map[grid.ChunkPos]UndergroundFluidPosition
	changedFluids map[grid.ChunkPos]struct{}

	rewriteMu sync.Mutex
	rewrite   bool
}

// NewDimensionCache creates an empty cache for one dimension.
func NewDimensionCache(dimensionID int, opts Options) *DimensionCache {
	d := &DimensionCache{
		DimensionID:   dimensionID,
		opts:          opts,
		fluids:        make(map[grid.ChunkPos]UndergroundFluidPosition),
		changedFluids: make(map[grid.ChunkPos]struct{}),
	}
	for i := range d.shards {
		d.shards[i].veins = make(map[grid.ChunkPos]OreVeinPosition)
		d.shards[i].changed = make(map[grid.ChunkPos]struct{})
	}
	return d
}

func (d *DimensionCache) shard(key grid.ChunkPos) *oreShard {
	h := uint(key.X*73856093 ^ key.Z*19349663)
	return &d.shards[h%shardCount]
}

// PutOreVein stores a vein. A cell seen for the first time is New. A cell
// holding a different vein type is overwritten, keeps its depleted flag and
// is also reported New. The same vein type again is AlreadyKnown and leaves
// the cell untouched.
func (d *DimensionCache) PutOreVein(pos OreVeinPosition) UpdateResult {
	key := grid.OreVeinKey(pos.ChunkX, pos.ChunkZ)
	s := d.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.veins[key]
	if !ok {
		s.veins[key] = pos
		s.changed[key] = struct{}{}
		return New
	}
	if stored.VeinType != pos.VeinType {
		s.veins[key] = pos.JoinDepletedState(stored)
		s.changed[key] = struct{}{}
		return New
	}
	return AlreadyKnown
}

// ToggleOreVein flips the depleted flag of a known cell. Unknown cells are
// ignored.
func (d *DimensionCache) ToggleOreVein(chunkX, chunkZ int) {
	key := grid.OreVeinKey(chunkX, chunkZ)
	s := d.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.veins[key]; ok {
		stored.Depleted = !stored.Depleted
		s.veins[key] = stored
		s.changed[key] = struct{}{}
	}
}

// GetOreVein returns the vein of the cell containing the chunk, or the
// NoVeinAt sentinel.
func (d *DimensionCache) GetOreVein(chunkX, chunkZ int) OreVeinPosition {
	key := grid.OreVeinKey(chunkX, chunkZ)
	s := d.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.veins[key]; ok {
		return stored
	}
	return NoVeinAt(d.DimensionID, chunkX, chunkZ)
}

// HasOreVein reports whether the cell containing the chunk is cached.
func (d *DimensionCache) HasOreVein(chunkX, chunkZ int) bool {
	key := grid.OreVeinKey(chunkX, chunkZ)
	s := d.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.veins[key]
	return ok
}

// ClearOreVeins removes every cell whose stored chunk coordinates lie in the
// inclusive rectangle. Coordinates are raw chunk coordinates; an inverted
// rectangle removes nothing.
func (d *DimensionCache) ClearOreVeins(startX, startZ, endX, endZ int) int {
	r := grid.Rect{X0: startX, Z0: startZ, X1: endX, Z1: endZ}
	if r.Empty() {
		return 0
	}
	removed := 0
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.Lock()
		for key, v := range s.veins {
			if r.Contains(v.ChunkX, v.ChunkZ) {
				delete(s.veins, key)
				delete(s.changed, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		d.RequestRewrite()
	}
	return removed
}

// RequestRewrite makes the next TakeRewrite report true, so the next save
// writes a full snapshot of the dimension.
func (d *DimensionCache) RequestRewrite() {
	d.rewriteMu.Lock()
	d.rewrite = true
	d.rewriteMu.Unlock()
}

// AllOreVeins returns a snapshot of every cached vein.
func (d *DimensionCache) AllOreVeins() []OreVeinPosition {
	var out []OreVeinPosition
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		for _, v := range s.veins {
			out = append(out, v)
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkX != out[j].ChunkX {
			return out[i].ChunkX < out[j].ChunkX
		}
		return out[i].ChunkZ < out[j].ChunkZ
	})
	return out
}

// OreVeinCount returns the number of cached veins.
func (d *DimensionCache) OreVeinCount() int {
	n := 0
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		n += len(s.veins)
		s.mu.RUnlock()
	}
	return n
}

func (d *DimensionCache) fluidKey(chunkX, chunkZ int) grid.ChunkPos {
	return grid.FluidKey(chunkX, chunkZ, d.opts.FluidSizeX, d.opts.FluidSizeZ)
}

// PutUndergroundFluid stores a fluid cell and reports whether it was
// unknown (New), different from the stored one (Updated) or identical
// (AlreadyKnown). Positions without a fluid are ignored.
func (d *DimensionCache) PutUndergroundFluid(pos UndergroundFluidPosition) UpdateResult {
	if !pos.IsProspected() {
		return AlreadyKnown
	}
	key := d.fluidKey(pos.ChunkX, pos.ChunkZ)
	d.fluidMu.Lock()
	defer d.fluidMu.Unlock()

	stored, ok := d.fluids[key]
	switch {
	case !ok:
		d.fluids[key] = pos
		d.changedFluids[key] = struct{}{}
		return New
	case !stored.Equal(pos):
		d.fluids[key] = pos
		d.changedFluids[key] = struct{}{}
		return Updated
	}
	return AlreadyKnown
}

// GetUndergroundFluid returns the fluid cell containing the chunk, or a
// not-prospected value.
func (d *DimensionCache) GetUndergroundFluid(chunkX, chunkZ int) UndergroundFluidPosition {
	key := d.fluidKey(chunkX, chunkZ)
	d.fluidMu.RLock()
	defer d.fluidMu.RUnlock()

	if stored, ok := d.fluids[key]; ok {
		return stored
	}
	return NotProspected(d.DimensionID, chunkX, chunkZ, d.opts.FluidSizeX, d.opts.FluidSizeZ)
}

// AllUndergroundFluids returns a snapshot of every cached fluid cell.
func (d *DimensionCache) AllUndergroundFluids() []UndergroundFluidPosition {
	d.fluidMu.RLock()
	defer d.fluidMu.RUnlock()

	out := make([]UndergroundFluidPosition, 0, len(d.fluids))
	for _, f := range d.fluids {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkX != out[j].ChunkX {
			return out[i].ChunkX < out[j].ChunkX
		}
		return out[i].ChunkZ < out[j].ChunkZ
	})
	return out
}

// SaveOreChunks serializes the cells changed since the last save and clears
// their dirty marks. It returns nil when nothing changed.
func (d *DimensionCache) SaveOreChunks() ([]byte, error) {
	type dirty struct {
		key grid.ChunkPos
		pos OreVeinPosition
	}
	var entries []dirty
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		for key := range s.changed {
			entries = append(entries, dirty{key: key, pos: s.veins[key]})
		}
		s.mu.RUnlock()
	}
	if len(entries) == 0 {
		return nil, nil
	}

	positions := make([]OreVeinPosition, len(entries))
	for i, e := range entries {
		positions[i] = e.pos
	}
	buf, err := d.encodeOreVeins(positions)
	if err != nil {
		return nil, err
	}

	// A cell changed again after the snapshot stays dirty.
	for _, e := range entries {
		s := d.shard(e.key)
		s.mu.Lock()
		if cur, ok := s.veins[e.key]; ok && cur == e.pos {
			delete(s.changed, e.key)
		}
		s.mu.Unlock()
	}
	return buf, nil
}

// SaveUndergroundFluids serializes the fluid cells changed since the last
// save and clears their dirty marks. It returns nil when nothing changed.
func (d *DimensionCache) SaveUndergroundFluids() []byte {
	d.fluidMu.Lock()
	defer d.fluidMu.Unlock()

	if len(d.changedFluids) == 0 {
		return nil
	}
	entries := make([]UndergroundFluidPosition, 0, len(d.changedFluids))
	for key := range d.changedFluids {
		entries = append(entries, d.fluids[key])
	}
	clear(d.changedFluids)
	return d.encodeUndergroundFluids(entries)
}

// LoadCache repopulates the cache from persisted buffers. Loaded cells are
// not dirty. Records naming vein types or fluids that are no longer
// registered are dropped. Either buffer may be nil.
func (d *DimensionCache) LoadCache(oreVeins, undergroundFluids []byte) (LoadStats, error) {
	var stats LoadStats
	oreErr := d.decodeOreVeins(oreVeins, &stats)
	fluidErr := d.decodeUndergroundFluids(undergroundFluids, &stats)
	if oreErr != nil {
		return stats, oreErr
	}
	return stats, fluidErr
}

func (d *DimensionCache) storeLoadedOreVein(pos OreVeinPosition) {
	key := grid.OreVeinKey(pos.ChunkX, pos.ChunkZ)
	s := d.shard(key)
	s.mu.Lock()
	s.veins[key] = pos
	s.mu.Unlock()
}

func (d *DimensionCache) storeLoadedFluid(pos UndergroundFluidPosition) {
	key := d.fluidKey(pos.ChunkX, pos.ChunkZ)
	d.fluidMu.Lock()
	d.fluids[key] = pos
	d.fluidMu.Unlock()
}

// TakeRewrite reports whether cells were cleared since the last call. When
// it returns true every remaining cell is marked dirty, so the next save
// produces a full snapshot that can replace the persisted log.
func (d *DimensionCache) TakeRewrite() bool {
	d.rewriteMu.Lock()
	rewrite := d.rewrite
	d.rewrite = false
	d.rewriteMu.Unlock()
	if !rewrite {
		return false
	}

	for i := range d.shards {
		s := &d.shards[i]
		s.mu.Lock()
		for key := range s.veins {
			s.changed[key] = struct{}{}
		}
		s.mu.Unlock()
	}
	d.fluidMu.Lock()
	for key := range d.fluids {
		d.changedFluids[key] = struct{}{}
	}
	d.fluidMu.Unlock()
	return true
}
