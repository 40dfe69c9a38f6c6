package cache

import (
	"sort"
	"sync"

	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// ServerCache owns one DimensionCache per dimension of a loaded world. It is
// created by the world session and handed to scanners and query callers.
type ServerCache struct {
	opts Options

	mu    sync.RWMutex
	dims  map[int]*DimensionCache
	reset bool
}

// NewServerCache creates an empty cache.
func NewServerCache(opts Options) *ServerCache {
	return &ServerCache{
		opts: opts,
		dims: make(map[int]*DimensionCache),
	}
}

// Options returns the options every dimension cache is created with.
func (s *ServerCache) Options() Options {
	return s.opts
}

// Dimension returns the cache of a dimension, creating it on first use.
func (s *ServerCache) Dimension(dimensionID int) *DimensionCache {
	s.mu.RLock()
	d, ok := s.dims[dimensionID]
	s.mu.RUnlock()
	if ok {
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dims[dimensionID]; ok {
		return d
	}
	d = NewDimensionCache(dimensionID, s.opts)
	s.dims[dimensionID] = d
	return d
}

func (s *ServerCache) lookup(dimensionID int) (*DimensionCache, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dims[dimensionID]
	return d, ok
}

// Dimensions returns every dimension cache ordered by id.
func (s *ServerCache) Dimensions() []*DimensionCache {
	s.mu.RLock()
	out := make([]*DimensionCache, 0, len(s.dims))
	for _, d := range s.dims {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DimensionID < out[j].DimensionID })
	return out
}

// NotifyOreVeinGeneration records a scan result. Cells without a vein are
// not stored since absence already reads as NoVein.
func (s *ServerCache) NotifyOreVeinGeneration(dimensionID, chunkX, chunkZ int, v *veintype.VeinType) UpdateResult {
	if v.IsNoVein() {
		return AlreadyKnown
	}
	return s.PutOreVein(OreVeinPosition{
		DimensionID: dimensionID,
		ChunkX:      chunkX,
		ChunkZ:      chunkZ,
		VeinType:    v,
	})
}

// PutOreVein stores a vein in its dimension.
func (s *ServerCache) PutOreVein(pos OreVeinPosition) UpdateResult {
	return s.Dimension(pos.DimensionID).PutOreVein(pos)
}

// GetOreVein looks a vein up without creating the dimension.
func (s *ServerCache) GetOreVein(dimensionID, chunkX, chunkZ int) OreVeinPosition {
	if d, ok := s.lookup(dimensionID); ok {
		return d.GetOreVein(chunkX, chunkZ)
	}
	return NoVeinAt(dimensionID, chunkX, chunkZ)
}

// HasOreVein reports whether the cell containing the chunk is cached.
func (s *ServerCache) HasOreVein(dimensionID, chunkX, chunkZ int) bool {
	if d, ok := s.lookup(dimensionID); ok {
		return d.HasOreVein(chunkX, chunkZ)
	}
	return false
}

// ToggleOreVein flips the depleted flag of a known vein.
func (s *ServerCache) ToggleOreVein(dimensionID, chunkX, chunkZ int) {
	if d, ok := s.lookup(dimensionID); ok {
		d.ToggleOreVein(chunkX, chunkZ)
	}
}

// PutUndergroundFluid stores a fluid cell in its dimension.
func (s *ServerCache) PutUndergroundFluid(pos UndergroundFluidPosition) UpdateResult {
	return s.Dimension(pos.DimensionID).PutUndergroundFluid(pos)
}

// GetUndergroundFluid looks a fluid cell up without creating the dimension.
func (s *ServerCache) GetUndergroundFluid(dimensionID, chunkX, chunkZ int) UndergroundFluidPosition {
	if d, ok := s.lookup(dimensionID); ok {
		return d.GetUndergroundFluid(chunkX, chunkZ)
	}
	return NotProspected(dimensionID, chunkX, chunkZ, s.opts.FluidSizeX, s.opts.FluidSizeZ)
}

// ResetSome drops the veins of one dimension inside the inclusive chunk
// rectangle before that area is scanned again.
func (s *ServerCache) ResetSome(dimensionID, startX, startZ, endX, endZ int) int {
	if d, ok := s.lookup(dimensionID); ok {
		return d.ClearOreVeins(startX, startZ, endX, endZ)
	}
	return 0
}

// Reset drops every dimension.
func (s *ServerCache) Reset() {
	s.mu.Lock()
	s.dims = make(map[int]*DimensionCache)
	s.reset = true
	s.mu.Unlock()
}

// RequestFullSave makes the next save replace every persisted dimension as
// if Reset had been called, without dropping any cached data.
func (s *ServerCache) RequestFullSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = true
	for _, d := range s.dims {
		d.RequestRewrite()
	}
}

// TakeReset reports whether Reset was called since the last call, meaning
// persisted data must be replaced rather than appended to.
func (s *ServerCache) TakeReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reset
	s.reset = false
	return r
}
