package analysis

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCharnyshevich/oreveincache/internal/cache"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// ErrWorldUnreadable is returned when the world directory or its level.dat
// cannot be read. The cache is left untouched.
var ErrWorldUnreadable = errors.New("world unreadable")

// WorldAnalysis scans a world save into a cache.
type WorldAnalysis struct {
	source   region.Source
	level    region.Level
	cache    *cache.ServerCache
	catalog  *veintype.Catalog
	progress Progress
	opts     Options
	log      *slog.Logger
}

// NewWorldAnalysis opens the world save in dir.
func NewWorldAnalysis(dir string, c *cache.ServerCache, cat *veintype.Catalog, progress Progress,
	opts Options, log *slog.Logger) (*WorldAnalysis, error) {
	src, err := region.NewDirSource(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorldUnreadable, err)
	}
	lvl, err := region.ReadLevel(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorldUnreadable, err)
	}
	return &WorldAnalysis{
		source:   src,
		level:    lvl,
		cache:    c,
		catalog:  cat,
		progress: progress,
		opts:     opts,
		log:      log,
	}, nil
}

// Level returns the world metadata read when the analysis was opened.
func (w *WorldAnalysis) Level() region.Level {
	return w.level
}

func (w *WorldAnalysis) dimension(dimensionID int) *DimensionAnalysis {
	return NewDimensionAnalysis(dimensionID, w.source, w.cache, w.catalog, w.progress, w.opts, w.log)
}

// CacheVeins rebuilds the cache from every dimension of the world. Every
// dimension's files are listed before the cache is reset, so a world that
// cannot be read leaves the cache as it was.
func (w *WorldAnalysis) CacheVeins() ([]Result, error) {
	w.log.Info("scanning world save for ore veins, this may take a while", "level_name", w.level.Name)

	ids, err := w.source.DimensionIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorldUnreadable, err)
	}

	dims := make([]*DimensionAnalysis, len(ids))
	files := make([][]region.File, len(ids))
	for i, id := range ids {
		dims[i] = w.dimension(id)
		if files[i], err = dims[i].Files(nil); err != nil {
			return nil, err
		}
	}

	w.cache.Reset()
	w.progress.SetNumberOfDimensions(len(ids))
	results := make([]Result, 0, len(ids))
	for i, d := range dims {
		results = append(results, d.Process(files[i]))
		w.progress.DimensionProcessed()
	}
	w.progress.ProcessingFinished()
	return results, nil
}

// CacheSection rescans the region files overlapping the inclusive chunk
// rectangle of one dimension, dropping the cached veins inside it first.
// An inverted rectangle scans nothing.
func (w *WorldAnalysis) CacheSection(dimensionID int, rect grid.Rect) (Result, error) {
	if rect.Empty() {
		w.log.Warn("empty section, nothing to scan", "dimension", dimensionID, "rect", rect)
		return Result{DimensionID: dimensionID}, nil
	}
	d := w.dimension(dimensionID)
	files, err := d.Files(&rect)
	if err != nil {
		return Result{}, err
	}

	w.cache.ResetSome(dimensionID, rect.X0, rect.Z0, rect.X1, rect.Z1)
	w.progress.SetNumberOfDimensions(1)
	res := d.Process(files)
	w.progress.DimensionProcessed()
	w.progress.ProcessingFinished()
	return res, nil
}

// SpawnRect returns the square of chunks within radius of the spawn chunk.
func (w *WorldAnalysis) SpawnRect(radius int) grid.Rect {
	x, z := w.level.SpawnChunk()
	return grid.Rect{X0: x - radius, Z0: z - radius, X1: x + radius, Z1: z + radius}
}

// CacheSpawnVeins rescans the overworld chunks around the world spawn.
func (w *WorldAnalysis) CacheSpawnVeins(radius int) (Result, error) {
	rect := w.SpawnRect(radius)
	w.log.Info("re-caching spawn chunks", "rect", rect)
	return w.CacheSection(0, rect)
}
