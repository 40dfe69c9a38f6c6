package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/oreveincache/internal/cache"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// DefaultMaxFastScanMB is the largest dimension, in MiB of region files,
// scanned with the fast strategy.
const DefaultMaxFastScanMB = 8000

// Strategy is the memory/IO trade-off used to scan one dimension.
type Strategy int

const (
	// Fast buffers ambiguous chunks between the two passes.
	Fast Strategy = iota
	// Slow reads every region file twice instead of buffering.
	Slow
)

func (s Strategy) String() string {
	if s == Slow {
		return "slow"
	}
	return "fast"
}

// Options tune a scan.
type Options struct {
	// Workers bounds the parallel region file readers. Zero means one per CPU.
	Workers int
	// MaxFastScanMB is the size limit of the fast strategy. A negative
	// limit forces the slow strategy.
	MaxFastScanMB int64
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// Result summarizes one dimension scan.
type Result struct {
	DimensionID  int
	Strategy     Strategy
	Files        int
	CorruptFiles int
	OreChunks    int64
	Resolved     int64 // chunks settled by the resolver
}

// DimensionAnalysis scans the region files of one dimension into the cache.
type DimensionAnalysis struct {
	dimensionID int
	source      region.Source
	cache       *cache.ServerCache
	classifier  *Classifier
	resolver    *Resolver
	progress    Progress
	opts        Options
	log         *slog.Logger
}

// NewDimensionAnalysis creates the analysis of one dimension.
func NewDimensionAnalysis(dimensionID int, src region.Source, c *cache.ServerCache, cat *veintype.Catalog,
	progress Progress, opts Options, log *slog.Logger) *DimensionAnalysis {
	cl := NewClassifier(cat, dimensionID)
	return &DimensionAnalysis{
		dimensionID: dimensionID,
		source:      src,
		cache:       c,
		classifier:  cl,
		resolver:    NewResolver(cl),
		progress:    progress,
		opts:        opts,
		log:         log.With("dimension", dimensionID),
	}
}

// Files lists the region files the analysis would scan. A nil rect selects
// every file of the dimension; otherwise rect is in chunk coordinates.
func (d *DimensionAnalysis) Files(rect *grid.Rect) ([]region.File, error) {
	var within *grid.Rect
	if rect != nil {
		r := rect.ChunkToRegion()
		within = &r
	}
	files, err := d.source.Files(d.dimensionID, within)
	if err != nil {
		return nil, fmt.Errorf("%w: dimension %d: %v", ErrWorldUnreadable, d.dimensionID, err)
	}
	return files, nil
}

// ProcessWorld scans every region file of the dimension.
func (d *DimensionAnalysis) ProcessWorld() (Result, error) {
	files, err := d.Files(nil)
	if err != nil {
		return Result{}, err
	}
	return d.Process(files), nil
}

// ProcessSection scans the region files overlapping the inclusive chunk
// rectangle.
func (d *DimensionAnalysis) ProcessSection(rect grid.Rect) (Result, error) {
	files, err := d.Files(&rect)
	if err != nil {
		return Result{}, err
	}
	return d.Process(files), nil
}

// Process scans files, picking the strategy from their total size.
func (d *DimensionAnalysis) Process(files []region.File) Result {
	res := Result{DimensionID: d.dimensionID, Files: len(files)}

	sizeMB := region.TotalSize(files) >> 20
	if sizeMB <= d.opts.MaxFastScanMB {
		res.Strategy = Fast
		d.progress.AnnounceFastDimension(d.dimensionID)
		d.progress.SetNumberOfRegionFiles(len(files))
		d.processFast(files, &res)
	} else {
		res.Strategy = Slow
		d.progress.AnnounceSlowDimension(d.dimensionID)
		d.progress.SetNumberOfRegionFiles(len(files) * 2)
		d.processSlow(files, &res)
	}

	d.log.Info("dimension scanned", "strategy", res.Strategy, "files", res.Files,
		"size_mb", sizeMB, "ore_chunks", res.OreChunks, "resolved", res.Resolved,
		"corrupt_files", res.CorruptFiles)
	return res
}

func (d *DimensionAnalysis) processFast(files []region.File, res *Result) {
	var (
		ix      YIndex
		mu      sync.Mutex
		pending []*region.Chunk
	)
	var chunks, resolved atomic.Int64

	res.CorruptFiles += d.forEachFile(files, true, func(c *region.Chunk) {
		chunks.Add(1)
		cls := d.classifier.Classify(c)
		if cls.Ambiguous {
			resolved.Add(1)
			mu.Lock()
			pending = append(pending, c)
			mu.Unlock()
			return
		}
		d.record(c, cls, &ix)
	})

	var g errgroup.Group
	g.SetLimit(d.opts.workers())
	for _, c := range pending {
		g.Go(func() error {
			pos := d.resolver.Resolve(c, &ix)
			d.cache.NotifyOreVeinGeneration(d.dimensionID, pos.ChunkX, pos.ChunkZ, pos.VeinType)
			return nil
		})
	}
	g.Wait()

	res.OreChunks = chunks.Load()
	res.Resolved = resolved.Load()
}

func (d *DimensionAnalysis) processSlow(files []region.File, res *Result) {
	var ix YIndex
	var chunks, resolved atomic.Int64

	corrupt := d.forEachFile(files, true, func(c *region.Chunk) {
		chunks.Add(1)
		if cls := d.classifier.Classify(c); !cls.Ambiguous {
			d.record(c, cls, &ix)
		}
	})

	// Bad files were reported by the first pass.
	d.forEachFile(files, false, func(c *region.Chunk) {
		if d.cache.HasOreVein(d.dimensionID, c.X, c.Z) {
			return
		}
		resolved.Add(1)
		pos := d.resolver.Resolve(c, &ix)
		d.cache.NotifyOreVeinGeneration(d.dimensionID, pos.ChunkX, pos.ChunkZ, pos.VeinType)
	})

	res.CorruptFiles += corrupt
	res.OreChunks = chunks.Load()
	res.Resolved = resolved.Load()
}

func (d *DimensionAnalysis) record(c *region.Chunk, cls Classification, ix *YIndex) {
	d.cache.NotifyOreVeinGeneration(d.dimensionID, c.X, c.Z, cls.Vein)
	if !cls.Vein.IsNoVein() {
		ix.Store(c.X, c.Z, cls.Y)
	}
}

// forEachFile runs fn on every ore chunk of files using the worker pool.
// Bad files are skipped, and reported when report is set. Every file
// produces one progress tick. It returns the number of unreadable files.
func (d *DimensionAnalysis) forEachFile(files []region.File, report bool, fn func(c *region.Chunk)) int {
	var corrupt atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.opts.workers())

	for _, f := range files {
		g.Go(func() error {
			defer d.progress.RegionFileProcessed()
			err := region.ForEachOreChunk(f, fn)
			switch {
			case err == nil:
			case errors.Is(err, region.ErrInvalidName):
				if report {
					d.log.Warn("invalid region file name, skipping", "file", f.Path)
				}
			default:
				corrupt.Add(1)
				if report {
					d.progress.NotifyCorruptFile(f.Path, err)
				}
			}
			return nil
		})
	}
	g.Wait()
	return int(corrupt.Load())
}
