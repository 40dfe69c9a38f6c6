// Package session ties the cache of one loaded world to its scanner, its
// persisted files and its bookkeeping database.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCharnyshevich/oreveincache/internal/analysis"
	"github.com/OCharnyshevich/oreveincache/internal/cache"
	"github.com/OCharnyshevich/oreveincache/internal/config"
	"github.com/OCharnyshevich/oreveincache/internal/fluid"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/indexdb"
	"github.com/OCharnyshevich/oreveincache/internal/region"
	"github.com/OCharnyshevich/oreveincache/internal/storage"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

// IndexFile is the name of the bookkeeping database inside the cache dir.
const IndexFile = "index.db"

// Scan kinds recorded in the index.
const (
	KindWorld   = "world"
	KindSection = "section"
	KindSpawn   = "spawn"
)

// Session owns the cache of one world from load to shutdown.
type Session struct {
	cfg     *config.Config
	log     *slog.Logger
	worldID string
	level   region.Level

	cache    *cache.ServerCache
	analysis *analysis.WorldAnalysis
	store    *storage.Storage
	index    *indexdb.Index

	// mu serializes scans and saves.
	mu sync.Mutex
}

// Open loads the cache of the world in cfg.WorldDir. A world without cached
// data, or any world when cfg.RecacheVeins is set, is scanned completely.
// The spawn area is re-cached once per world when cfg.RecacheSpawn is set.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cat, err := veintype.LoadCatalog(cfg.VeinCatalog)
	if err != nil {
		return nil, err
	}
	fluids, err := fluid.LoadRegistry(cfg.FluidCatalog)
	if err != nil {
		return nil, err
	}

	lvl, err := region.ReadLevel(cfg.WorldDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrWorldUnreadable, err)
	}
	worldID, err := storage.WorldID(cfg.WorldDir)
	if err != nil {
		return nil, err
	}

	index, err := indexdb.OpenSQLite(filepath.Join(cfg.CacheDir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	s := &Session{cfg: cfg, log: log.With("world", worldID), worldID: worldID, level: lvl, index: index}
	if err := s.init(ctx, cat, fluids); err != nil {
		s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *Session) init(ctx context.Context, cat *veintype.Catalog, fluids *fluid.Registry) error {
	if err := s.index.TouchWorld(ctx, s.worldID, s.level.Name, s.cfg.WorldDir); err != nil {
		return err
	}
	persisted, err := s.index.VeinTypes(ctx, s.worldID)
	if err != nil {
		return err
	}
	dict, added, err := veintype.NewDictionary(cat, persisted)
	if err != nil {
		return err
	}
	if err := s.index.AddVeinTypes(ctx, s.worldID, added); err != nil {
		return err
	}

	s.cache = cache.NewServerCache(cache.Options{
		Veins:      dict,
		Fluids:     fluids,
		FluidSizeX: s.cfg.UndergroundFluidSizeChunkX,
		FluidSizeZ: s.cfg.UndergroundFluidSizeChunkZ,
	})
	s.analysis, err = analysis.NewWorldAnalysis(s.cfg.WorldDir, s.cache, cat, analysis.NewLogProgress(s.log),
		analysis.Options{Workers: s.cfg.Workers, MaxFastScanMB: s.cfg.MaxDimensionSizeMBForFastScanning}, s.log)
	if err != nil {
		return err
	}
	if s.store, err = storage.New(s.cfg.CacheDir, s.worldID, s.log); err != nil {
		return err
	}

	loaded, err := s.store.Load(s.cache)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	spawnDone, err := s.index.SpawnRecached(ctx, s.worldID)
	if err != nil {
		return err
	}
	if !loaded || s.cfg.RecacheVeins {
		if err := s.CacheVeins(ctx); err != nil {
			return err
		}
		// A complete scan already covers the spawn area.
		if !spawnDone {
			return s.index.MarkSpawnRecached(ctx, s.worldID)
		}
		return nil
	}
	if s.cfg.RecacheSpawn && !spawnDone {
		_, err := s.RecacheSpawn(ctx)
		return err
	}
	return nil
}

// WorldID returns the stable identifier of the world.
func (s *Session) WorldID() string {
	return s.worldID
}

// Level returns the world metadata.
func (s *Session) Level() region.Level {
	return s.level
}

// Cache returns the cache queried by callers.
func (s *Session) Cache() *cache.ServerCache {
	return s.cache
}

// CacheVeins rescans the whole world and saves the result.
func (s *Session) CacheVeins(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	results, err := s.analysis.CacheVeins()
	if err != nil {
		return err
	}
	s.recordScans(ctx, KindWorld, started, results...)
	return s.saveLocked()
}

// ScanSection rescans the inclusive chunk rectangle of one dimension and
// saves the result.
func (s *Session) ScanSection(ctx context.Context, dimensionID int, rect grid.Rect) (analysis.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	res, err := s.analysis.CacheSection(dimensionID, rect)
	if err != nil {
		return res, err
	}
	s.recordScans(ctx, KindSection, started, res)
	return res, s.saveLocked()
}

// RecacheSpawn rescans the overworld around the world spawn and marks the
// world as done.
func (s *Session) RecacheSpawn(ctx context.Context) (analysis.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	res, err := s.analysis.CacheSpawnVeins(s.cfg.SpawnRadiusChunks)
	if err != nil {
		return res, err
	}
	s.recordScans(ctx, KindSpawn, started, res)
	if err := s.saveLocked(); err != nil {
		return res, err
	}
	return res, s.index.MarkSpawnRecached(ctx, s.worldID)
}

// recordScans stores scan results in the index. Failures are only logged;
// the history is informational.
func (s *Session) recordScans(ctx context.Context, kind string, started time.Time, results ...analysis.Result) {
	finished := time.Now()
	for _, r := range results {
		err := s.index.RecordScan(ctx, s.worldID, indexdb.ScanRecord{
			Kind:         kind,
			DimensionID:  r.DimensionID,
			Strategy:     r.Strategy.String(),
			Files:        r.Files,
			CorruptFiles: r.CorruptFiles,
			OreChunks:    r.OreChunks,
			Resolved:     r.Resolved,
			StartedAt:    started,
			FinishedAt:   finished,
		})
		if err != nil {
			s.log.Warn("record scan", "kind", kind, "dimension", r.DimensionID, "error", err)
		}
	}
}

// Scans returns the scan history of the world.
func (s *Session) Scans(ctx context.Context) ([]indexdb.ScanRecord, error) {
	return s.index.Scans(ctx, s.worldID)
}

// Save persists the changes since the last save.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if err := s.store.Save(s.cache); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

// Close saves the cache, drops it from memory and releases the files.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.saveLocked()
	s.cache.Reset()
	s.cache.TakeReset()
	return errors.Join(err, s.closeResources())
}

func (s *Session) closeResources() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	return errors.Join(errs...)
}
