package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/OCharnyshevich/oreveincache/internal/cache"
)

const (
	oreVeinsFile          = "oreVeins.zst"
	undergroundFluidsFile = "undergroundFluids.zst"
	dimensionPrefix       = "DIM"
)

// Storage persists the cache of one world under <cache dir>/<world id>.
// Every dimension gets a directory holding two append-only logs of zstd
// frames; one frame is written per save and later records win on load.
type Storage struct {
	dir string
	log *slog.Logger
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a Storage for the world, creating its directory as needed.
func New(cacheDir, worldID string, log *slog.Logger) (*Storage, error) {
	dir := filepath.Join(cacheDir, worldID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Storage{dir: dir, log: log, enc: enc, dec: dec}, nil
}

// Dir returns the directory of the world's cache files.
func (s *Storage) Dir() string {
	return s.dir
}

// Close releases the codecs.
func (s *Storage) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

func (s *Storage) dimensionDir(dimensionID int) string {
	return filepath.Join(s.dir, dimensionPrefix+strconv.Itoa(dimensionID))
}

// dimensions lists the dimensions that have a cache directory.
func (s *Storage) dimensions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	var ids []int
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e.Name(), dimensionPrefix)
		if !ok || !e.IsDir() {
			continue
		}
		if id, err := strconv.Atoi(rest); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Load fills c from the persisted files. It reports whether any dimension
// had cached data. Damaged logs are loaded up to the damage.
func (s *Storage) Load(c *cache.ServerCache) (bool, error) {
	ids, err := s.dimensions()
	if err != nil {
		return false, err
	}

	loaded := false
	for _, id := range ids {
		ore, err := s.readLog(filepath.Join(s.dimensionDir(id), oreVeinsFile))
		if err != nil {
			return false, err
		}
		fluids, err := s.readLog(filepath.Join(s.dimensionDir(id), undergroundFluidsFile))
		if err != nil {
			return false, err
		}
		if len(ore) == 0 && len(fluids) == 0 {
			continue
		}

		stats, err := c.Dimension(id).LoadCache(ore, fluids)
		if err != nil {
			if !errors.Is(err, cache.ErrTruncated) {
				return false, fmt.Errorf("dimension %d: %w", id, err)
			}
			s.log.Warn("cache file truncated, kept complete records", "dimension", id, "error", err)
		}
		if stats.DroppedOreVeins > 0 || stats.DroppedFluids > 0 {
			s.log.Warn("dropped cache entries of unregistered types", "dimension", id,
				"ore_veins", stats.DroppedOreVeins, "fluids", stats.DroppedFluids)
		}
		s.log.Info("loaded cache", "dimension", id, "ore_veins", stats.OreVeins,
			"underground_fluids", stats.UndergroundFluids)
		loaded = true
	}
	return loaded, nil
}

// readLog decompresses every frame of a log. A missing file is empty.
func (s *Storage) readLog(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		s.log.Warn("cache file damaged, using readable frames", "file", path, "error", err)
	}
	return raw, nil
}

// Save persists what changed since the last save. After a reset every
// dimension is written from scratch and dimensions no longer cached are
// removed; a dimension with cleared cells has both logs rewritten. Changes
// that could not be written are kept for the next save.
func (s *Storage) Save(c *cache.ServerCache) error {
	reset := c.TakeReset()
	if reset {
		if err := s.removeDimensions(); err != nil {
			c.RequestFullSave()
			return err
		}
	}

	for _, d := range c.Dimensions() {
		if err := s.saveDimension(d, reset); err != nil {
			// The dirty marks are gone, only a full snapshot restores them.
			if reset {
				c.RequestFullSave()
			} else {
				d.RequestRewrite()
			}
			return fmt.Errorf("dimension %d: %w", d.DimensionID, err)
		}
	}
	return nil
}

func (s *Storage) saveDimension(d *cache.DimensionCache, reset bool) error {
	rewrite := d.TakeRewrite() || reset
	ore, err := d.SaveOreChunks()
	if err != nil {
		return err
	}
	fluids := d.SaveUndergroundFluids()
	if len(ore) == 0 && len(fluids) == 0 && !rewrite {
		return nil
	}

	dir := s.dimensionDir(d.DimensionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	write := s.appendLog
	if rewrite {
		write = s.replaceLog
	}
	if err := write(filepath.Join(dir, oreVeinsFile), ore); err != nil {
		return err
	}
	if err := write(filepath.Join(dir, undergroundFluidsFile), fluids); err != nil {
		return err
	}
	s.log.Debug("saved cache", "dimension", d.DimensionID, "ore_bytes", len(ore),
		"fluid_bytes", len(fluids), "rewrite", rewrite)
	return nil
}

func (s *Storage) removeDimensions() error {
	ids, err := s.dimensions()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := os.RemoveAll(s.dimensionDir(id)); err != nil {
			return fmt.Errorf("remove dimension %d cache: %w", id, err)
		}
	}
	return nil
}

// appendLog appends buf to the log as one frame. Empty buffers are skipped.
func (s *Storage) appendLog(path string, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	if _, err := f.Write(s.enc.EncodeAll(buf, nil)); err != nil {
		f.Close()
		return fmt.Errorf("append cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return nil
}

// replaceLog atomically replaces the log with a single frame holding buf,
// or removes it when buf is empty.
func (s *Storage) replaceLog(path string, buf []byte) error {
	if len(buf) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache file: %w", err)
		}
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, s.enc.EncodeAll(buf, nil), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
