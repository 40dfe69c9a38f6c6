package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("invalid config")

// Config holds the cache configuration.
type Config struct {
	WorldDir string `yaml:"world_dir"`
	CacheDir string `yaml:"cache_dir"`

	MaxDimensionSizeMBForFastScanning int64 `yaml:"max_dimension_size_mb_for_fast_scanning"`
	Workers                           int   `yaml:"workers"`

	UndergroundFluidSizeChunkX int `yaml:"underground_fluid_size_chunk_x"`
	UndergroundFluidSizeChunkZ int `yaml:"underground_fluid_size_chunk_z"`

	RecacheVeins      bool `yaml:"recache_veins"` // rescan the world on every start
	RecacheSpawn      bool `yaml:"recache_spawn"` // rescan the spawn area once per world
	SpawnRadiusChunks int  `yaml:"spawn_radius_chunks"`

	VeinCatalog  string `yaml:"vein_catalog"`  // empty = built-in veins
	FluidCatalog string `yaml:"fluid_catalog"` // empty = built-in fluids

	LogLevel string `yaml:"log_level"` // debug, info, warn or error
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorldDir:                          "world",
		CacheDir:                          "oreveincache",
		MaxDimensionSizeMBForFastScanning: 8000,
		Workers:                           runtime.NumCPU(),
		UndergroundFluidSizeChunkX:        8,
		UndergroundFluidSizeChunkZ:        8,
		RecacheSpawn:                      true,
		SpawnRadiusChunks:                 8,
		LogLevel:                          "info",
	}
}

// Load reads a YAML config file over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["world"] {
		cfg.WorldDir = fromFile.WorldDir
	}
	if !explicitFlags["cache"] {
		cfg.CacheDir = fromFile.CacheDir
	}
	if !explicitFlags["fast-scan-mb"] {
		cfg.MaxDimensionSizeMBForFastScanning = fromFile.MaxDimensionSizeMBForFastScanning
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["recache"] {
		cfg.RecacheVeins = fromFile.RecacheVeins
	}
	if !explicitFlags["recache-spawn"] {
		cfg.RecacheSpawn = fromFile.RecacheSpawn
	}
	if !explicitFlags["spawn-radius"] {
		cfg.SpawnRadiusChunks = fromFile.SpawnRadiusChunks
	}
	if !explicitFlags["veins"] {
		cfg.VeinCatalog = fromFile.VeinCatalog
	}
	if !explicitFlags["fluids"] {
		cfg.FluidCatalog = fromFile.FluidCatalog
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	// The fluid grid size is shared by writer and reader of the cache
	// files, so it is only configurable in the file.
	cfg.UndergroundFluidSizeChunkX = fromFile.UndergroundFluidSizeChunkX
	cfg.UndergroundFluidSizeChunkZ = fromFile.UndergroundFluidSizeChunkZ
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.WorldDir == "":
		return fmt.Errorf("%w: world_dir is empty", ErrInvalid)
	case c.CacheDir == "":
		return fmt.Errorf("%w: cache_dir is empty", ErrInvalid)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	case c.UndergroundFluidSizeChunkX <= 0 || c.UndergroundFluidSizeChunkZ <= 0:
		return fmt.Errorf("%w: underground fluid size must be positive, got %dx%d",
			ErrInvalid, c.UndergroundFluidSizeChunkX, c.UndergroundFluidSizeChunkZ)
	case c.SpawnRadiusChunks < 0:
		return fmt.Errorf("%w: spawn_radius_chunks must not be negative, got %d", ErrInvalid, c.SpawnRadiusChunks)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}
