package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxDimensionSizeMBForFastScanning != 8000 || cfg.SpawnRadiusChunks != 8 || !cfg.RecacheSpawn {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Workers != def.Workers || cfg.UndergroundFluidSizeChunkX != 8 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oreveincache.yaml")
	data := []byte("world_dir: /srv/gt/world\nworkers: 3\nrecache_spawn: false\nunderground_fluid_size_chunk_z: 4\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorldDir != "/srv/gt/world" || cfg.Workers != 3 || cfg.RecacheSpawn {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.UndergroundFluidSizeChunkX != 8 || cfg.UndergroundFluidSizeChunkZ != 4 {
		t.Fatalf("fluid size = %dx%d", cfg.UndergroundFluidSizeChunkX, cfg.UndergroundFluidSizeChunkZ)
	}
	if cfg.CacheDir != "oreveincache" {
		t.Fatalf("unset key lost its default: %q", cfg.CacheDir)
	}

	if err := os.WriteFile(path, []byte("workers: [1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestMergeExplicitFlagsWin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldDir = "from-flag"
	cfg.Workers = 2

	fromFile := DefaultConfig()
	fromFile.WorldDir = "from-file"
	fromFile.Workers = 16
	fromFile.CacheDir = "file-cache"
	fromFile.UndergroundFluidSizeChunkX = 4

	Merge(cfg, fromFile, map[string]bool{"world": true, "workers": true})

	if cfg.WorldDir != "from-flag" || cfg.Workers != 2 {
		t.Fatalf("explicit flags overwritten: %+v", cfg)
	}
	if cfg.CacheDir != "file-cache" || cfg.UndergroundFluidSizeChunkX != 4 {
		t.Fatalf("file values not merged: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "no world", mutate: func(c *Config) { c.WorldDir = "" }},
		{name: "no cache dir", mutate: func(c *Config) { c.CacheDir = "" }},
		{name: "zero fluid size", mutate: func(c *Config) { c.UndergroundFluidSizeChunkZ = 0 }},
		{name: "negative radius", mutate: func(c *Config) { c.SpawnRadiusChunks = -1 }},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }},
		{name: "upper case level", mutate: func(c *Config) { c.LogLevel = "DEBUG" }, ok: true},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", tt.name, err)
		}
	}

	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	if lvl, err := cfg.Level(); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("Level = (%v, %v)", lvl, err)
	}
}
