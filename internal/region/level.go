package region

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

// LevelFile is the name of the world's metadata file.
const LevelFile = "level.dat"

// Level is the part of level.dat the cache needs.
type Level struct {
	Name       string `nbt:"LevelName"`
	Seed       int64  `nbt:"RandomSeed"`
	SpawnX     int32  `nbt:"SpawnX"`
	SpawnY     int32  `nbt:"SpawnY"`
	SpawnZ     int32  `nbt:"SpawnZ"`
	Version    int32  `nbt:"version"`
	LastPlayed int64  `nbt:"LastPlayed"`
}

type levelRoot struct {
	Data Level `nbt:"Data"`
}

// ReadLevel reads the gzip-compressed level.dat of the world in dir.
func ReadLevel(dir string) (Level, error) {
	f, err := os.Open(filepath.Join(dir, LevelFile))
	if err != nil {
		return Level{}, fmt.Errorf("open level.dat: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return Level{}, fmt.Errorf("level.dat gzip: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return Level{}, fmt.Errorf("read level.dat: %w", err)
	}

	var root levelRoot
	if err := nbt.Unmarshal(raw, &root); err != nil {
		return Level{}, fmt.Errorf("decode level.dat: %w", err)
	}
	return root.Data, nil
}

// WriteLevel writes lvl as dir/level.dat.
func WriteLevel(dir string, lvl Level) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create world dir: %w", err)
	}
	raw, err := nbt.Marshal(levelRoot{Data: lvl})
	if err != nil {
		return fmt.Errorf("encode level.dat: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress level.dat: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress level.dat: %w", err)
	}

	path := filepath.Join(dir, LevelFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// SpawnChunk returns the chunk containing the world spawn point.
func (l Level) SpawnChunk() (x, z int) {
	return int(l.SpawnX) >> 4, int(l.SpawnZ) >> 4
}
