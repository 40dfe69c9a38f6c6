package region

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/save/region"

	"github.com/OCharnyshevich/oreveincache/internal/grid"
)

// Reader reads chunks from one open region file.
type Reader struct {
	file   File
	f      *os.File
	region *region.Region
}

// Open opens a region file for reading. Files with a malformed name fail
// with ErrInvalidName.
func Open(file File) (*Reader, error) {
	if !file.Valid {
		x, z, err := ParseName(filepath.Base(file.Path))
		if err != nil {
			return nil, err
		}
		file.X, file.Z, file.Valid = x, z, true
	}
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open region file: %w", err)
	}
	r, err := region.Load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read region header: %w", err)
	}
	return &Reader{file: file, f: f, region: r}, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Chunk returns the chunk at local coordinates (0..31). The second return
// value is false when the chunk has not been generated.
func (r *Reader) Chunk(localX, localZ int) (*Chunk, bool, error) {
	if !r.region.ExistSector(localX, localZ) {
		return nil, false, nil
	}
	sector, err := r.region.ReadSector(localX, localZ)
	if err != nil {
		return nil, false, fmt.Errorf("read chunk (%d,%d): %w", localX, localZ, err)
	}
	c, err := DecodeChunk(sector)
	if err != nil {
		return nil, false, fmt.Errorf("chunk (%d,%d): %w", localX, localZ, err)
	}
	return c, true, nil
}

// ForEachOreChunk calls fn for every generated chunk of the file that is
// the center of an ore chunk cell. Chunks are reported with their absolute
// coordinates. The first unreadable chunk aborts the file.
func ForEachOreChunk(file File, fn func(c *Chunk)) error {
	r, err := Open(file)
	if err != nil {
		return err
	}
	defer r.Close()

	baseX, baseZ := r.file.FirstChunk()
	for localX := 0; localX < grid.ChunksPerRegion; localX++ {
		for localZ := 0; localZ < grid.ChunksPerRegion; localZ++ {
			chunkX, chunkZ := baseX+localX, baseZ+localZ
			if !grid.IsOreChunk(chunkX) || !grid.IsOreChunk(chunkZ) {
				continue
			}
			c, ok, err := r.Chunk(localX, localZ)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			c.X, c.Z = chunkX, chunkZ
			fn(c)
		}
	}
	return nil
}
