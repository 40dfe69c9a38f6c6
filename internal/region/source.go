// Package region enumerates the Anvil region files of a world save and
// reads the ore tile entities of the chunks stored in them.
package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/OCharnyshevich/oreveincache/internal/grid"
)

// ErrInvalidName is returned for files in a region directory whose name
// does not encode region coordinates.
var ErrInvalidName = errors.New("invalid region file name")

var (
	namePattern = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)
	dimPattern  = regexp.MustCompile(`^DIM(-?\d+)$`)
)

// File is one candidate region file.
type File struct {
	Path string
	Size int64

	// X and Z are the region coordinates. They are only meaningful when
	// Valid is set.
	X, Z  int
	Valid bool
}

// FirstChunk returns the chunk coordinates of the region's corner.
func (f File) FirstChunk() (int, int) {
	return f.X << 5, f.Z << 5
}

// ParseName extracts region coordinates from a file name like r.-1.2.mca.
func ParseName(name string) (int, int, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	x, errX := strconv.Atoi(m[1])
	z, errZ := strconv.Atoi(m[2])
	if errX != nil || errZ != nil {
		return 0, 0, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return x, z, nil
}

// FileName returns the canonical name of a region file.
func FileName(rx, rz int) string {
	return fmt.Sprintf("r.%d.%d.mca", rx, rz)
}

// Source lists the region files of a world.
type Source interface {
	// DimensionIDs returns every dimension that has a region directory.
	DimensionIDs() ([]int, error)

	// Files returns the region files of a dimension. When within is not
	// nil only files whose region coordinates fall inside the inclusive
	// region rectangle are returned.
	Files(dimensionID int, within *grid.Rect) ([]File, error)
}

// DirSource reads a world save directory: dimension 0 lives in region/,
// every other dimension in DIM<id>/region/.
type DirSource struct {
	dir string
}

// NewDirSource checks that dir is a readable directory.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open world directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open world directory: %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// Dir returns the world directory.
func (s *DirSource) Dir() string {
	return s.dir
}

// RegionDir returns the region directory of a dimension.
func (s *DirSource) RegionDir(dimensionID int) string {
	if dimensionID == 0 {
		return filepath.Join(s.dir, "region")
	}
	return filepath.Join(s.dir, fmt.Sprintf("DIM%d", dimensionID), "region")
}

func (s *DirSource) DimensionIDs() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list world directory: %w", err)
	}

	var ids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == "region" {
			ids = append(ids, 0)
			continue
		}
		m := dimPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || id == 0 {
			continue
		}
		if info, err := os.Stat(s.RegionDir(id)); err == nil && info.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *DirSource) Files(dimensionID int, within *grid.Rect) ([]File, error) {
	dir := s.RegionDir(dimensionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list region directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		f := File{Path: filepath.Join(dir, e.Name())}
		if x, z, err := ParseName(e.Name()); err == nil {
			f.X, f.Z, f.Valid = x, z, true
		}
		if within != nil && (!f.Valid || !within.Contains(f.X, f.Z)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat region file: %w", err)
		}
		f.Size = info.Size()
		files = append(files, f)
	}
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
