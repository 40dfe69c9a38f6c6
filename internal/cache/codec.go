package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Record layout, big-endian:
//
//	ore vein:         chunkX int32 | chunkZ int32 | veinTypeID uint16 (bit 15 = depleted)
//	underground fluid: chunkX int32 | chunkZ int32 | marker int32 | name | sizeX*sizeZ int32
//
// A negative marker is the negated length of the UTF-8 fluid name that
// follows. A non-negative marker is a legacy numeric fluid id with no name
// bytes; it is only ever read.
const (
	oreRecordSize = 4 + 4 + 2
	depletedBit   = 0x8000
	veinIDMask    = 0x7FFF
)

// ErrTruncated is returned when a buffer ends inside a record. Every
// complete record before it has been loaded.
var ErrTruncated = errors.New("cache buffer truncated")

// LoadStats counts what LoadCache did.
type LoadStats struct {
	OreVeins          int
	UndergroundFluids int
	DroppedOreVeins   int
	DroppedFluids     int
}

func (d *DimensionCache) encodeOreVeins(entries []OreVeinPosition) ([]byte, error) {
	buf := make([]byte, 0, len(entries)*oreRecordSize)
	for _, p := range entries {
		id, ok := d.opts.Veins.ID(p.VeinType)
		if !ok {
			return nil, fmt.Errorf("vein type %q at (%d,%d) has no dictionary id", p.VeinType.Name, p.ChunkX, p.ChunkZ)
		}
		if p.Depleted {
			id |= depletedBit
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(p.ChunkX)))
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(p.ChunkZ)))
		buf = binary.BigEndian.AppendUint16(buf, id)
	}
	return buf, nil
}

func (d *DimensionCache) encodeUndergroundFluids(entries []UndergroundFluidPosition) []byte {
	sx, sz := d.opts.FluidSizeX, d.opts.FluidSizeZ
	var buf bytes.Buffer
	buf.Grow(len(entries) * 4 * (8 + sx*sz))
	var word [4]byte
	putInt := func(v int) {
		binary.BigEndian.PutUint32(word[:], uint32(int32(v)))
		buf.Write(word[:])
	}
	for _, p := range entries {
		putInt(p.ChunkX)
		putInt(p.ChunkZ)
		name := p.Fluid.Name
		putInt(-len(name))
		buf.WriteString(name)
		for x := 0; x < sx; x++ {
			for z := 0; z < sz; z++ {
				v := 0
				if x < len(p.Chunks) && z < len(p.Chunks[x]) {
					v = p.Chunks[x][z]
				}
				putInt(v)
			}
		}
	}
	return buf.Bytes()
}

func (d *DimensionCache) decodeOreVeins(data []byte, stats *LoadStats) error {
	for len(data) >= oreRecordSize {
		chunkX := int(int32(binary.BigEndian.Uint32(data[0:4])))
		chunkZ := int(int32(binary.BigEndian.Uint32(data[4:8])))
		raw := binary.BigEndian.Uint16(data[8:10])
		data = data[oreRecordSize:]

		v, ok := d.opts.Veins.VeinType(raw & veinIDMask)
		if !ok {
			stats.DroppedOreVeins++
			continue
		}
		d.storeLoadedOreVein(OreVeinPosition{
			DimensionID: d.DimensionID,
			ChunkX:      chunkX,
			ChunkZ:      chunkZ,
			VeinType:    v,
			Depleted:    raw&depletedBit != 0,
		})
		stats.OreVeins++
	}
	if len(data) > 0 {
		return fmt.Errorf("ore veins: %d trailing bytes: %w", len(data), ErrTruncated)
	}
	return nil
}

func (d *DimensionCache) decodeUndergroundFluids(data []byte, stats *LoadStats) error {
	sx, sz := d.opts.FluidSizeX, d.opts.FluidSizeZ
	readInt := func() int {
		v := int(int32(binary.BigEndian.Uint32(data[:4])))
		data = data[4:]
		return v
	}

	for len(data) > 0 {
		if len(data) < 12 {
			return fmt.Errorf("underground fluids: record header: %w", ErrTruncated)
		}
		chunkX := readInt()
		chunkZ := readInt()
		marker := readInt()

		var name string
		legacy := marker >= 0
		if !legacy {
			n := -marker
			if len(data) < n {
				return fmt.Errorf("underground fluids: fluid name: %w", ErrTruncated)
			}
			name = string(data[:n])
			data = data[n:]
		}

		if len(data) < 4*sx*sz {
			return fmt.Errorf("underground fluids: magnitude grid: %w", ErrTruncated)
		}
		chunks := NewFluidGrid(sx, sz)
		for x := 0; x < sx; x++ {
			for z := 0; z < sz; z++ {
				chunks[x][z] = readInt()
			}
		}

		var ok bool
		pos := UndergroundFluidPosition{
			DimensionID: d.DimensionID,
			ChunkX:      chunkX,
			ChunkZ:      chunkZ,
			Chunks:      chunks,
		}
		if legacy {
			pos.Fluid, ok = d.opts.Fluids.ByLegacyID(marker)
		} else {
			pos.Fluid, ok = d.opts.Fluids.ByName(name)
		}
		if !ok {
			stats.DroppedFluids++
			continue
		}
		d.storeLoadedFluid(pos)
		stats.UndergroundFluids++
	}
	return nil
}
