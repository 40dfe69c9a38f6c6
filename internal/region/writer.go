package region

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/OCharnyshevich/oreveincache/internal/grid"
)

const (
	sectorSize    = 4096
	headerSectors = 2 // location table + timestamp table
)

// WriteRegion writes chunks to dir/r.<rx>.<rz>.mca. chunks maps absolute
// chunk positions inside the region to uncompressed chunk NBT.
func WriteRegion(dir string, rx, rz int, chunks map[grid.ChunkPos][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create region dir: %w", err)
	}

	locations := make([]byte, sectorSize)
	timestamps := make([]byte, sectorSize)
	now := uint32(time.Now().Unix())

	var data bytes.Buffer
	currentSector := uint32(headerSectors)

	for pos, raw := range chunks {
		if pos.X>>5 != rx || pos.Z>>5 != rz {
			return fmt.Errorf("chunk (%d,%d) is outside region (%d,%d)", pos.X, pos.Z, rx, rz)
		}

		var cbuf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&cbuf, zlib.DefaultCompression)
		if err != nil {
			return fmt.Errorf("create zlib writer: %w", err)
		}
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("compress chunk (%d,%d): %w", pos.X, pos.Z, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zlib writer: %w", err)
		}

		// length (4) + compression (1) + payload, padded to whole sectors.
		payloadLen := uint32(cbuf.Len()) + 1
		totalLen := 4 + payloadLen
		sectorCount := (totalLen + sectorSize - 1) / sectorSize
		if sectorCount > 0xFF {
			return fmt.Errorf("chunk (%d,%d) too large: %d sectors", pos.X, pos.Z, sectorCount)
		}

		off := ((pos.X & 31) + (pos.Z&31)*32) * 4
		binary.BigEndian.PutUint32(locations[off:off+4], currentSector<<8|sectorCount)
		binary.BigEndian.PutUint32(timestamps[off:off+4], now)

		var header [5]byte
		binary.BigEndian.PutUint32(header[0:4], payloadLen)
		header[4] = CompressionZlib
		data.Write(header[:])
		data.Write(cbuf.Bytes())
		if pad := int(sectorCount)*sectorSize - int(totalLen); pad > 0 {
			data.Write(make([]byte, pad))
		}
		currentSector += sectorCount
	}

	path := filepath.Join(dir, FileName(rx, rz))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp region file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	for _, part := range [][]byte{locations, timestamps, data.Bytes()} {
		if _, err := f.Write(part); err != nil {
			return fmt.Errorf("write region file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close region file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename region file: %w", err)
	}
	return nil
}
