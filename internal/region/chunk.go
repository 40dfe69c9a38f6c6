package region

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Chunk compression schemes stored in the byte before the payload.
const (
	CompressionGzip = 1
	CompressionZlib = 2
	CompressionNone = 3
)

// OreTileEntityID is the tile entity id of ore blocks in the chunk data.
const OreTileEntityID = "GT_TileEntity_Ores"

// OreBlock is one ore tile entity of a chunk.
type OreBlock struct {
	X, Y, Z int
	Meta    int16
}

// Chunk is the part of a chunk record the vein classifier needs.
type Chunk struct {
	X, Z int
	Ores []OreBlock
}

type chunkRoot struct {
	Level struct {
		XPos         int32            `nbt:"xPos"`
		ZPos         int32            `nbt:"zPos"`
		TileEntities []map[string]any `nbt:"TileEntities"`
	} `nbt:"Level"`
}

// DecodeChunk decompresses and decodes one chunk sector payload whose first
// byte is the compression scheme.
func DecodeChunk(sector []byte) (*Chunk, error) {
	if len(sector) == 0 {
		return nil, errors.New("empty chunk payload")
	}
	raw, err := decompress(sector[0], sector[1:])
	if err != nil {
		return nil, err
	}

	var root chunkRoot
	if err := nbt.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode chunk nbt: %w", err)
	}

	c := &Chunk{X: int(root.Level.XPos), Z: int(root.Level.ZPos)}
	for _, te := range root.Level.TileEntities {
		if id, _ := te["id"].(string); id != OreTileEntityID {
			continue
		}
		x, okX := intTag(te["x"])
		y, okY := intTag(te["y"])
		z, okZ := intTag(te["z"])
		m, okM := intTag(te["m"])
		if !okX || !okY || !okZ || !okM {
			continue
		}
		c.Ores = append(c.Ores, OreBlock{X: x, Y: y, Z: z, Meta: int16(m)})
	}
	return c, nil
}

func decompress(scheme byte, payload []byte) ([]byte, error) {
	var r io.Reader
	switch scheme {
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("open gzip chunk: %w", err)
		}
		defer gr.Close()
		r = gr
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("open zlib chunk: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionNone:
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown chunk compression %d", scheme)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk: %w", err)
	}
	return raw, nil
}

func intTag(v any) (int, bool) {
	switch n := v.(type) {
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}

type tileEntityNBT struct {
	ID string `nbt:"id"`
	X  int32  `nbt:"x"`
	Y  int32  `nbt:"y"`
	Z  int32  `nbt:"z"`
	M  int16  `nbt:"m"`
}

type chunkNBT struct {
	Level struct {
		XPos             int32           `nbt:"xPos"`
		ZPos             int32           `nbt:"zPos"`
		TerrainPopulated int8            `nbt:"TerrainPopulated"`
		LastUpdate       int64           `nbt:"LastUpdate"`
		TileEntities     []tileEntityNBT `nbt:"TileEntities"`
	} `nbt:"Level"`
}

// EncodeChunk encodes c as uncompressed chunk NBT with one ore tile entity
// per ore block.
func EncodeChunk(c *Chunk) ([]byte, error) {
	var root chunkNBT
	root.Level.XPos = int32(c.X)
	root.Level.ZPos = int32(c.Z)
	root.Level.TerrainPopulated = 1
	root.Level.TileEntities = make([]tileEntityNBT, 0, len(c.Ores))
	for _, o := range c.Ores {
		root.Level.TileEntities = append(root.Level.TileEntities, tileEntityNBT{
			ID: OreTileEntityID,
			X:  int32(o.X),
			Y:  int32(o.Y),
			Z:  int32(o.Z),
			M:  o.Meta,
		})
	}
	data, err := nbt.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode chunk nbt: %w", err)
	}
	return data, nil
}
