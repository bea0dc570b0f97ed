package testcodec

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magic = "PLZ0"

	// fileHeader layout, fixed width, all little-endian:
	//   magic[4] pointCount[8] versionMajor[1] versionMinor[1]
	//   compressed[1] reserved[1] chunkTableStart[8] chunkSize[8]
	headerLen = 32

	chunkTableStartOffset = 16
	pointRecordLen        = 32
)

type fileHeader struct {
	PointCount      uint64
	VersionMajor    uint8
	VersionMinor    uint8
	Compressed      bool
	ChunkTableStart int64
	ChunkSize       uint64
}

func writeFileHeader(w io.Writer, h fileHeader) error {
	buf := make([]byte, headerLen)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint64(buf[4:12], h.PointCount)
	buf[12] = h.VersionMajor
	buf[13] = h.VersionMinor
	if h.Compressed {
		buf[14] = 1
	}
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.ChunkTableStart))
	binary.LittleEndian.PutUint64(buf[24:32], h.ChunkSize)
	_, err := w.Write(buf)
	return err
}

func readFileHeader(r io.Reader) (fileHeader, error) {
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fileHeader{}, err
	}
	if string(buf[0:4]) != magic {
		return fileHeader{}, fmt.Errorf("testcodec: bad magic %q", buf[0:4])
	}
	return fileHeader{
		PointCount:      binary.LittleEndian.Uint64(buf[4:12]),
		VersionMajor:    buf[12],
		VersionMinor:    buf[13],
		Compressed:      buf[14] != 0,
		ChunkTableStart: int64(binary.LittleEndian.Uint64(buf[16:24])),
		ChunkSize:       binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// Point is the opaque-to-the-coordinator record type this package's Reader
// and Writer exchange through the Reader.Point()/Writer.WritePoint(any)
// interface boundary.
type Point struct {
	Index   uint64
	Payload [pointRecordLen - 8]byte
}

// pointAt derives a fixed, deterministic 24-byte payload from a point's
// ordinal index, so two independent encodes of the same source produce
// byte-identical records without needing real point data.
func pointAt(index uint64) Point {
	var p Point
	p.Index = index
	var idxBytes [8]byte
	binary.LittleEndian.PutUint64(idxBytes[:], index)
	copy(p.Payload[0:8], idxBytes[:])
	copy(p.Payload[8:16], idxBytes[:])
	copy(p.Payload[16:24], idxBytes[:])
	return p
}

func encodePoint(p Point) []byte {
	buf := make([]byte, pointRecordLen)
	binary.LittleEndian.PutUint64(buf[0:8], p.Index)
	copy(buf[8:], p.Payload[:])
	return buf
}

func decodePoint(buf []byte) Point {
	var p Point
	p.Index = binary.LittleEndian.Uint64(buf[0:8])
	copy(p.Payload[:], buf[8:pointRecordLen])
	return p
}
