package testcodec

import (
	"fmt"
	"io"
	"os"

	"github.com/plaszip/plaszip"
)

// reader implements plaszip.Reader over the flat or chunk-framed layouts
// format.go defines, selected at read time by the file's own Compressed
// flag — a real LAS reader would distinguish the two the same way, by the
// presence of a laszip descriptor VLR.
type reader struct {
	f          *os.File
	hdr        fileHeader
	next       uint64 // ordinal index the next ReadPoint will return
	remaining  uint64 // points left in the chunk currently positioned at (compressed only)
	totalChunk uint64 // total chunk count (compressed only)
	cur        Point
}

// NewReader opens path and returns a Reader, matching plaszip.NewReaderFunc.
func NewReader(path string) (plaszip.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := readFileHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r := &reader{f: f, hdr: hdr}
	if hdr.Compressed && hdr.ChunkSize > 0 {
		r.totalChunk = (hdr.PointCount + hdr.ChunkSize - 1) / hdr.ChunkSize
	}
	if err := r.Seek(0); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *reader) Header() plaszip.Header {
	return plaszip.Header{
		PointCount:   r.hdr.PointCount,
		VersionMajor: r.hdr.VersionMajor,
		VersionMinor: r.hdr.VersionMinor,
		Compressed:   r.hdr.Compressed,
	}
}

// Seek positions the reader so the next ReadPoint returns the point at the
// given ordinal index. For the compressed layout this is pure arithmetic:
// every chunk except the file's last is exactly ChunkSize points, so a
// chunk's byte offset never requires scanning the chunks ahead of it.
func (r *reader) Seek(point uint64) error {
	r.next = point
	if !r.hdr.Compressed {
		offset := int64(headerLen) + int64(point)*pointRecordLen
		_, err := r.f.Seek(offset, io.SeekStart)
		return err
	}
	if r.hdr.ChunkSize == 0 {
		return fmt.Errorf("testcodec: compressed source has chunk size 0")
	}
	chunkIdx := point / r.hdr.ChunkSize
	within := point % r.hdr.ChunkSize

	pointsInChunk := r.hdr.ChunkSize
	if r.totalChunk > 0 && chunkIdx == r.totalChunk-1 {
		last := r.hdr.PointCount - (r.totalChunk-1)*r.hdr.ChunkSize
		pointsInChunk = last
	}
	r.remaining = pointsInChunk - within

	chunkStart := int64(headerLen) + int64(chunkIdx)*(int64(r.hdr.ChunkSize)*pointRecordLen+4)
	offset := chunkStart + 4 + int64(within)*pointRecordLen
	_, err := r.f.Seek(offset, io.SeekStart)
	return err
}

func (r *reader) ReadPoint() (bool, error) {
	if r.next >= r.hdr.PointCount {
		return false, nil
	}
	if r.hdr.Compressed && r.remaining == 0 {
		// Crossed into the next chunk: skip its 4-byte length prefix.
		if _, err := r.f.Seek(4, io.SeekCurrent); err != nil {
			return false, err
		}
		chunkIdx := r.next / r.hdr.ChunkSize
		pointsInChunk := r.hdr.ChunkSize
		if r.totalChunk > 0 && chunkIdx == r.totalChunk-1 {
			pointsInChunk = r.hdr.PointCount - (r.totalChunk-1)*r.hdr.ChunkSize
		}
		r.remaining = pointsInChunk
	}
	buf := make([]byte, pointRecordLen)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		return false, err
	}
	r.cur = decodePoint(buf)
	r.next++
	if r.hdr.Compressed {
		r.remaining--
	}
	return true, nil
}

func (r *reader) Point() any { return r.cur }

func (r *reader) Close() error { return r.f.Close() }

var _ plaszip.Reader = (*reader)(nil)
