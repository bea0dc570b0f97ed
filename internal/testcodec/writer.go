package testcodec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/plaszip/plaszip"
)

// writer implements plaszip.Writer. It is constructed in one of two target
// modes — compressed (LAS->LAZ) or flat (LAZ->LAS) — selected by which of
// LAZWriterFor/LASWriterFor the caller wires in as the job's
// plaszip.NewWriterFunc.
//
// Header emission is keyed off whether sink implements io.Seeker: the
// Sizing Pass always binds to a plain io.Writer discard sink (no Seek), so
// its writer never emits a header and its byte count reflects only this
// peer's compressed point region, exactly what the Placement Exchange's
// offset arithmetic needs. The Final Pass binds to a real, seekable file,
// so its writer — on every peer, redundantly but harmlessly since the
// bytes are deterministic — emits the header once at construction.
type writer struct {
	sink       io.Writer
	seekable   io.Seeker
	compressed bool
	chunkSize  uint64

	pos                int64
	chunkPointsWritten uint64
	chunkBuf           bytes.Buffer
}

func newWriter(sink io.Writer, chunkSize uint64, startOffset int64, compressed bool, versionMajor, versionMinor uint8, pointCount uint64) (plaszip.Writer, error) {
	w := &writer{sink: sink, compressed: compressed, chunkSize: chunkSize, pos: startOffset}
	if s, ok := sink.(io.Seeker); ok {
		w.seekable = s
		if err := writeFileHeader(sink, fileHeader{
			PointCount:   pointCount,
			VersionMajor: versionMajor,
			VersionMinor: versionMinor,
			Compressed:   compressed,
			ChunkSize:    chunkSize,
		}); err != nil {
			return nil, err
		}
		w.pos += headerLen
	}
	return w, nil
}

// LAZWriterFor returns a plaszip.NewWriterFunc for a LAS->LAZ job: output
// points land in chunk-framed, length-prefixed chunks with a trailing
// chunk table. Bind via a closure that supplies the source header's
// version and point count, e.g. testcodec.LAZWriterFor(hdr).
func LAZWriterFor(hdr plaszip.Header) plaszip.NewWriterFunc {
	return func(sink io.Writer, chunkSize uint64, startOffset int64) (plaszip.Writer, error) {
		return newWriter(sink, chunkSize, startOffset, true, hdr.VersionMajor, hdr.VersionMinor, hdr.PointCount)
	}
}

// LASWriterFor matches plaszip.NewWriterFunc for a LAZ->LAS job: output
// points are flat, unframed fixed-width records with no chunk table.
func LASWriterFor(hdr plaszip.Header) plaszip.NewWriterFunc {
	return func(sink io.Writer, chunkSize uint64, startOffset int64) (plaszip.Writer, error) {
		return newWriter(sink, chunkSize, startOffset, false, hdr.VersionMajor, hdr.VersionMinor, hdr.PointCount)
	}
}

func (w *writer) WritePoint(p any) (uint32, bool, error) {
	pt, ok := p.(Point)
	if !ok {
		return 0, false, fmt.Errorf("testcodec: unexpected point type %T", p)
	}
	rec := encodePoint(pt)
	if w.compressed {
		w.chunkBuf.Write(rec)
	} else {
		if _, err := w.sink.Write(rec); err != nil {
			return 0, false, err
		}
		w.pos += pointRecordLen
	}
	w.chunkPointsWritten++
	if w.chunkPointsWritten == w.chunkSize {
		cb, wroteChunk, err := w.flushChunk()
		if err != nil {
			return 0, false, err
		}
		return cb, wroteChunk, nil
	}
	return 0, false, nil
}

// flushChunk closes out whatever points have accumulated in the current
// chunk (a full C-point chunk, or a short trailing one via Done) and
// reports the number of bytes the chunk actually occupies in the stream —
// framing included, since that is what the Placement Exchange's offset
// arithmetic needs to stay self-consistent. wroteChunk is false when
// nothing has accumulated since the last flush, i.e. the range ended
// exactly on a chunk boundary and WritePoint's own internal chunking
// already closed it.
func (w *writer) flushChunk() (uint32, bool, error) {
	n := w.chunkPointsWritten
	w.chunkPointsWritten = 0
	if n == 0 {
		return 0, false, nil
	}
	if !w.compressed {
		return uint32(n * pointRecordLen), true, nil
	}
	body := w.chunkBuf.Bytes()
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.sink.Write(lenBuf[:]); err != nil {
		return 0, false, err
	}
	if _, err := w.sink.Write(body); err != nil {
		return 0, false, err
	}
	total := uint32(4 + len(body))
	w.pos += int64(total)
	w.chunkBuf.Reset()
	return total, true, nil
}

func (w *writer) Done() (uint32, bool, error) { return w.flushChunk() }

func (w *writer) Tell() (int64, error) { return w.pos, nil }

func (w *writer) Seek(offset int64) error {
	if w.seekable == nil {
		return fmt.Errorf("testcodec: writer's sink is not seekable")
	}
	if _, err := w.seekable.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	w.pos = offset
	w.chunkPointsWritten = 0
	w.chunkBuf.Reset()
	return nil
}

func (w *writer) WriteChunkTable(ctx context.Context, table plaszip.ChunkTable) error {
	if !w.compressed {
		return nil
	}
	if w.seekable == nil {
		return fmt.Errorf("testcodec: writer's sink is not seekable")
	}
	if _, err := w.seekable.Seek(table.StartPosition, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, 4+4*len(table.ChunkBytes))
	binary.LittleEndian.PutUint32(buf[0:4], table.NumberChunks())
	for i, c := range table.ChunkBytes {
		binary.LittleEndian.PutUint32(buf[4+i*4:], c)
	}
	if _, err := w.sink.Write(buf); err != nil {
		return err
	}
	if _, err := w.seekable.Seek(chunkTableStartOffset, io.SeekStart); err != nil {
		return err
	}
	var posBuf [8]byte
	binary.LittleEndian.PutUint64(posBuf[:], uint64(table.StartPosition))
	_, err := w.sink.Write(posBuf[:])
	return err
}

func (w *writer) Close() error { return nil }

var _ plaszip.Writer = (*writer)(nil)
