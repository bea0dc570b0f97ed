package plaszip

import "io"

// countingSink is an io.Writer that counts bytes written and discards them,
// grounded in the teacher's habit of trivial, zero-cost stand-in types
// (NullProgressBar).
type countingSink struct {
	n int64
}

func (s *countingSink) Write(p []byte) (int, error) {
	s.n += int64(len(p))
	return len(p), nil
}

var _ io.Writer = (*countingSink)(nil)

// NewWriterFunc constructs a Writer bound to an io.Writer sink and a chunk
// size. The coordinator is deliberately not given a concrete constructor
// for Writer: the real implementation lives in the external LAZ
// collaborator. Convert takes one of these per job.
type NewWriterFunc func(sink io.Writer, chunkSize uint64, startOffset int64) (Writer, error)

// Size runs the Sizing Pass over a peer's range: it reads r starting at
// rng.Start, encodes every point into a fresh Writer
// bound to a discard sink, and returns the resulting ChunkAccounting
// without ever touching the real output file.
//
// newWriter is called once, at logical offset 0, exactly as a serial
// encoder would start — peer ranges are chunk-aligned (for LAS->LAZ) so
// this reproduces the same byte layout a full-file serial pass would
// produce for this range.
func Size(r Reader, rng PeerRange, chunkSize uint64, newWriter NewWriterFunc, stats *PassStats) (ChunkAccounting, error) {
	sink := &countingSink{}
	w, err := newWriter(sink, chunkSize, 0)
	if err != nil {
		return ChunkAccounting{}, err
	}
	defer w.Close()

	onChunk := func(uint32) {}
	if stats != nil {
		onChunk = func(cb uint32) {
			stats.incChunksSized()
			stats.addBytesSized(uint64(cb))
		}
	}
	return encodeRange(r, w, rng, stats, onChunk)
}

// encodeRange drives Reader/Writer across one peer's range, recording one
// ChunkAccounting entry whenever the Writer's own internal chunking (every C
// points) completes a chunk, plus a final, possibly short, chunk forced by
// Done when the range ends. Shared between the Sizing Pass and the Final
// Pass so both run byte-identical encode logic over byte-identical input,
// per the Design Notes' writer-polymorphism note.
func encodeRange(r Reader, w Writer, rng PeerRange, stats *PassStats, onChunk func(chunkBytes uint32)) (ChunkAccounting, error) {
	var acc ChunkAccounting

	if err := r.Seek(rng.Start); err != nil {
		return acc, IOError{Point: int64(rng.Start), Err: err}
	}

	n := rng.Len()
	for i := uint64(0); i < n; i++ {
		ok, err := r.ReadPoint()
		if err != nil {
			return acc, IOError{Point: int64(rng.Start + i), Err: err}
		}
		if !ok {
			return acc, IOError{Point: int64(rng.Start + i), Err: io.ErrUnexpectedEOF}
		}
		cb, completed, err := w.WritePoint(r.Point())
		if err != nil {
			return acc, IOError{Point: int64(rng.Start + i), Err: err}
		}
		if completed {
			acc.Record(cb)
			onChunk(cb)
		}
		if stats != nil {
			stats.addPointsRead(1)
			stats.addPointsWritten(1)
		}
	}

	cb, wroteChunk, err := w.Done()
	if err != nil {
		return acc, err
	}
	if wroteChunk {
		acc.Record(cb)
		onChunk(cb)
	}
	return acc, nil
}
