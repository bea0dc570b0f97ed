package plaszip

import (
	"context"
)

// Finalize runs the Final Pass (the "Finalizing" state)
// over this peer's range: it repositions the already-open real-output
// Writer w (the one Convert used to learn header_end) to the peer's
// absolute offset, re-encodes the identical range the Sizing Pass encoded,
// and checks the result against the sizing accounting. The caller owns w's
// lifetime; Finalize never closes it. Table assembly is a separate step —
// see WriteTable — so the state machine's final barrier lands between the
// two, matching the "Finalizing" -> "TableWriting" transition.
func Finalize(ctx context.Context, rank int, r Reader, rng PeerRange, w Writer, exch ExchangeResult, sizingAcc ChunkAccounting, stats *PassStats) (ChunkAccounting, error) {
	if err := w.Seek(int64(exch.AbsoluteOffset)); err != nil {
		return ChunkAccounting{}, IOError{Rank: rank, Point: -1, Err: err}
	}

	onChunk := func(uint32) {}
	if stats != nil {
		onChunk = func(cb uint32) {
			stats.incChunksWritten()
			stats.addBytesWritten(uint64(cb))
		}
	}
	finalAcc, err := encodeRange(r, w, rng, stats, onChunk)
	if err != nil {
		return finalAcc, err
	}

	if err := checkSizingMatchesFinal(rank, sizingAcc, finalAcc); err != nil {
		return finalAcc, err
	}
	return finalAcc, nil
}

// WriteTable runs the "TableWriting" state: only the designated writer
// (rank P-1) does anything here. It assembles the rank-ordered chunk table
// Exchange already gathered and hands it to the Writer collaborator, which
// emits the trailing table and patches the header back-pointer.
func WriteTable(ctx context.Context, rank, peers int, w Writer, exch ExchangeResult) error {
	if rank != peers-1 {
		return nil
	}
	table := ChunkTable{
		ChunkBytes:    exch.ChunkBytesOrdered,
		StartPosition: exch.TableStartPosition,
	}
	if err := w.WriteChunkTable(ctx, table); err != nil {
		return IOError{Rank: rank, Point: -1, Err: err}
	}
	return nil
}

// checkSizingMatchesFinal checks that the Sizing Pass and the Final Pass
// produced byte-identical chunk-bytes vectors for the same peer. A
// mismatch means the encoder behaved non-deterministically across the two
// passes.
func checkSizingMatchesFinal(rank int, sizing, final ChunkAccounting) error {
	if sizing.Equal(final) {
		return nil
	}
	n := len(sizing.ChunkBytes)
	if len(final.ChunkBytes) < n {
		n = len(final.ChunkBytes)
	}
	for i := 0; i < n; i++ {
		if sizing.ChunkBytes[i] != final.ChunkBytes[i] {
			return SizingMismatch{Rank: rank, Chunk: i, Expected: uint64(sizing.ChunkBytes[i]), Actual: uint64(final.ChunkBytes[i])}
		}
	}
	// One pass produced more chunks than the other: report the first extra
	// chunk's byte length against 0 for the pass that has no such chunk.
	var expected, actual uint64
	if n < len(sizing.ChunkBytes) {
		expected = uint64(sizing.ChunkBytes[n])
	}
	if n < len(final.ChunkBytes) {
		actual = uint64(final.ChunkBytes[n])
	}
	return SizingMismatch{Rank: rank, Chunk: n, Expected: expected, Actual: actual}
}
