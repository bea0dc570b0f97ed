package plaszip

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// fingerprintKey0/1 are fixed keys for the diagnostic SipHash fingerprint
// below. They have no security role — ChunkAccounting.Fingerprint exists
// purely so operators can eyeball sizing/final consistency in logs before
// the exact byte-for-byte comparison runs (see errors.go's SizingMismatch).
const (
	fingerprintKey0 = 0x706c617a7a697031
	fingerprintKey1 = 0x7363686b2d636865
)

// ChunkAccounting is the per-peer bookkeeping produced by one pass (Sizing or
// Final) over a peer's point range. It's kept as an explicit value owned by
// the coordinator rather than state mutated on the writer/encoder, so that
// it's inspectable and testable on its own.
type ChunkAccounting struct {
	// LocalBytes is the total compressed byte count this peer's range
	// produced, summed across its chunks.
	LocalBytes uint64
	// ChunkBytes holds one entry per chunk this peer produced, in chunk
	// order. LocalChunks is len(ChunkBytes).
	ChunkBytes []uint32
}

// LocalChunks returns the number of chunks recorded so far.
func (a ChunkAccounting) LocalChunks() uint32 { return uint32(len(a.ChunkBytes)) }

// Record appends a completed chunk's byte length, as returned by
// Writer.Done, to the accounting.
func (a *ChunkAccounting) Record(chunkBytes uint32) {
	a.ChunkBytes = append(a.ChunkBytes, chunkBytes)
	a.LocalBytes += uint64(chunkBytes)
}

// Fingerprint computes a SipHash-2-4 digest over the accounting's
// chunk-bytes vector. Convert logs it at the sizing and finalizing phase
// boundaries, so the two passes' fingerprints can be compared in logs.
func (a ChunkAccounting) Fingerprint() uint64 {
	buf := make([]byte, 4*len(a.ChunkBytes))
	for i, v := range a.ChunkBytes {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return siphash.Hash(fingerprintKey0, fingerprintKey1, buf)
}

// Equal reports whether two accountings recorded the identical sequence of
// chunk byte-lengths. Used to check that the sizing
// pass equals final pass) without needing SizingMismatch's chunk-index
// detail when only a boolean is wanted (e.g. from tests).
func (a ChunkAccounting) Equal(b ChunkAccounting) bool {
	if len(a.ChunkBytes) != len(b.ChunkBytes) {
		return false
	}
	for i := range a.ChunkBytes {
		if a.ChunkBytes[i] != b.ChunkBytes[i] {
			return false
		}
	}
	return true
}
