// Package substrate implements the collective communication substrate the
// coordinator in the root plaszip package is built against: barriers,
// all-gather, gather-to-root, broadcast, and tagged point-to-point
// send/recv, the "Message substrate" contract the coordinator depends on.
//
// No Go binding for MPI (or an equivalent collective library) turned up in
// the reference corpus this project was built from, so this package is its
// own small substrate rather than a wrapper around a third-party one — see
// DESIGN.md for the justification. Its two backends, Inprocess and TCP,
// satisfy the same Cohort interface the coordinator depends on, the way the
// teacher project keeps its chunk Store backend-agnostic across local, S3,
// GCS and SFTP implementations.
package substrate

import "context"

// Cohort is the collective communication substrate the coordinator
// requires: init/finalize, barrier, all-gather, gather, broadcast and
// tagged point-to-point send/recv, no non-blocking variants.
type Cohort interface {
	// Rank returns this peer's rank, 0 <= Rank() < Size().
	Rank() int
	// Size returns the cohort size P.
	Size() int

	// Barrier blocks until every peer has called Barrier.
	Barrier(ctx context.Context) error

	// AllGatherUint64 exchanges one uint64 per peer and returns the full
	// vector, indexed by rank, identically on every peer.
	AllGatherUint64(ctx context.Context, v uint64) ([]uint64, error)

	// GatherUint32ToRoot gathers one []uint32 per peer to root. Non-root
	// callers get a nil slice back; root gets one entry per rank, in rank
	// order.
	GatherUint32ToRoot(ctx context.Context, root int, v []uint32) ([][]uint32, error)

	// BroadcastUint64 sends v from root to every peer (v is ignored on
	// non-root callers) and returns the value every peer ends up with.
	BroadcastUint64(ctx context.Context, root int, v uint64) (uint64, error)

	// Send delivers body to peer `to`, tagged with tag. Blocking.
	Send(ctx context.Context, to int, tag uint64, body []byte) error

	// Recv blocks until a message tagged tag arrives from peer `from`.
	Recv(ctx context.Context, from int, tag uint64) ([]byte, error)

	// Abort tears down the entire cohort: every peer's next collective
	// call returns a CollectiveFailure-shaped error. Used when a peer
	// detects a fatal, job-ending condition.
	Abort(err error)

	// Close releases this peer's transport resources. Safe to call after
	// Abort.
	Close() error
}

// Tags used for the two point-to-point exchanges of the Placement Exchange.
const (
	TagChunkBytes uint64 = 1
	TagTablePos   uint64 = 2
)
