package plaszip

import "fmt"

// InsufficientChunks is returned by the Partitioner when there are fewer whole
// chunks in the source than there are peers (K < P) for a LAS->LAZ conversion.
type InsufficientChunks struct {
	Chunks int
	Peers  int
}

func (e InsufficientChunks) Error() string {
	return fmt.Sprintf("only %d whole chunk(s) available for %d peers", e.Chunks, e.Peers)
}

// PartitionMismatch is returned when peers disagree on values that must be
// consistent across the cohort: the source point count each peer sees (checked
// before partitioning), or a peer's gathered chunk count versus the number of
// chunk byte lengths it sends the designated writer.
type PartitionMismatch struct {
	Rank   int
	Reason string
}

func (e PartitionMismatch) Error() string {
	return fmt.Sprintf("peer %d: partition mismatch: %s", e.Rank, e.Reason)
}

// SizingMismatch is returned when a peer's final-pass byte count diverges from
// the count it recorded during the sizing pass, which indicates the encoder
// produced non-deterministic output across the two passes.
type SizingMismatch struct {
	Rank     int
	Chunk    int
	Expected uint64
	Actual   uint64
}

func (e SizingMismatch) Error() string {
	return fmt.Sprintf("peer %d: sizing mismatch at chunk %d: expected %d bytes, got %d", e.Rank, e.Chunk, e.Expected, e.Actual)
}

// IOError wraps a reader or writer failure observed by a peer at a specific
// point or chunk index, when known.
type IOError struct {
	Rank  int
	Point int64
	Err   error
}

func (e IOError) Error() string {
	if e.Point >= 0 {
		return fmt.Sprintf("peer %d: io error at point %d: %v", e.Rank, e.Point, e.Err)
	}
	return fmt.Sprintf("peer %d: io error: %v", e.Rank, e.Err)
}

func (e IOError) Unwrap() error { return e.Err }

// CollectiveFailure is returned when the message substrate aborts a collective
// operation, either because a peer called Abort or because the substrate
// itself detected a fatal transport error.
type CollectiveFailure struct {
	Rank   int
	Reason string
}

func (e CollectiveFailure) Error() string {
	return fmt.Sprintf("peer %d: collective failure: %s", e.Rank, e.Reason)
}

// ErrUnsupportedVersion is returned when a LAS/LAZ input reports a header
// version this coordinator does not support in parallel mode (only LAS
// 1.0/1.1/1.2 <-> LAZ). The point format is not checked.
type ErrUnsupportedVersion struct {
	Version string
}

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported LAS version %q for parallel conversion; only 1.0/1.1/1.2 are supported", e.Version)
}
