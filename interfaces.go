package plaszip

import "context"

// Header describes the subset of a LAS/LAZ header the coordinator needs to
// drive partitioning and version gating. It's produced by the Reader
// collaborator.
type Header struct {
	// PointCount is the total number of points in the source file (N in
	// the data model).
	PointCount uint64
	// VersionMajor/VersionMinor are the LAS header version fields.
	VersionMajor, VersionMinor uint8
	// Compressed reports whether the source carries a laszip VLR, i.e.
	// whether the input is LAZ rather than plain LAS.
	Compressed bool
}

// Supported reports whether this header's version is one the parallel
// coordinator supports (LAS 1.0/1.1/1.2 only).
func (h Header) Supported() bool {
	return h.VersionMajor == 1 && h.VersionMinor <= 2
}

// Reader is the external LAS/LAZ reader collaborator. The coordinator only
// ever calls it with a single range per peer: Seek once, then ReadPoint
// repeatedly until it returns false.
type Reader interface {
	// Header returns the parsed source header.
	Header() Header
	// Seek positions the reader at the point with the given ordinal index,
	// such that the next ReadPoint call returns that point.
	Seek(point uint64) error
	// ReadPoint advances to the next point and returns false at end of
	// stream (not end of this peer's range — the coordinator is
	// responsible for stopping after p_end-p_start points).
	ReadPoint() (bool, error)
	// Point returns the most recently read point, opaque to the
	// coordinator beyond what Writer.WritePoint needs.
	Point() any
	Close() error
}

// Writer is the external LAZ writer collaborator. One Writer is bound to
// exactly one of the two sinks described by the "writer object
// polymorphism" design: a counting sink during the Sizing Pass, or the
// real output during the Final Pass. The coordinator never flips a single
// Writer between the two.
type Writer interface {
	// WritePoint encodes one point into the writer's current chunk. Every
	// C points the writer closes the current arithmetic-coder instance on
	// its own (internal chunking) and starts a fresh one; when that
	// happens WritePoint reports the just-completed
	// chunk's compressed byte length via chunkBytes with completed=true.
	// The coordinator must record every such report — a peer's range
	// ordinarily spans many chunks, not just the final one.
	WritePoint(p any) (chunkBytes uint32, completed bool, err error)
	// Tell returns the writer's current absolute stream position.
	Tell() (int64, error)
	// Seek repositions the writer (used only when opening the Final Pass
	// writer at its peer's absolute offset).
	Seek(offset int64) error
	// Done forces completion of the current arithmetic-coder chunk, if any
	// points have accumulated in it since the last completed chunk, and
	// returns its compressed byte length. Called once per peer per pass,
	// after the last point of its range. wroteChunk is false when the
	// range ended exactly on a chunk boundary (WritePoint's own internal
	// chunking already closed and reported the last chunk) — the
	// coordinator must not record a chunk in that case.
	Done() (chunkBytes uint32, wroteChunk bool, err error)
	// WriteChunkTable overrides the writer's number-of-chunks and
	// chunk-byte-length state with accounting assembled by the
	// coordinator, then emits the trailing chunk table and patches the
	// header back-pointer. Only ever called by the designated writer
	// (rank P-1).
	WriteChunkTable(ctx context.Context, table ChunkTable) error
	Close() error
}

// ChunkTable is the fully assembled, rank-ordered chunk metadata the
// designated writer hands to the Writer collaborator in the Final Pass
// for the Final Pass.
type ChunkTable struct {
	// ChunkBytes is the compressed byte length of every chunk in the file,
	// in rank order then chunk order within a rank.
	ChunkBytes []uint32
	// StartPosition is the chunk table's absolute offset in the output
	// file.
	StartPosition int64
}

// NumberChunks is the total chunk count the chunk table header field must
// report: Sum(all_chunks) across peers.
func (t ChunkTable) NumberChunks() uint32 { return uint32(len(t.ChunkBytes)) }
