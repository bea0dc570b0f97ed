package plaszip

// Direction selects which of the two partitioning algorithms the
// Partitioner uses.
type Direction int

const (
	// LASToLAZ partitions on chunk boundaries, deal-one-extra-to-low-ranks.
	LASToLAZ Direction = iota
	// LAZToLAS partitions by equal point-count share, extras to the last
	// rank.
	LAZToLAS
)

// ChunkSizeDefault is the default chunk size C used when none is configured.
const ChunkSizeDefault = 50000

// PeerRange is the half-open interval [Start, End) of source point indices
// owned by one peer.
type PeerRange struct {
	Start, End uint64
}

// Len returns the number of points in the range.
func (r PeerRange) Len() uint64 { return r.End - r.Start }

// Partition computes the peer range for rank out of peers peers, over a
// source of n total points, using chunk size c and the given conversion
// direction.
func Partition(n uint64, peers, rank int, c uint64, dir Direction) (PeerRange, error) {
	if dir == LAZToLAS {
		return partitionEqualShare(n, peers, rank), nil
	}
	return partitionChunkAligned(n, peers, rank, c)
}

// partitionChunkAligned implements the LAS->LAZ algorithm: K whole chunks
// are dealt across peers low-rank-first, the last peer additionally absorbs
// the L trailing points that don't make up a whole chunk.
func partitionChunkAligned(n uint64, peers, rank int, c uint64) (PeerRange, error) {
	k := n / c // whole chunks
	l := n % c // trailing partial chunk points

	if uint64(peers) > k {
		return PeerRange{}, InsufficientChunks{Chunks: int(k), Peers: peers}
	}

	base := k / uint64(peers)
	extra := k % uint64(peers) // first `extra` ranks get one more chunk

	chunksFor := func(r int) uint64 {
		if uint64(r) < extra {
			return base + 1
		}
		return base
	}

	var start uint64
	for r := 0; r < rank; r++ {
		start += chunksFor(r) * c
	}
	end := start + chunksFor(rank)*c
	if rank == peers-1 {
		end += l
	}
	return PeerRange{Start: start, End: end}, nil
}

// partitionEqualShare implements the LAZ->LAS algorithm: an equal split by
// point count, with the remainder given entirely to the last peer.
func partitionEqualShare(n uint64, peers, rank int) PeerRange {
	share := n / uint64(peers)
	remainder := n % uint64(peers)

	start := uint64(rank) * share
	end := start + share
	if rank == peers-1 {
		end += remainder
	}
	return PeerRange{Start: start, End: end}
}
