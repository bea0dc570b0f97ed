package plaszip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionLASToLAZScenarios(t *testing.T) {
	// S1: N=150000, C=50000, P=3 -> each peer owns one 50000-point chunk.
	for rank, want := range []PeerRange{
		{Start: 0, End: 50000},
		{Start: 50000, End: 100000},
		{Start: 100000, End: 150000},
	} {
		got, err := Partition(150000, 3, rank, 50000, LASToLAZ)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// S2: N=150001, C=50000, P=3 -> peer 2 absorbs the trailing point.
	for rank, want := range []PeerRange{
		{Start: 0, End: 50000},
		{Start: 50000, End: 100000},
		{Start: 100000, End: 150001},
	} {
		got, err := Partition(150001, 3, rank, 50000, LASToLAZ)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// S3: N=100000, C=50000, P=3 -> only 2 whole chunks for 3 peers.
	_, err := Partition(100000, 3, 0, 50000, LASToLAZ)
	require.Equal(t, InsufficientChunks{Chunks: 2, Peers: 3}, err)

	// S4: N=250000, C=50000, P=3 -> peers 0,1 get 2 chunks, peer 2 gets 1.
	for rank, want := range []PeerRange{
		{Start: 0, End: 100000},
		{Start: 100000, End: 200000},
		{Start: 200000, End: 250000},
	} {
		got, err := Partition(250000, 3, rank, 50000, LASToLAZ)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPartitionLAZToLASEqualShare(t *testing.T) {
	// S5: arbitrary LAZ, P=3 -> floor split, remainder to the last peer.
	for rank, want := range []PeerRange{
		{Start: 0, End: 33333},
		{Start: 33333, End: 66666},
		{Start: 66666, End: 100000},
	} {
		got := partitionEqualShare(100000, 3, rank)
		require.Equal(t, want, got)
	}
}

func TestPartitionCoverageAndDisjointness(t *testing.T) {
	const n, peers, chunkSize = 473821, 7, 50000
	var prevEnd uint64
	var total uint64
	for rank := 0; rank < peers; rank++ {
		rng, err := Partition(n, peers, rank, chunkSize, LASToLAZ)
		require.NoError(t, err)
		require.Equal(t, prevEnd, rng.Start, "rank %d range must start where the previous one ended", rank)
		if rank < peers-1 {
			require.Zero(t, rng.Start%chunkSize)
			require.Zero(t, rng.End%chunkSize)
		}
		prevEnd = rng.End
		total += rng.Len()
	}
	require.EqualValues(t, n, total)
	require.EqualValues(t, n, prevEnd)
}

func TestPartitionSerialEquivalence(t *testing.T) {
	rng, err := Partition(123456, 1, 0, 50000, LASToLAZ)
	require.NoError(t, err)
	require.Equal(t, PeerRange{Start: 0, End: 123456}, rng)
}
