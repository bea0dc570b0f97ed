package plaszip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/plaszip/plaszip/pkg/substrate"
)

func TestExchangePlacementAndTableAssembly(t *testing.T) {
	const peers = 3
	const headerEnd = 1000

	accs := []ChunkAccounting{
		{LocalBytes: 30, ChunkBytes: []uint32{10, 20}},
		{LocalBytes: 30, ChunkBytes: []uint32{30}},
		{LocalBytes: 150, ChunkBytes: []uint32{40, 50, 60}},
	}

	cohorts := substrate.NewInprocessCohort(peers)
	results := make([]ExchangeResult, peers)

	var g errgroup.Group
	for i, c := range cohorts {
		i, c := i, c
		g.Go(func() error {
			res, err := Exchange(context.Background(), c, accs[i], headerEnd)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	wantOffsets := []uint64{1000, 1030, 1060}
	for i, res := range results {
		require.Equal(t, []uint64{30, 30, 150}, res.AllBytes)
		require.Equal(t, wantOffsets[i], res.AbsoluteOffset)
		require.EqualValues(t, 1210, res.TableStartPosition)
	}

	writer := results[peers-1]
	require.Equal(t, []uint32{10, 20, 30, 40, 50, 60}, writer.ChunkBytesOrdered)
	require.Equal(t, []int{0, 2, 3, 6}, writer.ChunkOffsets)

	for i := 0; i < peers-1; i++ {
		require.Nil(t, results[i].ChunkBytesOrdered)
		require.Nil(t, results[i].ChunkOffsets)
	}
}

func TestExchangeSinglePeer(t *testing.T) {
	cohorts := substrate.NewInprocessCohort(1)
	acc := ChunkAccounting{LocalBytes: 64, ChunkBytes: []uint32{64}}
	res, err := Exchange(context.Background(), cohorts[0], acc, 32)
	require.NoError(t, err)
	require.EqualValues(t, 32, res.AbsoluteOffset)
	require.EqualValues(t, 96, res.TableStartPosition)
	require.Equal(t, []uint32{64}, res.ChunkBytesOrdered)
	require.Equal(t, []int{0, 1}, res.ChunkOffsets)
}

func TestExchangeDetectsChunkBytesMismatch(t *testing.T) {
	const peers = 2
	cohorts := substrate.NewInprocessCohort(peers)
	// Rank 0 claims 2 chunks in the gather but only sends 1 length value,
	// which the designated writer (rank 1) must reject.
	accGood := ChunkAccounting{LocalBytes: 10, ChunkBytes: []uint32{10}}
	accBad := ChunkAccounting{LocalBytes: 10, ChunkBytes: []uint32{10}}

	var g errgroup.Group
	g.Go(func() error {
		_, err := exchangeWithClaimedChunks(context.Background(), cohorts[0], accBad, 0, 2)
		return err
	})
	var recvErr error
	g.Go(func() error {
		_, err := Exchange(context.Background(), cohorts[1], accGood, 0)
		recvErr = err
		return nil
	})
	_ = g.Wait()
	require.Error(t, recvErr)
}

// exchangeWithClaimedChunks runs the same protocol as Exchange but lies
// about its own chunk count in the gather step, to exercise the designated
// writer's cross-check in Exchange without needing a second production
// entry point.
func exchangeWithClaimedChunks(ctx context.Context, cohort substrate.Cohort, acc ChunkAccounting, headerEnd int64, claimedChunks uint32) (ExchangeResult, error) {
	rank := cohort.Rank()
	peers := cohort.Size()

	allBytes, err := cohort.AllGatherUint64(ctx, acc.LocalBytes)
	if err != nil {
		return ExchangeResult{}, err
	}
	var offset, total uint64 = uint64(headerEnd), uint64(headerEnd)
	for i, b := range allBytes {
		if i < rank {
			offset += b
		}
		total += b
	}
	res := ExchangeResult{AllBytes: allBytes, AbsoluteOffset: offset, TableStartPosition: int64(total)}

	if _, err := cohort.GatherUint32ToRoot(ctx, peers-1, []uint32{claimedChunks}); err != nil {
		return res, err
	}
	if err := cohort.Send(ctx, peers-1, substrate.TagChunkBytes, encodeUint32s(acc.ChunkBytes)); err != nil {
		return res, err
	}
	if rank == 0 {
		if err := cohort.Send(ctx, peers-1, substrate.TagTablePos, encodeUint64(uint64(res.TableStartPosition))); err != nil {
			return res, err
		}
	}
	return res, nil
}
