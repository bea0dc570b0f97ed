package substrate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestInprocessCohortBarrier(t *testing.T) {
	cohorts := NewInprocessCohort(4)
	var g errgroup.Group
	var mu sync.Mutex
	var order []int
	for _, c := range cohorts {
		c := c
		g.Go(func() error {
			err := c.Barrier(context.Background())
			mu.Lock()
			order = append(order, c.Rank())
			mu.Unlock()
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, order, 4)
}

func TestInprocessCohortAllGatherUint64(t *testing.T) {
	cohorts := NewInprocessCohort(3)
	results := make([][]uint64, 3)
	var g errgroup.Group
	for i, c := range cohorts {
		i, c := i, c
		g.Go(func() error {
			out, err := c.AllGatherUint64(context.Background(), uint64(i*10))
			results[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())
	want := []uint64{0, 10, 20}
	for _, r := range results {
		require.Equal(t, want, r)
	}
}

func TestInprocessCohortGatherUint32ToRoot(t *testing.T) {
	const peers = 4
	const root = peers - 1
	cohorts := NewInprocessCohort(peers)
	results := make([][][]uint32, peers)
	var g errgroup.Group
	for i, c := range cohorts {
		i, c := i, c
		g.Go(func() error {
			out, err := c.GatherUint32ToRoot(context.Background(), root, []uint32{uint32(i), uint32(i + 1)})
			results[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())
	for r := 0; r < peers; r++ {
		if r == root {
			require.Len(t, results[r], peers)
			require.Equal(t, []uint32{2, 3}, results[r][2])
			continue
		}
		require.Nil(t, results[r])
	}
}

func TestInprocessCohortBroadcastUint64(t *testing.T) {
	const peers = 3
	const root = 1
	cohorts := NewInprocessCohort(peers)
	results := make([]uint64, peers)
	var g errgroup.Group
	for i, c := range cohorts {
		i, c := i, c
		g.Go(func() error {
			v := uint64(0)
			if i == root {
				v = 42
			}
			out, err := c.BroadcastUint64(context.Background(), root, v)
			results[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		require.EqualValues(t, 42, r)
	}
}

func TestInprocessCohortSendRecv(t *testing.T) {
	cohorts := NewInprocessCohort(2)
	var g errgroup.Group
	g.Go(func() error {
		return cohorts[0].Send(context.Background(), 1, TagChunkBytes, []byte("hello"))
	})
	var got []byte
	g.Go(func() error {
		b, err := cohorts[1].Recv(context.Background(), 0, TagChunkBytes)
		got = b
		return err
	})
	require.NoError(t, g.Wait())
	require.Equal(t, "hello", string(got))
}

func TestInprocessCohortAbortUnblocksPeers(t *testing.T) {
	cohorts := NewInprocessCohort(3)
	var g errgroup.Group
	g.Go(func() error { return cohorts[0].Barrier(context.Background()) })
	g.Go(func() error { return cohorts[1].Barrier(context.Background()) })
	// Rank 2 never calls Barrier; Abort must still release ranks 0 and 1.
	boom := errors.New("boom")
	cohorts[2].Abort(boom)
	err := g.Wait()
	require.Error(t, err)
}
