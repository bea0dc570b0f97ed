package substrate

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestTCPCohortBarrierAndCollectives(t *testing.T) {
	const peers = 3
	rootAddr := freeTCPAddr(t)
	addrs := make([]string, peers)
	for i := range addrs {
		addrs[i] = rootAddr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	cohorts := make([]Cohort, peers)

	g.Go(func() error {
		c, err := NewTCPCohort(gctx, TCPConfig{Rank: 0, Size: peers, Addrs: addrs})
		cohorts[0] = c
		return err
	})
	for r := 1; r < peers; r++ {
		r := r
		g.Go(func() error {
			// Give rank 0 a head start to bind its listener.
			time.Sleep(50 * time.Millisecond)
			c, err := NewTCPCohort(gctx, TCPConfig{Rank: r, Size: peers, Addrs: addrs})
			cohorts[r] = c
			return err
		})
	}
	require.NoError(t, g.Wait())
	defer func() {
		for _, c := range cohorts {
			c.Close()
		}
	}()

	var bg errgroup.Group
	for _, c := range cohorts {
		c := c
		bg.Go(func() error { return c.Barrier(context.Background()) })
	}
	require.NoError(t, bg.Wait())

	results := make([][]uint64, peers)
	var ag errgroup.Group
	for i, c := range cohorts {
		i, c := i, c
		ag.Go(func() error {
			out, err := c.AllGatherUint64(context.Background(), uint64(i*100))
			results[i] = out
			return err
		})
	}
	require.NoError(t, ag.Wait())
	want := []uint64{0, 100, 200}
	for _, r := range results {
		require.Equal(t, want, r)
	}

	var sg errgroup.Group
	sg.Go(func() error { return cohorts[0].Send(context.Background(), 2, TagTablePos, []byte("table-position")) })
	var got []byte
	sg.Go(func() error {
		b, err := cohorts[2].Recv(context.Background(), 0, TagTablePos)
		got = b
		return err
	})
	require.NoError(t, sg.Wait())
	require.Equal(t, "table-position", string(got))
}
