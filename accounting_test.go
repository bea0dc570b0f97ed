package plaszip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkAccountingRecord(t *testing.T) {
	var acc ChunkAccounting
	acc.Record(100)
	acc.Record(200)
	acc.Record(50)

	require.EqualValues(t, 3, acc.LocalChunks())
	require.EqualValues(t, 350, acc.LocalBytes)
	require.Equal(t, []uint32{100, 200, 50}, acc.ChunkBytes)
}

func TestChunkAccountingEqual(t *testing.T) {
	a := ChunkAccounting{ChunkBytes: []uint32{10, 20, 30}}
	b := ChunkAccounting{ChunkBytes: []uint32{10, 20, 30}}
	c := ChunkAccounting{ChunkBytes: []uint32{10, 20, 31}}
	d := ChunkAccounting{ChunkBytes: []uint32{10, 20}}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestChunkAccountingFingerprintStable(t *testing.T) {
	a := ChunkAccounting{ChunkBytes: []uint32{10, 20, 30}}
	b := ChunkAccounting{ChunkBytes: []uint32{10, 20, 30}}
	c := ChunkAccounting{ChunkBytes: []uint32{30, 20, 10}}

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
