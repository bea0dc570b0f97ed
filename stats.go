package plaszip

import "sync/atomic"

// PassStats carries the diagnostic counters accumulated by one peer across a
// single Convert job. It's kept alongside, not inside, ChunkAccounting: the
// accounting values are protocol state that other peers depend on, while
// PassStats is purely informational and safe to read at any point.
type PassStats struct {
	PointsRead    uint64 `json:"points-read"`
	PointsWritten uint64 `json:"points-written"`
	ChunksSized   uint64 `json:"chunks-sized"`
	ChunksWritten uint64 `json:"chunks-written"`
	BytesSized    uint64 `json:"bytes-sized"`
	BytesWritten  uint64 `json:"bytes-written"`
}

func (s *PassStats) addPointsRead(n uint64)    { atomic.AddUint64(&s.PointsRead, n) }
func (s *PassStats) addPointsWritten(n uint64) { atomic.AddUint64(&s.PointsWritten, n) }
func (s *PassStats) incChunksSized()           { atomic.AddUint64(&s.ChunksSized, 1) }
func (s *PassStats) incChunksWritten()         { atomic.AddUint64(&s.ChunksWritten, 1) }
func (s *PassStats) addBytesSized(n uint64)    { atomic.AddUint64(&s.BytesSized, n) }
func (s *PassStats) addBytesWritten(n uint64)  { atomic.AddUint64(&s.BytesWritten, n) }
