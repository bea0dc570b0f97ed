package plaszip

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/plaszip/plaszip/pkg/substrate"
)

// ExchangeResult is the set of values the Placement Exchange derives from
// the cohort's sizing-pass accounting: every peer's absolute write offset,
// and, on the designated writer only, the rank-order chunk-bytes buffer
// the Final Pass needs to assemble the chunk table.
type ExchangeResult struct {
	// AllBytes is local_bytes from every peer, indexed by rank, identical
	// on every peer after the all-gather.
	AllBytes []uint64
	// AbsoluteOffset is this peer's absolute file offset for the Final
	// Pass: header_end + Sum(AllBytes[i] for i < rank).
	AbsoluteOffset uint64
	// TableStartPosition is header_end + Sum(AllBytes), the chunk table's
	// absolute offset. Every peer can derive it independently; rank 0
	// also ships it to the designated writer over the wire so the two can
	// be cross-checked.
	TableStartPosition int64
	// ChunkBytesOrdered is the full chunk-bytes vector, concatenated
	// across peers in rank order, populated only on the designated
	// writer (rank P-1). Nil on every other peer.
	ChunkBytesOrdered []uint32
	// ChunkOffsets is the prefix sum of all_chunks, length P+1:
	// ChunkBytesOrdered[ChunkOffsets[r]:ChunkOffsets[r+1]] is rank r's
	// slice. Populated only on the designated writer.
	ChunkOffsets []int
}

// Exchange runs the Placement Exchange's four collectives in order,
// converting this peer's ChunkAccounting from the Sizing Pass into the
// placement decisions the Final Pass needs. headerEnd is the writer's
// stream position immediately after the header and VLRs, identical on
// every peer because that write is deterministic and collective.
func Exchange(ctx context.Context, cohort substrate.Cohort, acc ChunkAccounting, headerEnd int64) (ExchangeResult, error) {
	rank := cohort.Rank()
	peers := cohort.Size()

	allBytes, err := cohort.AllGatherUint64(ctx, acc.LocalBytes)
	if err != nil {
		return ExchangeResult{}, CollectiveFailure{Rank: rank, Reason: "all-gather local_bytes: " + err.Error()}
	}

	var offset, total uint64 = uint64(headerEnd), uint64(headerEnd)
	for i, b := range allBytes {
		if i < rank {
			offset += b
		}
		total += b
	}
	res := ExchangeResult{
		AllBytes:           allBytes,
		AbsoluteOffset:     offset,
		TableStartPosition: int64(total),
	}

	gathered, err := cohort.GatherUint32ToRoot(ctx, peers-1, []uint32{acc.LocalChunks()})
	if err != nil {
		return res, CollectiveFailure{Rank: rank, Reason: "gather-to-last local_chunks: " + err.Error()}
	}

	if rank != peers-1 {
		if err := cohort.Send(ctx, peers-1, substrate.TagChunkBytes, encodeUint32s(acc.ChunkBytes)); err != nil {
			return res, CollectiveFailure{Rank: rank, Reason: fmt.Sprintf("send chunk_bytes to designated writer: %v", err)}
		}
		if rank == 0 {
			if err := cohort.Send(ctx, peers-1, substrate.TagTablePos, encodeUint64(uint64(res.TableStartPosition))); err != nil {
				return res, CollectiveFailure{Rank: rank, Reason: fmt.Sprintf("send chunk_table_start_position: %v", err)}
			}
		}
		return res, nil
	}

	allChunks := make([]uint32, peers)
	for r, v := range gathered {
		allChunks[r] = v[0]
	}
	offsets := make([]int, peers+1)
	for r := 0; r < peers; r++ {
		offsets[r+1] = offsets[r] + int(allChunks[r])
	}
	chunkBytes := make([]uint32, offsets[peers])
	copy(chunkBytes[offsets[rank]:offsets[rank+1]], acc.ChunkBytes)

	for r := 0; r < peers; r++ {
		if r == rank {
			continue
		}
		body, err := cohort.Recv(ctx, r, substrate.TagChunkBytes)
		if err != nil {
			return res, CollectiveFailure{Rank: rank, Reason: fmt.Sprintf("recv chunk_bytes from rank %d: %v", r, err)}
		}
		vals, err := decodeUint32s(body)
		if err != nil {
			return res, CollectiveFailure{Rank: rank, Reason: fmt.Sprintf("decode chunk_bytes from rank %d: %v", r, err)}
		}
		if len(vals) != int(allChunks[r]) {
			return res, PartitionMismatch{Rank: rank, Reason: fmt.Sprintf("rank %d reported %d chunks but sent %d byte lengths", r, allChunks[r], len(vals))}
		}
		copy(chunkBytes[offsets[r]:offsets[r+1]], vals)
	}
	res.ChunkBytesOrdered = chunkBytes
	res.ChunkOffsets = offsets

	if peers > 1 {
		body, err := cohort.Recv(ctx, 0, substrate.TagTablePos)
		if err != nil {
			return res, CollectiveFailure{Rank: rank, Reason: "recv chunk_table_start_position: " + err.Error()}
		}
		received := int64(decodeUint64(body))
		if received != res.TableStartPosition {
			return res, CollectiveFailure{Rank: rank, Reason: fmt.Sprintf("chunk_table_start_position mismatch: rank 0 sent %d, locally derived %d", received, res.TableStartPosition)}
		}
	}

	return res, nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func encodeUint32s(v []uint32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	return b
}

func decodeUint32s(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("chunk_bytes payload length %d not a multiple of 4", len(b))
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}
