package plaszip

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/plaszip/plaszip/pkg/substrate"
)

// Config holds one peer's view of a conversion job. Every peer in the
// cohort is expected to be launched with the same Config (mismatches in
// what they observe about the input are caught by the all-gather at the
// start of Convert, surfaced as PartitionMismatch).
type Config struct {
	InputPath  string
	OutputPath string
	// ChunkSize is C, the chunk point count. Zero means ChunkSizeDefault.
	ChunkSize uint64
	Direction Direction
}

// NewReaderFunc constructs a Reader collaborator bound to a local path.
// Like NewWriterFunc, Convert is deliberately not given a concrete
// implementation: that lives in the external LAZ collaborator.
type NewReaderFunc func(path string) (Reader, error)

// Convert drives one peer through all four phases of the protocol —
// Partitioner, Sizing Pass, Placement Exchange, Final Pass & Table Writer —
// separated by exactly the four barriers the Design Notes call for. It
// mirrors the shape of the teacher's top-level orchestration functions
// (IndexFromFile in make.go, AssembleFile in assemble.go): open
// collaborators, run the phases, report structured events, surface the
// first error.
func Convert(ctx context.Context, cohort substrate.Cohort, cfg Config, newReader NewReaderFunc, newWriter NewWriterFunc, stats *PassStats) (err error) {
	rank, peers := cohort.Rank(), cohort.Size()
	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = ChunkSizeDefault
	}

	// Any error from here on aborts the whole cohort: a peer that hits a
	// fatal condition mid-protocol can't let the others block forever on
	// a collective that will never complete.
	defer func() {
		if err != nil {
			cohort.Abort(err)
		}
	}()

	r, ferr := newReader(cfg.InputPath)
	if ferr != nil {
		return IOError{Rank: rank, Point: -1, Err: ferr}
	}
	defer r.Close()

	hdr := r.Header()
	if !hdr.Supported() {
		return ErrUnsupportedVersion{Version: fmt.Sprintf("%d.%d", hdr.VersionMajor, hdr.VersionMinor)}
	}

	allN, cerr := cohort.AllGatherUint64(ctx, hdr.PointCount)
	if cerr != nil {
		return CollectiveFailure{Rank: rank, Reason: "all-gather point count: " + cerr.Error()}
	}
	for i, n := range allN {
		if n != hdr.PointCount {
			return PartitionMismatch{Rank: rank, Reason: fmt.Sprintf("rank %d sees N=%d, this peer sees N=%d", i, n, hdr.PointCount)}
		}
	}

	rng, perr := Partition(hdr.PointCount, peers, rank, chunkSize, cfg.Direction)
	if perr != nil {
		return perr
	}
	logPhase(rank, phasePartitioning, logrus.Fields{"start": rng.Start, "end": rng.End})

	if berr := cohort.Barrier(ctx); berr != nil {
		return CollectiveFailure{Rank: rank, Reason: "barrier after partitioning: " + berr.Error()}
	}

	sizingAcc, serr := Size(r, rng, chunkSize, newWriter, stats)
	if serr != nil {
		return serr
	}
	logPhase(rank, phaseSizing, logrus.Fields{
		"local_bytes":  sizingAcc.LocalBytes,
		"local_chunks": sizingAcc.LocalChunks(),
		"fingerprint":  sizingAcc.Fingerprint(),
	})

	if berr := cohort.Barrier(ctx); berr != nil {
		return CollectiveFailure{Rank: rank, Reason: "barrier after sizing: " + berr.Error()}
	}

	sink, oerr := os.OpenFile(cfg.OutputPath, os.O_RDWR|os.O_CREATE, 0o644)
	if oerr != nil {
		return IOError{Rank: rank, Point: -1, Err: errors.Wrap(oerr, "open output")}
	}
	defer sink.Close()

	w, werr := newWriter(sink, chunkSize, 0)
	if werr != nil {
		return IOError{Rank: rank, Point: -1, Err: werr}
	}
	defer w.Close()

	headerEnd, terr := w.Tell()
	if terr != nil {
		return IOError{Rank: rank, Point: -1, Err: terr}
	}

	exch, eerr := Exchange(ctx, cohort, sizingAcc, headerEnd)
	if eerr != nil {
		return eerr
	}
	logPhase(rank, phaseExchange, logrus.Fields{
		"absolute_offset": exch.AbsoluteOffset,
		"table_start":     exch.TableStartPosition,
	})

	if berr := cohort.Barrier(ctx); berr != nil {
		return CollectiveFailure{Rank: rank, Reason: "barrier after exchange: " + berr.Error()}
	}

	finalAcc, ferr2 := Finalize(ctx, rank, r, rng, w, exch, sizingAcc, stats)
	if ferr2 != nil {
		return ferr2
	}
	logPhase(rank, phaseFinalizing, logrus.Fields{
		"local_bytes":  finalAcc.LocalBytes,
		"local_chunks": finalAcc.LocalChunks(),
		"fingerprint":  finalAcc.Fingerprint(),
	})

	if berr := cohort.Barrier(ctx); berr != nil {
		return CollectiveFailure{Rank: rank, Reason: "barrier after finalizing: " + berr.Error()}
	}

	if werr := WriteTable(ctx, rank, peers, w, exch); werr != nil {
		return werr
	}
	if rank == peers-1 {
		logPhase(rank, phaseTableWriting, logrus.Fields{"total_chunks": exch.ChunkOffsets[peers]})
	}

	logPhase(rank, phaseDone, nil)
	return nil
}
