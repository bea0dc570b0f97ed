/*
Package plaszip implements the parallel chunked-codec coordinator that lets a
cohort of P peer processes cooperatively convert a LAS point-cloud file to
LAZ (or back) and produce a single byte-exact output whose chunk table is
globally consistent.

The package owns four things: partitioning the source point range across
peers on chunk boundaries (Partition), a discard-sink sizing pass that
discovers each peer's byte and chunk counts (Size), a collective placement
exchange that turns those counts into absolute file offsets (Exchange), and
a final pass that writes the real output (Finalize), after which the
designated writer emits the trailing chunk table (WriteTable). See Convert
for the top-level
driver that runs all four phases.

The LAS/LAZ container, the arithmetic coder and the per-point predictive
codec are not implemented here; they're reached through the Reader/Writer
interfaces in interfaces.go and supplied by an external collaborator.
*/
package plaszip
