// Package testcodec is a deterministic, self-contained stand-in for the
// external LAS/LAZ reader/writer collaborator the coordinator in the root
// plaszip package depends on. It is explicitly not a LAZ
// implementation: points are fixed 32-byte records, and "compression" is
// nothing more than a 4-byte little-endian byte-count prefix in front of
// each chunk's point bytes, discoverable by the trailing chunk table the
// same way a real LAZ chunk table would be. The coordinator itself never
// imports this package; it exists for the coordinator's own test suite and
// for local experimentation ahead of wiring in a real collaborator (e.g. a
// cgo binding to LASzip).
package testcodec
