package testcodec

import "os"

// WriteFixture creates a flat, uncompressed source file of n points at
// path, suitable as the -i input for a LAS->LAZ test job or as the
// known-good reference for a round-trip comparison. It's the testcodec
// equivalent of the teacher's scratch-fixture helpers in make_test.go.
func WriteFixture(path string, n uint64, versionMajor, versionMinor uint8) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeFileHeader(f, fileHeader{
		PointCount:   n,
		VersionMajor: versionMajor,
		VersionMinor: versionMinor,
		Compressed:   false,
	}); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := f.Write(encodePoint(pointAt(i))); err != nil {
			return err
		}
	}
	return nil
}
