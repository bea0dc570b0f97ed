//go:build !datadog

package stage

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// newEncoder/newDecoder wrap a stream with zstd for a compressed staging
// transfer of staged remote objects: an sftpStore opened with ?compress=1
// runs its Fetch/Put
// through these instead of a plain io.Copy. This build uses the pure-Go
// klauspost/compress codec; the datadog-tagged variant swaps in the cgo
// DataDog/zstd binding for the same role, mirroring the teacher's own
// compress.go/compress_klauspost.go build-tag split.
func newEncoder(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func newDecoder(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
