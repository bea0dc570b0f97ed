//go:build datadog

package stage

import (
	"io"

	"github.com/DataDog/zstd"
)

// newEncoder/newDecoder, cgo-accelerated variant. See stagecompress.go.
func newEncoder(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w), nil
}

func newDecoder(r io.Reader) (io.ReadCloser, error) {
	return zstd.NewReader(r), nil
}
