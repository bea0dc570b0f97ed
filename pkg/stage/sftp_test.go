package stage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSFTPStoreRejectsWrongScheme(t *testing.T) {
	u, err := url.Parse("gs://bucket/key")
	require.NoError(t, err)
	_, err = newSFTPStore(u)
	require.Error(t, err)
}

func TestNewSFTPStoreRequiresPath(t *testing.T) {
	for _, raw := range []string{"sftp://host", "sftp://host/"} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		_, err = newSFTPStore(u)
		require.Errorf(t, err, "expected %q to be rejected", raw)
	}
}
