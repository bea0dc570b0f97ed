package stage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewS3StoreRejectsWrongScheme(t *testing.T) {
	u, err := url.Parse("gs://bucket/key")
	require.NoError(t, err)
	_, err = newS3Store(u, nil, "")
	require.Error(t, err)
}

func TestNewS3StoreRequiresBucketAndKey(t *testing.T) {
	for _, raw := range []string{
		"s3+http://host:9000/",
		"s3+http://host:9000/bucket",
		"s3+http://host:9000/bucket/",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		_, err = newS3Store(u, nil, "")
		require.Errorf(t, err, "expected %q to be rejected", raw)
	}
}

func TestNewS3StoreParsesBucketAndKey(t *testing.T) {
	u, err := url.Parse("s3+https://host:9000/doomsdaydevices/input/flight-001.laz")
	require.NoError(t, err)
	st, err := newS3Store(u, nil, "")
	require.NoError(t, err)
	s := st.(*s3Store)
	require.Equal(t, "doomsdaydevices", s.bucket)
	require.Equal(t, "input/flight-001.laz", s.key)
	require.Equal(t, u.String(), s.String())
}
