package main

import (
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	require.Equal(t, 1, cfg.Peers)
	require.Equal(t, uint64(50000), cfg.ChunkSize)
}

func TestGetS3CredentialsForEnvTakesPrecedence(t *testing.T) {
	defer restoreEnv(os.Environ())
	os.Clearenv()
	os.Setenv("S3_ACCESS_KEY", "envkey")
	os.Setenv("S3_SECRET_KEY", "envsecret")
	os.Setenv("S3_REGION", "us-west-2")

	c := Config{S3Credentials: map[string]S3Creds{
		"http://example.com": {AccessKey: "configkey", SecretKey: "configsecret"},
	}}
	u, err := url.Parse("s3+http://example.com/bucket/key")
	require.NoError(t, err)

	creds, region := c.GetS3CredentialsFor(u)
	v, err := creds.Get()
	require.NoError(t, err)
	require.Equal(t, "envkey", v.AccessKeyID)
	require.Equal(t, "us-west-2", region)
}

func TestGetS3CredentialsForFallsBackToConfig(t *testing.T) {
	defer restoreEnv(os.Environ())
	os.Clearenv()

	c := Config{S3Credentials: map[string]S3Creds{
		"http://example.com": {AccessKey: "configkey", SecretKey: "configsecret", AwsRegion: "eu-central-1"},
	}}
	u, err := url.Parse("s3+http://example.com/bucket/key")
	require.NoError(t, err)

	creds, region := c.GetS3CredentialsFor(u)
	v, err := creds.Get()
	require.NoError(t, err)
	require.Equal(t, "configkey", v.AccessKeyID)
	require.Equal(t, "eu-central-1", region)
}

func restoreEnv(env []string) {
	os.Clearenv()
	for _, e := range env {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				os.Setenv(e[:i], e[i+1:])
				break
			}
		}
	}
}
