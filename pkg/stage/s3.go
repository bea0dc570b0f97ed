package stage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	minio "github.com/minio/minio-go/v6"
	"github.com/minio/minio-go/v6/pkg/credentials"
	"github.com/pkg/errors"
)

// s3Store stages a single S3 object, addressed like s3+http://host:port/bucket/key
// or s3+https://host:port/bucket/key, for one -i or -o location.
type s3Store struct {
	location string
	client   *minio.Client
	bucket   string
	key      string
}

// newS3Store opens an S3 client for u and resolves the bucket/key this
// store will Fetch from or Put to. creds/region come from the caller's
// Config.GetS3CredentialsFor (cmd/plaszip/config.go): static
// S3_ACCESS_KEY/S3_SECRET_KEY env credentials, a configured access/secret
// key pair, or an AWS shared credentials file, in that order. When creds
// is nil (e.g. a direct Open call with no config available), it falls
// back to the environment the way the teacher's own S3Store always did.
func newS3Store(u *url.URL, creds *credentials.Credentials, region string) (Store, error) {
	if !strings.HasPrefix(u.Scheme, "s3+http") {
		return nil, fmt.Errorf("stage: invalid scheme %q, expected s3+http or s3+https", u.Scheme)
	}
	useSSL := strings.HasSuffix(u.Scheme, "s")

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("stage: s3 location %q has no bucket/key path", u.String())
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("stage: s3 location %q must name bucket and object key", u.String())
	}

	if creds == nil {
		creds = NewStaticCredentials(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"))
	}
	client, err := minio.NewWithCredentials(u.Host, creds, useSSL, region)
	if err != nil {
		return nil, errors.Wrap(err, u.String())
	}

	return &s3Store{location: u.String(), client: client, bucket: parts[0], key: parts[1]}, nil
}

// Fetch downloads the S3 object to localPath using FGetObject, which
// streams directly to the file rather than buffering the whole object in
// memory — the object backing a multi-hundred-gigabyte LAS/LAZ file must
// never be held whole in a peer's memory footprint.
func (s *s3Store) Fetch(ctx context.Context, localPath string) error {
	if err := s.client.FGetObject(s.bucket, s.key, localPath, minio.GetObjectOptions{}); err != nil {
		return errors.Wrap(err, s.location)
	}
	return nil
}

// Put uploads localPath's contents to the S3 object using FPutObject.
func (s *s3Store) Put(ctx context.Context, localPath string) error {
	if _, err := s.client.FPutObject(s.bucket, s.key, localPath, minio.PutObjectOptions{ContentType: "application/octet-stream"}); err != nil {
		return errors.Wrap(err, s.location)
	}
	return nil
}

func (s *s3Store) String() string { return s.location }

func (s *s3Store) Close() error { return nil }
