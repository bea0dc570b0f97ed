package stage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// gcStore stages a single object in Google Cloud Storage, addressed like
// gs://bucket/path/to/object. Credentials are resolved the way the
// cloud.google.com/go/storage client always does: application-default
// credentials or GOOGLE_APPLICATION_CREDENTIALS.
type gcStore struct {
	location string
	client   *storage.Client
	bucket   string
	object   string
}

func newGCStore(u *url.URL) (Store, error) {
	if u.Scheme != "gs" {
		return nil, fmt.Errorf("stage: invalid scheme %q, expected gs", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("stage: gs location %q has no bucket", u.String())
	}
	object := strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return nil, fmt.Errorf("stage: gs location %q has no object path", u.String())
	}

	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, u.String())
	}
	return &gcStore{location: u.String(), client: client, bucket: u.Host, object: object}, nil
}

// Fetch streams the GCS object to localPath without buffering it whole in
// memory, the same discipline s3Store.Fetch follows via FGetObject.
func (s *gcStore) Fetch(ctx context.Context, localPath string) error {
	rc, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return errors.Wrap(err, s.location)
	}
	defer rc.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return errors.Wrap(err, s.location)
	}
	return nil
}

// Put streams localPath to the GCS object.
func (s *gcStore) Put(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.Wrap(err, s.location)
	}
	return errors.Wrap(w.Close(), s.location)
}

func (s *gcStore) String() string { return s.location }

func (s *gcStore) Close() error { return s.client.Close() }
