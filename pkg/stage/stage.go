// Package stage adapts remote object storage into the local scratch files
// the coordinator's Reader/Writer collaborators actually read from and
// write to. A job configured with an -i/-o that names a local path
// bypasses this package
// entirely; one that names an s3+http(s)://, gs:// or sftp:// location gets
// fetched to a local scratch file before the cohort starts and, for -o,
// put back to the remote location once the designated writer finishes the
// chunk table. The parallel Sizing and Final passes never touch a remote
// object directly — they need byte-exact Seek, which none of these stores
// give cheaply.
//
// This mirrors the teacher's own habit of keeping its chunk Store backend
// agnostic across local, S3, GCS and SFTP implementations
// (storerouter.go); here there is exactly one Store per job rather than a
// router across many, since a conversion job has exactly one input and one
// output location.
package stage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v6/pkg/credentials"
)

// Store fetches a single remote object to a local path, or puts a local
// path's contents to a single remote object. Implementations are
// one-shot: a Store is constructed for exactly one remote location and
// used for exactly one Fetch or one Put during a job, never both.
type Store interface {
	// Fetch copies the store's remote object to localPath, creating or
	// truncating it.
	Fetch(ctx context.Context, localPath string) error
	// Put copies localPath's contents to the store's remote object.
	Put(ctx context.Context, localPath string) error
	// String returns the location this store was opened against, for
	// diagnostics.
	String() string
	Close() error
}

// IsRemote reports whether location names a remote object this package
// knows how to stage, as opposed to a local filesystem path the
// coordinator can open directly.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(u.Scheme, "s3+http"):
		return true
	case u.Scheme == "gs":
		return true
	case u.Scheme == "sftp":
		return true
	default:
		return false
	}
}

// Open dispatches on location's URL scheme to the matching Store
// implementation, resolving S3 credentials from the environment only. It
// returns an error for a scheme stage doesn't recognize; callers should
// check IsRemote first if a local path is a legitimate, non-error
// possibility.
func Open(location string) (Store, error) {
	return OpenWithCredentials(location, nil, "")
}

// OpenWithCredentials is Open, but for an s3+http(s):// location it uses
// creds/region instead of resolving credentials from the environment —
// the caller (cmd/plaszip's config.go) resolves these from its own
// S3Credentials config or AWS shared credentials file via
// Config.GetS3CredentialsFor before calling in. creds/region are ignored
// for gs:// and sftp:// locations, which have their own credential paths.
func OpenWithCredentials(location string, creds *credentials.Credentials, region string) (Store, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("stage: parsing location %q: %w", location, err)
	}
	switch {
	case strings.HasPrefix(u.Scheme, "s3+http"):
		return newS3Store(u, creds, region)
	case u.Scheme == "gs":
		return newGCStore(u)
	case u.Scheme == "sftp":
		return newSFTPStore(u)
	default:
		return nil, fmt.Errorf("stage: unrecognized scheme %q in %q", u.Scheme, location)
	}
}
