package storage

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/cperrin88/mediafetch/pkg/errors"
)

func init() {
	Register("gs", newGCSStore)
}

// GCSStore persists media as objects in a Google Cloud Storage bucket.
type GCSStore struct {
	Bucket string
	Prefix string
	ACL    string
	bucket *gcs.BucketHandle
}

func newGCSStore(ctx context.Context, u *url.URL, opts Options) (Store, error) {
	if u.Host == "" {
		return nil, errors.Wrap(errors.ErrInvalidStoreURI, "gs URI without bucket")
	}

	var copts []option.ClientOption
	if opts.GCS.ProjectID != "" {
		copts = append(copts, option.WithQuotaProject(opts.GCS.ProjectID))
	}
	client, err := gcs.NewClient(ctx, copts...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStorageFailure, "gcs client: %v", err)
	}

	return &GCSStore{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
		ACL:    opts.GCS.ACL,
		bucket: client.Bucket(u.Host),
	}, nil
}

// Persist writes data through a resumable object writer.
func (s *GCSStore) Persist(ctx context.Context, path string, data []byte, meta Meta) error {
	key := joinKey(s.Prefix, path)
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = meta.ContentType
	if s.ACL != "" {
		w.PredefinedACL = s.ACL
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(errors.ErrStorageFailure, "gcs write %s/%s: %v", s.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(errors.ErrStorageFailure, "gcs close %s/%s: %v", s.Bucket, key, err)
	}
	return nil
}

// Stat returns the object's update time and MD5 checksum.
func (s *GCSStore) Stat(ctx context.Context, path string) (Stat, error) {
	key := joinKey(s.Prefix, path)
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return Stat{}, ErrNotFound
	}
	if err != nil {
		return Stat{}, errors.Wrapf(errors.ErrStorageFailure, "gcs stat %s/%s: %v", s.Bucket, key, err)
	}
	return Stat{ModTime: attrs.Updated, Checksum: hex.EncodeToString(attrs.MD5)}, nil
}
